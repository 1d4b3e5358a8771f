// Command chat is a terminal client for the chat relay.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ashureev/relaychat/internal/chat"
	"github.com/ashureev/relaychat/internal/client"
	"github.com/ashureev/relaychat/internal/domain"
	"github.com/ashureev/relaychat/internal/shared"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cli struct {
	server   string
	session  string
	locale   string
	zone     string
	timeout  time.Duration
	verbose  bool
	out      io.Writer
	sessions *client.Sessions
	api      *client.Client
	logger   *slog.Logger
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "chat",
		Short:         "Terminal client for the chat relay",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.server, "server", envOr("CHAT_SERVER", "http://localhost:3000"), "relay base URL")
	flags.StringVar(&c.session, "session-file", os.Getenv("CHAT_SESSION_FILE"), "session file (default: user config dir)")
	flags.StringVar(&c.locale, "locale", envOr("DISPLAY_LOCALE", chat.DefaultLocale), "timestamp locale")
	flags.StringVar(&c.zone, "timezone", envOr("DISPLAY_TIMEZONE", "Local"), "timestamp time zone")
	flags.DurationVar(&c.timeout, "timeout", 20*time.Second, "request timeout")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.sendCommand(),
		c.messagesCommand(),
		c.watchCommand(),
	)
	return root
}

func (c *cli) init() error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	path := c.session
	if path == "" {
		var err error
		if path, err = client.DefaultSessionPath(); err != nil {
			return err
		}
	}
	c.sessions = client.NewSessions(client.NewFileStore(path))
	c.api = client.New(c.server, c.timeout)
	return nil
}

func (c *cli) requireSession() (*domain.Session, error) {
	sess, err := c.sessions.Load()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New("not logged in, run `chat login` first")
	}
	return sess, nil
}

// dropOnUnauthorized clears the stored session when the relay rejected it.
func (c *cli) dropOnUnauthorized(err error) error {
	if errors.Is(err, shared.ErrUnauthorized) {
		if clearErr := c.sessions.Clear(); clearErr != nil {
			c.logger.Warn("Failed to clear session", "error", clearErr)
		}
		return errors.New("session expired, run `chat login` again")
	}
	return err
}

func (c *cli) loginCommand() *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("CHAT_PASSWORD")
			}
			if user == "" || password == "" {
				reader := bufio.NewReader(os.Stdin)
				if user == "" {
					user = prompt(reader, c.out, "Username: ")
				}
				if password == "" {
					password = prompt(reader, c.out, "Password: ")
				}
			}

			sess, err := c.api.Login(cmd.Context(), domain.Credential{Username: user, Password: password})
			if err != nil {
				c.logger.Debug("Login failed", "error", err)
				return errors.New(shared.StatusMessage(err))
			}
			if err := c.sessions.Save(sess); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Logged in as %s\n", sess.User)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or CHAT_PASSWORD)")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := c.sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}
}

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(_ *cobra.Command, _ []string) error {
			sess, err := c.sessions.Load()
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Fprintln(c.out, "Not logged in")
				return nil
			}
			fmt.Fprintf(c.out, "Logged in as %s\n", sess.User)
			if exp, ok := client.TokenExpiry(sess.Token); ok {
				state := "valid until"
				if time.Now().After(exp) {
					state = "expired at"
				}
				fmt.Fprintf(c.out, "Token %s %s\n", state, exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func (c *cli) sendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.requireSession()
			if err != nil {
				return err
			}
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return errors.New("message is empty")
			}
			if err := c.api.Send(cmd.Context(), sess, content); err != nil {
				return c.dropOnUnauthorized(err)
			}
			return nil
		},
	}
}

func (c *cli) messagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "messages",
		Short: "Print the recent history once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.requireSession()
			if err != nil {
				return err
			}
			rows, err := c.api.FetchRows(cmd.Context(), sess)
			if err != nil {
				return c.dropOnUnauthorized(err)
			}
			printEntries(c.out, chat.Normalize(rows, sess.User, chat.NewFormatter(c.locale, c.zone)))
			return nil
		},
	}
}

func (c *cli) watchCommand() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the history, sending lines typed on stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.requireSession()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			renderer := &terminalRenderer{out: c.out}
			p := client.NewPoller(c.api, sess, chat.NewFormatter(c.locale, c.zone), renderer, interval, c.logger)
			p.OnUnauthorized = func() {
				if err := c.sessions.Clear(); err != nil {
					c.logger.Warn("Failed to clear session", "error", err)
				}
			}

			go c.readInput(ctx, os.Stdin, sess, p, renderer)

			err = p.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return c.dropOnUnauthorized(err)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "refresh interval")
	return cmd
}

// readInput sends each non-empty line and asks the poller to refresh.
func (c *cli) readInput(ctx context.Context, in io.Reader, sess *domain.Session, p *client.Poller, r client.Renderer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.api.Send(ctx, sess, line); err != nil {
			r.Status(shared.StatusMessage(err))
			continue
		}
		p.RefreshSoon()
	}
}

// terminalRenderer serializes all writes to out.
type terminalRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *terminalRenderer) Render(entries []domain.ChatEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, "\033[H\033[2J")
	printEntries(r.out, entries)
}

func (r *terminalRenderer) Status(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "! %s\n", message)
}

func printEntries(out io.Writer, entries []domain.ChatEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "(no messages)")
		return
	}
	for _, e := range entries {
		marker := " "
		if e.IsOwnMessage {
			marker = ">"
		}
		author := e.Author
		if author == "" {
			author = "?"
		}
		if e.Timestamp != "" {
			fmt.Fprintf(out, "%s [%s] %s: %s\n", marker, e.Timestamp, author, e.Content)
			continue
		}
		fmt.Fprintf(out, "%s %s: %s\n", marker, author, e.Content)
	}
}

func prompt(r *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
