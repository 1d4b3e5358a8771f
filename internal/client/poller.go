package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/relaychat/internal/chat"
	"github.com/ashureev/relaychat/internal/domain"
	"github.com/ashureev/relaychat/internal/shared"
)

// DefaultPollInterval is how often the history is refreshed.
const DefaultPollInterval = 10 * time.Second

// RowFetcher reads the raw message rows for a session.
type RowFetcher interface {
	FetchRows(ctx context.Context, sess *domain.Session) ([]domain.Row, error)
}

// Ensure Client satisfies RowFetcher.
var _ RowFetcher = (*Client)(nil)

// Renderer displays the outcome of a refresh.
type Renderer interface {
	Render(entries []domain.ChatEntry)
	Status(message string)
}

// Poller refreshes the history on a timer and on demand. Refreshes may
// overlap; each one is numbered and a result older than the last one shown
// is dropped, so a slow response cannot overwrite a newer render.
type Poller struct {
	fetcher   RowFetcher
	session   *domain.Session
	formatter *chat.Formatter
	renderer  Renderer
	interval  time.Duration
	logger    *slog.Logger

	// OnUnauthorized runs once when the relay rejects the session.
	OnUnauthorized func()

	kick     chan struct{}
	seq      atomic.Uint64
	mu       sync.Mutex
	shown    uint64
	rejected bool
	wg       sync.WaitGroup
}

// NewPoller creates a poller for sess.
func NewPoller(fetcher RowFetcher, sess *domain.Session, formatter *chat.Formatter, renderer Renderer, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:   fetcher,
		session:   sess,
		formatter: formatter,
		renderer:  renderer,
		interval:  interval,
		logger:    logger.With(slog.String("component", "poller")),
		kick:      make(chan struct{}, 1),
	}
}

// RefreshSoon asks a running Run loop for an extra refresh, for example
// right after the user sent a message. Requests made while one is already
// pending are merged.
func (p *Poller) RefreshSoon() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Refresh runs one fetch-and-render cycle.
func (p *Poller) Refresh(ctx context.Context) {
	n := p.seq.Add(1)
	rows, err := p.fetcher.FetchRows(ctx, p.session)
	if ctx.Err() != nil {
		return
	}
	p.deliver(n, rows, err)
}

func (p *Poller) deliver(n uint64, rows []domain.Row, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rejected {
		return
	}
	if n <= p.shown {
		p.logger.Debug("Dropping stale refresh", "seq", n, "shown", p.shown)
		return
	}
	p.shown = n

	if err != nil {
		if errors.Is(err, shared.ErrUnauthorized) {
			p.rejected = true
			p.renderer.Render(nil)
			p.renderer.Status(shared.StatusMessage(err))
			if p.OnUnauthorized != nil {
				p.OnUnauthorized()
			}
			return
		}
		p.logger.Warn("Refresh failed", "seq", n, "error", err)
		p.renderer.Status(shared.StatusMessage(err))
		return
	}

	p.renderer.Render(chat.Normalize(rows, p.session.User, p.formatter))
}

// Rejected reports whether the relay has rejected the session.
func (p *Poller) Rejected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rejected
}

// Run refreshes immediately, then on every tick and every RefreshSoon, until
// ctx ends or the session is rejected. Refreshes do not wait for earlier ones
// to finish, and Run returns only after all of them have.
func (p *Poller) Run(ctx context.Context) error {
	defer p.wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.spawn(ctx, cancel)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if p.Rejected() {
				return shared.ErrUnauthorized
			}
			return ctx.Err()
		case <-ticker.C:
			p.spawn(ctx, cancel)
		case <-p.kick:
			p.spawn(ctx, cancel)
		}
	}
}

func (p *Poller) spawn(ctx context.Context, cancel context.CancelFunc) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Refresh(ctx)
		if p.Rejected() {
			cancel()
		}
	}()
}
