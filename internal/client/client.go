package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/relaychat/internal/domain"
	"github.com/ashureev/relaychat/internal/fieldresolve"
	"github.com/ashureev/relaychat/internal/orderedjson"
	"github.com/ashureev/relaychat/internal/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	tokenHeader     = "X-Auth-Token"
	requestIDHeader = "X-Request-Id"
	maxResponseBody = 8 << 20 // 8MB
)

// Client calls the relay's HTTP endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

// New returns a client for the relay at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Login authenticates cred and returns the new session. The token comes
// from the relay's token header, or is searched for in the body when the
// header is missing.
func (c *Client) Login(ctx context.Context, cred domain.Credential) (*domain.Session, error) {
	cred.Username = strings.TrimSpace(cred.Username)
	cred.Password = strings.TrimSpace(cred.Password)
	if err := c.validate.Struct(cred); err != nil {
		return nil, &shared.StatusError{Kind: shared.ErrAuthFailed, Message: "Enter both username and password."}
	}

	resp, body, err := c.do(ctx, http.MethodPost, "/api/login", "", cred)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &shared.StatusError{Kind: shared.ErrAuthFailed, Status: resp.StatusCode, Message: messageField(body)}
	}

	token := strings.TrimSpace(resp.Header.Get(tokenHeader))
	if token == "" {
		token, _ = fieldresolve.TokenFromJSON(body)
	}
	if token == "" {
		return nil, &shared.StatusError{Kind: shared.ErrAuthFailed, Status: resp.StatusCode, Message: "No bearer token found in the login response."}
	}
	return &domain.Session{User: cred.Username, Token: token}, nil
}

// Send posts content as the session's user.
func (c *Client) Send(ctx context.Context, sess *domain.Session, content string) error {
	if !sess.Valid() {
		return shared.ErrUnauthorized
	}
	msg := domain.OutgoingMessage{
		Room:    domain.DefaultRoom,
		Sender:  sess.User,
		Content: strings.TrimSpace(content),
	}
	if err := c.validate.Struct(msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	resp, body, err := c.do(ctx, http.MethodPost, "/api/messages", sess.AuthorizationHeader(), msg)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.StatusError{Kind: shared.ErrUpstreamFailure, Status: resp.StatusCode, Message: messageField(body)}
	}
	return nil
}

// FetchRows reads the raw message rows. A 401 is reported as
// shared.ErrUnauthorized so callers can drop the session.
func (c *Client) FetchRows(ctx context.Context, sess *domain.Session) ([]domain.Row, error) {
	if !sess.Valid() {
		return nil, shared.ErrUnauthorized
	}

	resp, body, err := c.do(ctx, http.MethodGet, "/api/messages", sess.AuthorizationHeader(), nil)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &shared.StatusError{Kind: shared.ErrUnauthorized, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &shared.StatusError{Kind: shared.ErrStoreUnavailable, Status: resp.StatusCode, Message: messageField(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := messageField(body)
		if msg == "" {
			msg = fmt.Sprintf("Error loading messages (HTTP %d)", resp.StatusCode)
		}
		return nil, &shared.StatusError{Kind: shared.ErrUpstreamFailure, Status: resp.StatusCode, Message: msg}
	}

	var rows []domain.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode messages: %v", shared.ErrUpstreamFailure, err)
	}
	return rows, nil
}

func (c *Client) do(ctx context.Context, method, path, authorization string, payload any) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrUpstreamFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", shared.ErrUpstreamFailure, err)
	}
	if len(body) > maxResponseBody {
		return nil, nil, fmt.Errorf("%w: response exceeds %d bytes", shared.ErrUpstreamFailure, maxResponseBody)
	}
	return resp, body, nil
}

// messageField returns the human-readable message of an error body, looking
// for a "message", "error" or "detail" key in any letter case.
func messageField(body []byte) string {
	v, err := orderedjson.Parse(body)
	if err != nil || v.Kind != orderedjson.Object {
		return ""
	}
	for _, want := range []string{"message", "error", "detail"} {
		for _, f := range v.Fields {
			if strings.EqualFold(f.Key, want) && f.Value.Kind == orderedjson.String {
				return strings.TrimSpace(f.Value.Str)
			}
		}
	}
	return ""
}
