// Package gateway forwards requests to the external identity and message
// services and hands their answers back unchanged.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/relaychat/internal/config"
	"github.com/ashureev/relaychat/internal/shared"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// maxUpstreamBody bounds how much of an upstream answer is relayed.
const maxUpstreamBody = 4 << 20 // 4MB

// Relay is an upstream answer to pass back to the caller as-is.
type Relay struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports whether the upstream answered 2xx.
func (r *Relay) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client talks to the upstream services.
type Client struct {
	authURL     string
	messagesURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// New creates a gateway client.
func New(cfg config.UpstreamConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		authURL:     cfg.AuthURL,
		messagesURL: cfg.MessagesURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With(slog.String("component", "gateway")),
	}
}

// Authenticate forwards a login body to the identity service.
func (c *Client) Authenticate(ctx context.Context, body []byte) (*Relay, error) {
	return c.forward(ctx, c.authURL, "", body)
}

// PostMessage forwards a message body to the message API, passing the
// caller's Authorization header through.
func (c *Client) PostMessage(ctx context.Context, authorization string, body []byte) (*Relay, error) {
	return c.forward(ctx, c.messagesURL, authorization, body)
}

func (c *Client) forward(ctx context.Context, url, authorization string, body []byte) (*Relay, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", shared.ErrUpstreamFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if reqID := chiMiddleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(chiMiddleware.RequestIDHeader, reqID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Upstream request failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamFailure, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close upstream body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody+1))
	if err != nil {
		c.logger.Error("Failed to read upstream response", "url", url, "error", err)
		return nil, fmt.Errorf("%w: read response: %v", shared.ErrUpstreamFailure, err)
	}
	if len(data) > maxUpstreamBody {
		c.logger.Error("Upstream response too large", "url", url, "limit", maxUpstreamBody)
		return nil, fmt.Errorf("%w: response exceeds %d bytes", shared.ErrUpstreamFailure, maxUpstreamBody)
	}

	c.logger.Info("Upstream responded",
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return &Relay{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
