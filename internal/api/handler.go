// Package api provides HTTP handlers for the chat relay.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/relaychat/internal/chat"
	"github.com/ashureev/relaychat/internal/gateway"
	"github.com/ashureev/relaychat/internal/store"
)

// Upstream forwards requests to the external identity and message services.
type Upstream interface {
	Authenticate(ctx context.Context, body []byte) (*gateway.Relay, error)
	PostMessage(ctx context.Context, authorization string, body []byte) (*gateway.Relay, error)
}

// Ensure the gateway client satisfies Upstream.
var _ Upstream = (*gateway.Client)(nil)

// Handler provides common handler utilities.
type Handler struct {
	repo      store.Repository
	upstream  Upstream
	formatter *chat.Formatter
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, upstream Upstream, formatter *chat.Formatter) *Handler {
	if formatter == nil {
		formatter = chat.NewFormatter(chat.DefaultLocale, "")
	}
	return &Handler{
		repo:      repo,
		upstream:  upstream,
		formatter: formatter,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"message": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"message": message})
}

// writeRelay passes an upstream answer through unchanged.
func writeRelay(w http.ResponseWriter, relay *gateway.Relay) {
	contentType := relay.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(relay.Status)
	_, _ = w.Write(relay.Body)
}
