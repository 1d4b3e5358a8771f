package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/relaychat/internal/chat"
	"github.com/ashureev/relaychat/internal/config"
	"github.com/ashureev/relaychat/internal/domain"
	"github.com/ashureev/relaychat/internal/fieldresolve"
	"github.com/ashureev/relaychat/internal/identity"
	"github.com/ashureev/relaychat/internal/orderedjson"
	"github.com/ashureev/relaychat/internal/shared"
	"github.com/ashureev/relaychat/internal/store"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// TokenHeader carries the token found in a successful login answer, so
// clients need not know the identity service's response shape.
const TokenHeader = "X-Auth-Token"

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.With(identity.PassAuthorization).Post("/messages", h.SendMessage)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireBearer)
			r.Get("/messages", h.ListMessages)
			r.Get("/entries", h.ListEntries)
		})
	})
}

// Login forwards credentials to the identity service and relays its answer.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	relay, err := h.upstream.Authenticate(r.Context(), body)
	if err != nil {
		slog.Error("Login relay failed", "error", err, "remote_ip", identity.IPFromRequest(r))
		Error(w, http.StatusBadGateway, shared.StatusMessage(err))
		return
	}

	if relay.OK() {
		if token, found := fieldresolve.TokenFromJSON(relay.Body); found {
			w.Header().Set(TokenHeader, token)
		} else {
			slog.Warn("Identity service answered 2xx without a recognisable token",
				"status", relay.Status, "remote_ip", identity.IPFromRequest(r))
		}
	} else {
		slog.Info("Login rejected by identity service", "status", relay.Status, "remote_ip", identity.IPFromRequest(r))
	}

	writeRelay(w, relay)
}

// SendMessage forwards a message to the message API with the caller's
// Authorization header.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	relay, err := h.upstream.PostMessage(r.Context(), identity.AuthorizationFromContext(r.Context()), body)
	if err != nil {
		slog.Error("Message relay failed", "error", err)
		Error(w, http.StatusBadGateway, shared.StatusMessage(err))
		return
	}
	writeRelay(w, relay)
}

// ListMessages returns the raw message rows, columns in table order.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.recentMessages(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, rows)
}

// ListEntries returns the message rows normalized for display. The "user"
// query parameter marks which entries belong to the caller.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.recentMessages(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, chat.Normalize(rows, r.URL.Query().Get("user"), h.formatter))
}

func (h *Handler) recentMessages(w http.ResponseWriter, r *http.Request) ([]domain.Row, bool) {
	rows, err := h.repo.RecentMessages(r.Context())
	if err != nil {
		slog.Error("Failed to read message history", "error", err)
		if errors.Is(err, shared.ErrStoreUnavailable) {
			Error(w, http.StatusServiceUnavailable, shared.StatusMessage(err))
		} else {
			Error(w, http.StatusInternalServerError, "failed to read messages")
		}
		return nil, false
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return rows, true
}

// readJSONBody reads a bounded request body and checks that it is JSON. The
// bytes are returned untouched for verbatim forwarding.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		Error(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if _, err := orderedjson.Parse(body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return body, true
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo store.Repository
	cfg  *config.Config
}

// NewHealthHandlerWithConfig creates a new health handler with configuration.
func NewHealthHandlerWithConfig(repo store.Repository, cfg *config.Config) *HealthHandler {
	return &HealthHandler{repo: repo, cfg: cfg}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	healthCheckTimeout := 5 * time.Second
	if h.cfg != nil && h.cfg.Timeout.HealthCheck > 0 {
		healthCheckTimeout = h.cfg.Timeout.HealthCheck
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
