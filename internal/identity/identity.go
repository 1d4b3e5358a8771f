// Package identity reads the caller's bearer token from protected requests.
// Tokens are issued and verified by the external identity service; this
// package only checks that one is present.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
)

const (
	// BearerPrefix must start the Authorization header on protected calls.
	BearerPrefix = "Bearer "
	// UnauthorizedBody is the fixed answer to a call without a bearer token.
	UnauthorizedBody = `{"message":"Unauthorized"}`
)

type contextKey int

const authorizationKey contextKey = iota

// AuthorizationFromContext returns the Authorization header exactly as the
// caller sent it, for pass-through to upstream services.
func AuthorizationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(authorizationKey).(string); ok {
		return v
	}
	return ""
}

// BearerToken returns the token from an Authorization header value, or ""
// when the header does not carry the "Bearer " prefix.
func BearerToken(header string) string {
	token, ok := strings.CutPrefix(header, BearerPrefix)
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithAuthorization returns a context carrying the caller's Authorization header.
func WithAuthorization(ctx context.Context, authorization string) context.Context {
	return context.WithValue(ctx, authorizationKey, authorization)
}

// RequireBearer rejects requests without an "Authorization: Bearer <token>"
// header with 401 and a fixed body. A prefix followed only by whitespace
// counts as missing.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if BearerToken(header) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(UnauthorizedBody))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthorization(r.Context(), header)))
	})
}

// PassAuthorization stores whatever Authorization header the caller sent,
// without requiring one. The message write path relays the header and lets
// the upstream decide.
func PassAuthorization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		next.ServeHTTP(w, r.WithContext(WithAuthorization(r.Context(), header)))
	})
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
