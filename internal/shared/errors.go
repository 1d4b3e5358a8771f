// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"errors"
	"strings"
)

// Error kinds surfaced at the boundary of each user action.
var (
	// ErrAuthFailed means the credentials were rejected or no token could be
	// found in the identity service's answer.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrUnauthorized means a protected call carried no usable bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable means the message store or its catalog could not be read.
	ErrStoreUnavailable = errors.New("message store unavailable")
	// ErrUpstreamFailure means an external HTTP service failed or answered non-2xx.
	ErrUpstreamFailure = errors.New("upstream service failure")
)

// StatusError carries the upstream's own message alongside an error kind.
type StatusError struct {
	Kind    error
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// StatusMessage turns an error into the short line shown to the user.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}

	var se *StatusError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Session expired or not authorized. Please log in again."
	case errors.Is(err, ErrAuthFailed):
		return "Login failed. Check your username and password."
	case errors.Is(err, ErrStoreUnavailable):
		return "Messages are temporarily unavailable. Retrying shortly."
	case errors.Is(err, ErrUpstreamFailure):
		return "The chat service did not respond. Try again."
	default:
		return err.Error()
	}
}

// IsSQLiteConflictError reports whether err is a SQLITE_BUSY or
// "database is locked" error. Both are transient.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
