package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"wrapped unauthorized", fmt.Errorf("list messages: %w", ErrUnauthorized), "Session expired or not authorized. Please log in again."},
		{"store", fmt.Errorf("read: %w", ErrStoreUnavailable), "Messages are temporarily unavailable. Retrying shortly."},
		{"upstream message wins", &StatusError{Kind: ErrAuthFailed, Status: 400, Message: "Usuario o clave incorrectos"}, "Usuario o clave incorrectos"},
		{"blank upstream message", &StatusError{Kind: ErrUpstreamFailure, Status: 500, Message: "  "}, "The chat service did not respond. Try again."},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusMessage(tt.err); got != tt.want {
				t.Fatalf("StatusMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("login: %w", &StatusError{Kind: ErrAuthFailed, Status: 401})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatal("expected StatusError to unwrap to its kind")
	}
}

func TestIsSQLiteConflictError(t *testing.T) {
	if IsSQLiteConflictError(nil) {
		t.Fatal("nil must not be a conflict")
	}
	if !IsSQLiteConflictError(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("expected busy error to be a conflict")
	}
	if IsSQLiteConflictError(errors.New("no such table")) {
		t.Fatal("unexpected conflict classification")
	}
}
