// Package domain contains core domain types for the chat relay.
package domain

import "strings"

// Credential is a single login attempt. It is never persisted.
// JSON tags follow the identity service's casing.
type Credential struct {
	Username string `json:"Username" validate:"required,max=128"`
	Password string `json:"Password" validate:"required,max=256"`
}

// Session is the authenticated client state: who is logged in and the bearer
// token issued to them.
type Session struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

// Valid reports whether both halves of the session are present.
// A session with only one of them set is treated as logged out.
func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.User) != "" && strings.TrimSpace(s.Token) != ""
}

// AuthorizationHeader returns the header value for protected calls.
func (s *Session) AuthorizationHeader() string {
	return "Bearer " + s.Token
}
