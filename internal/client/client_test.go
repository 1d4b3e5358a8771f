package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/relaychat/internal/domain"
	"github.com/ashureev/relaychat/internal/shared"
)

const testJWT = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhbmEifQ.sig"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second)
}

func TestLoginUsesTokenHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("expected request id header")
		}
		var cred map[string]string
		_ = json.NewDecoder(r.Body).Decode(&cred)
		if cred["Username"] != "ana" || cred["Password"] != "pw" {
			t.Errorf("unexpected credential body %v", cred)
		}
		w.Header().Set("X-Auth-Token", testJWT)
		_, _ = w.Write([]byte(`{"opaque":true}`))
	})

	sess, err := c.Login(context.Background(), domain.Credential{Username: " ana ", Password: "pw"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.User != "ana" || sess.Token != testJWT {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestLoginFallsBackToBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"Token":"Bearer ` + testJWT + `"}}`))
	})

	sess, err := c.Login(context.Background(), domain.Credential{Username: "ana", Password: "pw"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.Token != testJWT {
		t.Fatalf("expected token from body, got %q", sess.Token)
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		cred    domain.Credential
		wantMsg string
	}{
		{"rejected with message", http.StatusUnauthorized, `{"Message":"Usuario invalido"}`, domain.Credential{Username: "ana", Password: "x"}, "Usuario invalido"},
		{"ok without token", http.StatusOK, `{"ok":true}`, domain.Credential{Username: "ana", Password: "x"}, "No bearer token found in the login response."},
		{"missing password", http.StatusOK, `{}`, domain.Credential{Username: "ana"}, "Enter both username and password."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Login(context.Background(), tt.cred)
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Fatalf("expected ErrAuthFailed, got %v", err)
			}
			if got := shared.StatusMessage(err); got != tt.wantMsg {
				t.Fatalf("expected message %q, got %q", tt.wantMsg, got)
			}
		})
	}
}

func TestSendBuildsMessageBody(t *testing.T) {
	var got map[string]any
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusCreated)
	})

	sess := &domain.Session{User: "ana", Token: testJWT}
	if err := c.Send(context.Background(), sess, "  hola  "); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if auth != "Bearer "+testJWT {
		t.Fatalf("unexpected Authorization %q", auth)
	}
	if got["Cod_Sala"] != float64(0) || got["Login_Emisor"] != "ana" || got["Contenido"] != "hola" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestSendRejectsEmptyAndLoggedOut(t *testing.T) {
	c := New("http://127.0.0.1:0", time.Second)
	if err := c.Send(context.Background(), &domain.Session{User: "ana", Token: "t"}, "   "); err == nil {
		t.Fatal("expected validation error for empty content")
	}
	if err := c.Send(context.Background(), &domain.Session{User: "ana"}, "hi"); !errors.Is(err, shared.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFetchRowsKeepsColumnOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"Contenido":"hi","Login_Emisor":"ana","Fec_Creacion":"2024-01-01"}]`))
	})

	rows, err := c.FetchRows(context.Background(), &domain.Session{User: "ana", Token: "t"})
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	keys := rows[0].Keys()
	if keys[0] != "Contenido" || keys[1] != "Login_Emisor" || keys[2] != "Fec_Creacion" {
		t.Fatalf("expected producer key order, got %v", keys)
	}
}

func TestFetchRowsStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, shared.ErrUnauthorized},
		{http.StatusServiceUnavailable, shared.ErrStoreUnavailable},
		{http.StatusInternalServerError, shared.ErrUpstreamFailure},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"message":"x"}`))
		})
		_, err := c.FetchRows(context.Background(), &domain.Session{User: "ana", Token: "t"})
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestMessageField(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"Message":"bad"}`, "bad"},
		{`{"error":"nope","message":"preferred"}`, "preferred"},
		{`{"detail":" spaced "}`, "spaced"},
		{`{"message":42}`, ""},
		{`not json`, ""},
		{`["message"]`, ""},
	}
	for _, tt := range tests {
		if got := messageField([]byte(tt.body)); got != tt.want {
			t.Errorf("messageField(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestFetchRowsRejectsOversizedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[" + strings.Repeat(" ", maxResponseBody) + "]"))
	})

	_, err := c.FetchRows(context.Background(), &domain.Session{User: "ana", Token: "t"})
	if !errors.Is(err, shared.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
}
