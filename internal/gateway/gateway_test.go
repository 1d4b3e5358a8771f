package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/relaychat/internal/config"
	"github.com/ashureev/relaychat/internal/shared"
)

func TestAuthenticateRelaysVerbatim(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry Authorization, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Message":"bad credentials"}`))
	}))
	defer upstream.Close()

	c := New(config.UpstreamConfig{AuthURL: upstream.URL, MessagesURL: upstream.URL, Timeout: time.Second}, nil)
	relay, err := c.Authenticate(context.Background(), []byte(`{"Username":"ana","Password":"x"}`))
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if gotBody != `{"Username":"ana","Password":"x"}` {
		t.Fatalf("body not forwarded verbatim: %q", gotBody)
	}
	if relay.Status != http.StatusBadRequest || relay.OK() {
		t.Fatalf("expected relayed 400, got %d", relay.Status)
	}
	if string(relay.Body) != `{"Message":"bad credentials"}` {
		t.Fatalf("unexpected body %q", relay.Body)
	}
	if relay.ContentType != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", relay.ContentType)
	}
}

func TestPostMessagePassesAuthorization(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	c := New(config.UpstreamConfig{AuthURL: upstream.URL, MessagesURL: upstream.URL}, nil)
	relay, err := c.PostMessage(context.Background(), "Bearer abc.def.ghi", []byte(`{}`))
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if gotAuth != "Bearer abc.def.ghi" {
		t.Fatalf("expected Authorization pass-through, got %q", gotAuth)
	}
	if !relay.OK() {
		t.Fatalf("expected 2xx, got %d", relay.Status)
	}
}

func TestForwardTransportError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	c := New(config.UpstreamConfig{AuthURL: url, MessagesURL: url, Timeout: time.Second}, nil)
	_, err := c.Authenticate(context.Background(), []byte(`{}`))
	if !errors.Is(err, shared.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
}

func TestForwardRejectsOversizedBody(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"at limit", maxUpstreamBody, false},
		{"over limit", maxUpstreamBody + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("a", tt.size)))
			}))
			defer upstream.Close()

			c := New(config.UpstreamConfig{AuthURL: upstream.URL, MessagesURL: upstream.URL, Timeout: 5 * time.Second}, nil)
			relay, err := c.Authenticate(context.Background(), []byte(`{}`))
			if tt.wantErr {
				if !errors.Is(err, shared.ErrUpstreamFailure) {
					t.Fatalf("expected ErrUpstreamFailure, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}
			if len(relay.Body) != tt.size {
				t.Fatalf("expected %d bytes relayed, got %d", tt.size, len(relay.Body))
			}
		})
	}
}
