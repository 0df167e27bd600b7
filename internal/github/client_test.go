package github

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewClient_NilContextReturnsError(t *testing.T) {
	var nilCtx context.Context
	_, err := NewClient(nilCtx, "")
	if err == nil || !strings.Contains(err.Error(), "ctx is nil") {
		t.Fatalf("expected nil ctx error, got %v", err)
	}
}

// An Enterprise Server answers under /api/v3; the status call must land
// there with the token and show up in the verbose log.
func TestNewClient_EnterpriseStatusWithVerboseLog(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantAuth bool
	}{
		{name: "authenticated", token: "ghe-token", wantAuth: true},
		{name: "anonymous", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{}`))
			}))
			t.Cleanup(server.Close)

			var logs bytes.Buffer
			c, err := NewClient(context.Background(), tt.token,
				WithBaseURL(server.URL),
				WithVerbose(true, zerolog.New(&logs)))
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}

			err = c.PublishStatus(context.Background(), StatusRequest{
				Repo:    "acme/shop",
				SHA:     "deadbeef",
				State:   StateSuccess,
				Context: "appaudit",
			})
			if err != nil {
				t.Fatalf("PublishStatus error: %v", err)
			}

			if gotPath != "/api/v3/repos/acme/shop/statuses/deadbeef" {
				t.Fatalf("unexpected path %q", gotPath)
			}
			if tt.wantAuth && !strings.Contains(gotAuth, tt.token) {
				t.Fatalf("expected Authorization header with token, got %q", gotAuth)
			}
			if !tt.wantAuth && gotAuth != "" {
				t.Fatalf("expected no Authorization header, got %q", gotAuth)
			}
			if !strings.Contains(logs.String(), `"method":"POST"`) || !strings.Contains(logs.String(), `"status":201`) {
				t.Fatalf("expected request and response in verbose log, got: %q", logs.String())
			}
			if tt.token != "" && strings.Contains(logs.String(), tt.token) {
				t.Fatalf("token leaked into the log: %q", logs.String())
			}
		})
	}
}

func TestNewClient_QuietByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	var logs bytes.Buffer
	c, err := NewClient(context.Background(), "token", WithBaseURL(server.URL), WithVerbose(false, zerolog.New(&logs)))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := c.PublishStatus(context.Background(), StatusRequest{Repo: "acme/shop", SHA: "abc", State: StateFailure, Context: "appaudit"}); err != nil {
		t.Fatalf("PublishStatus error: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no request logs without -vv, got: %q", logs.String())
	}
}

func TestNewClient_WithBaseURL(t *testing.T) {
	c, err := NewClient(context.Background(), "", WithBaseURL("https://ghe.example.com/api/v3"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if got := c.Client.BaseURL.String(); got != "https://ghe.example.com/api/v3/" {
		t.Fatalf("unexpected base url %q", got)
	}

	if _, err := NewClient(context.Background(), "", WithBaseURL("://bad")); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}
