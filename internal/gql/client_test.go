package gql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/logger"
)

type staticHeaders map[string]string

func (h staticHeaders) GetAuthHeaders() map[string]string { return h }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(staticHeaders{"Authorization": "OAuth tok"}, logger.Discard())
	c.url = srv.URL
	c.httpClient = srv.Client()
	c.retryBase = time.Millisecond
	return c
}

func decodeRequest(t *testing.T, r *http.Request) gqlRequest {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	var req gqlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	return req
}

func TestGetUserID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "OAuth tok" {
			t.Errorf("missing auth header")
		}
		req := decodeRequest(t, r)
		if req.OperationName != "GetIDFromLogin" || req.Variables["login"] != "alice" {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Extensions == nil || req.Extensions.PersistedQuery.SHA256Hash == "" {
			t.Error("persisted query hash missing")
		}
		w.Write([]byte(`{"data":{"user":{"id":"42"}}}`))
	})

	id, err := c.GetUserID(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserID: %v", err)
	}
	if id != "42" {
		t.Errorf("id = %q, want 42", id)
	}
}

func TestGetUserIDNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"user":null}}`))
	})
	if _, err := c.GetUserID(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestIsStreamLive(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"live", `{"data":{"user":{"stream":{"id":"s1"}}}}`, true},
		{"offline", `{"data":{"user":{"stream":null}}}`, false},
		{"no user", `{"data":{"user":null}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			got, err := c.IsStreamLive(context.Background(), "1")
			if err != nil {
				t.Fatalf("IsStreamLive: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsStreamLive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{}}`))
	})

	if err := c.JoinRaid(context.Background(), "raid-1"); err != nil {
		t.Fatalf("JoinRaid: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	if err := c.ClaimCommunityPoints(context.Background(), "claim", "1"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	cb := &circuitBreaker{}
	for range 9 {
		cb.recordFailure()
	}
	if cb.shouldSkip() {
		t.Fatal("breaker open after 9 failures")
	}
	cb.recordFailure()
	if !cb.shouldSkip() {
		t.Fatal("breaker closed after 10 failures")
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent while breaker open")
	})
	c.breaker = cb
	if _, err := c.GetUserID(context.Background(), "alice"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}
