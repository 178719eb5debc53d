package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// Notification is one tracker event rendered for delivery.
type Notification struct {
	Account string
	Event   model.Event
	Title   string
	Text    string
	At      time.Time
}

// filter holds the events a sink was configured for.
type filter map[model.Event]bool

func newFilter(names []string) filter {
	f := make(filter, len(names))
	for _, name := range names {
		if e := model.ParseEvent(name); e != "" {
			f[e] = true
		}
	}
	return f
}

// Accepts reports whether the sink is configured for event.
func (f filter) Accepts(event model.Event) bool { return f[event] }

// postJSON posts payload to url and turns a 4xx/5xx reply into an error
// carrying the start of the response body.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return do(client, req)
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
