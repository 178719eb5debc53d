package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Webhook delivers notifications to a generic HTTP endpoint, as a JSON body
// for POST or as query parameters for GET.
type Webhook struct {
	filter
	url        string
	method     string
	httpClient *http.Client
}

type webhookPayload struct {
	Account string    `json:"account"`
	Event   string    `json:"event"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (w *Webhook) Name() string { return "Webhook" }

func (w *Webhook) Send(ctx context.Context, n Notification) error {
	switch strings.ToUpper(w.method) {
	case http.MethodPost:
		err := postJSON(ctx, w.httpClient, w.url, webhookPayload{
			Account: n.Account,
			Event:   string(n.Event),
			Title:   n.Title,
			Message: n.Text,
			At:      n.At.UTC(),
		})
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		return nil

	case http.MethodGet:
		u, err := url.Parse(w.url)
		if err != nil {
			return fmt.Errorf("webhook: parse url: %w", err)
		}
		q := u.Query()
		q.Set("account", n.Account)
		q.Set("event_name", string(n.Event))
		q.Set("title", n.Title)
		q.Set("message", n.Text)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("webhook: create request: %w", err)
		}
		if err := do(w.httpClient, req); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("webhook: unsupported method %q (use GET or POST)", w.method)
	}
}
