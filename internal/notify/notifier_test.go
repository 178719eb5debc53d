package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

type capture struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func captureServer(t *testing.T) (*httptest.Server, <-chan capture) {
	t.Helper()
	ch := make(chan capture, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := capture{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &c.body)
		}
		ch <- c
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func receive(t *testing.T, ch <-chan capture) capture {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no request received")
		return capture{}
	}
}

func TestDispatcherFiltersEvents(t *testing.T) {
	srv, ch := captureServer(t)

	d := NewDispatcher("alice", config.NotificationsConfig{
		Webhook: &config.WebhookConfig{
			Enabled:  true,
			Endpoint: srv.URL + "/hook",
			Events:   []string{"STREAMER_ONLINE", "NOT_AN_EVENT"},
		},
	}, logger.Discard())

	if !d.HasNotifiers() {
		t.Fatal("expected the webhook notifier")
	}

	notify := d.NotifyFunc()
	notify(context.Background(), "ignored", model.EventGainForWatch)
	notify(context.Background(), "🟢 Stream online streamer=bob", model.EventStreamerOnline)

	got := receive(t, ch)
	if got.method != http.MethodPost || got.path != "/hook" {
		t.Errorf("request = %s %s", got.method, got.path)
	}
	if got.body["event"] != "STREAMER_ONLINE" {
		t.Errorf("event = %v", got.body["event"])
	}
	if got.body["title"] != "Twitch Points Tracker [alice]" || got.body["account"] != "alice" {
		t.Errorf("body = %v", got.body)
	}

	d.Wait()
	select {
	case extra := <-ch:
		t.Errorf("unexpected request for filtered event: %+v", extra)
	default:
	}
}

func TestWebhookGet(t *testing.T) {
	srv, ch := captureServer(t)
	w := &Webhook{url: srv.URL, method: "get", httpClient: srv.Client()}

	n := Notification{Account: "alice", Event: model.EventBonusClaim, Title: "t", Text: "claimed"}
	if err := w.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := receive(t, ch)
	if got.method != http.MethodGet || !strings.Contains(got.query, "event_name=BONUS_CLAIM") || !strings.Contains(got.query, "account=alice") {
		t.Errorf("request = %s ?%s", got.method, got.query)
	}

	w.method = "PUT"
	if err := w.Send(context.Background(), n); err == nil {
		t.Error("expected error for unsupported method")
	}
}

func TestDiscordEmbed(t *testing.T) {
	srv, ch := captureServer(t)
	d := &Discord{webhookURL: srv.URL, httpClient: srv.Client()}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := Notification{Event: model.EventJoinRaid, Title: "title", Text: "joined", At: at}
	if err := d.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := receive(t, ch)
	embeds, _ := got.body["embeds"].([]any)
	if len(embeds) != 1 {
		t.Fatalf("embeds = %v", got.body["embeds"])
	}
	embed := embeds[0].(map[string]any)
	if embed["description"] != "joined" {
		t.Errorf("description = %v", embed["description"])
	}
	if embed["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %v", embed["timestamp"])
	}
	if embed["color"] != float64(0xE74C3C) {
		t.Errorf("color = %v", embed["color"])
	}
}

func TestTelegramSend(t *testing.T) {
	srv, ch := captureServer(t)
	tg := &Telegram{apiBase: srv.URL, token: "T", chatID: "99", httpClient: srv.Client()}

	if err := tg.Send(context.Background(), Notification{Event: model.EventTest, Title: "Title", Text: "a<b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := receive(t, ch)
	if got.path != "/botT/sendMessage" {
		t.Errorf("path = %s", got.path)
	}
	if got.body["chat_id"] != "99" || got.body["text"] != "<b>Title</b>\na&lt;b" {
		t.Errorf("body = %v", got.body)
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	d := &Discord{webhookURL: srv.URL, httpClient: srv.Client()}
	err := d.Send(context.Background(), Notification{Event: model.EventTest, Title: "t", Text: "m"})
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("Send error = %v, want the response body in it", err)
	}
}
