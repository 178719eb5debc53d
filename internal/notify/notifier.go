// Package notify fans tracker events out to notification sinks (Telegram,
// Discord, generic webhook), each filtered to the events it was configured
// for.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

const sendTimeout = 5 * time.Second

// Notifier is a notification sink.
type Notifier interface {
	Name() string
	Accepts(event model.Event) bool
	Send(ctx context.Context, n Notification) error
}

// Dispatcher delivers an account's events to every sink that accepts them.
// Sends run in the background; Wait blocks until they finish.
type Dispatcher struct {
	account   string
	title     string
	notifiers []Notifier
	log       *logger.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// NewDispatcher builds the enabled sinks of cfg for account.
func NewDispatcher(account string, cfg config.NotificationsConfig, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{
		account: account,
		title:   "Twitch Points Tracker",
		log:     log,
		now:     time.Now,
	}
	if account != "" {
		d.title += " [" + account + "]"
	}

	httpClient := &http.Client{
		Timeout: sendTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	if tg := cfg.Telegram; tg != nil && tg.Enabled {
		d.notifiers = append(d.notifiers, &Telegram{
			filter:              newFilter(tg.Events),
			apiBase:             telegramAPI,
			token:               tg.Token,
			chatID:              tg.ChatID,
			disableNotification: tg.DisableNotification,
			httpClient:          httpClient,
		})
	}
	if dc := cfg.Discord; dc != nil && dc.Enabled {
		d.notifiers = append(d.notifiers, &Discord{
			filter:     newFilter(dc.Events),
			webhookURL: dc.WebhookURL,
			httpClient: httpClient,
		})
	}
	if wh := cfg.Webhook; wh != nil && wh.Enabled {
		method := wh.Method
		if method == "" {
			method = http.MethodPost
		}
		d.notifiers = append(d.notifiers, &Webhook{
			filter:     newFilter(wh.Events),
			url:        wh.Endpoint,
			method:     method,
			httpClient: httpClient,
		})
	}

	return d
}

// Dispatch hands text to every sink that accepts event. It does not block.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.Event, text string) {
	n := Notification{
		Account: d.account,
		Event:   event,
		Title:   d.title,
		Text:    text,
		At:      d.now(),
	}
	for _, sink := range d.notifiers {
		if !sink.Accepts(event) {
			continue
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()
			if err := sink.Send(sendCtx, n); err != nil {
				d.log.Warn("Notification send failed", "provider", sink.Name(), "event", string(event), "error", err)
			}
		}()
	}
}

// NotifyFunc adapts the Dispatcher to the logger's event hook.
func (d *Dispatcher) NotifyFunc() logger.NotifyFunc {
	return func(ctx context.Context, message string, event model.Event) {
		d.Dispatch(ctx, event, message)
	}
}

// HasNotifiers reports whether any sink is enabled.
func (d *Dispatcher) HasNotifiers() bool {
	return len(d.notifiers) > 0
}

// Wait blocks until every send started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
