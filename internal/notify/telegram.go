package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends notifications through the Bot API sendMessage method.
type Telegram struct {
	filter
	apiBase             string
	token               string
	chatID              string
	disableNotification bool
	httpClient          *http.Client
}

func (t *Telegram) Name() string { return "Telegram" }

func (t *Telegram) Send(ctx context.Context, n Notification) error {
	text := html.EscapeString(n.Text)
	if n.Title != "" {
		text = fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title), text)
	}

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
		"disable_notification":     t.disableNotification,
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	if err := postJSON(ctx, t.httpClient, endpoint, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
