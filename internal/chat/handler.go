package chat

import (
	"context"
	"strings"
	"unicode"

	"github.com/gempir/go-twitch-irc/v4"

	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// Handler reacts to IRC events: it reports @mentions of the account and
// logs connection changes.
type Handler struct {
	username string
	log      *logger.Logger
}

// NewHandler creates a Handler for username.
func NewHandler(username string, log *logger.Logger) *Handler {
	return &Handler{
		username: strings.ToLower(username),
		log:      log,
	}
}

// OnPrivateMessage emits a chat mention event when the message names the
// account.
func (h *Handler) OnPrivateMessage(msg twitch.PrivateMessage) {
	if !h.mentioned(msg.Message) {
		return
	}
	h.log.Event(context.Background(), model.EventChatMention, "Chat mention detected",
		"nick", msg.User.DisplayName,
		"channel", msg.Channel,
		"message", msg.Message,
	)
}

// mentioned reports whether text contains the username as a whole word,
// with or without a leading @.
func (h *Handler) mentioned(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		if w == h.username {
			return true
		}
	}
	return false
}

func (h *Handler) OnConnect() {
	h.log.Info("💬 Connected to Twitch IRC")
}

func (h *Handler) OnReconnect() {
	h.log.Info("💬 Reconnected to Twitch IRC")
}

func (h *Handler) OnSelfJoinMessage(msg twitch.UserJoinMessage) {
	h.log.Debug("💬 Joined IRC chat", "channel", msg.Channel)
}

func (h *Handler) OnSelfPartMessage(msg twitch.UserPartMessage) {
	h.log.Debug("💬 Left IRC chat", "channel", msg.Channel)
}
