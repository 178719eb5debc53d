package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

const twitchPurple = 0x6441A4

var discordColors = map[model.Event]int{
	model.EventStreamerOnline:     0x2ECC71,
	model.EventStreamerOffline:    0x95A5A6,
	model.EventBonusClaim:         0xF1C40F,
	model.EventGainForClaim:       0xF1C40F,
	model.EventJoinRaid:           0xE74C3C,
	model.EventGainForRaid:        0xE74C3C,
	model.EventChatMention:        0x3498DB,
	model.EventGainForWatch:       twitchPurple,
	model.EventGainForWatchStreak: twitchPurple,
}

// Discord posts notifications as embeds to a Discord webhook.
type Discord struct {
	filter
	webhookURL string
	httpClient *http.Client
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (d *Discord) Name() string { return "Discord" }

func (d *Discord) Send(ctx context.Context, n Notification) error {
	color, ok := discordColors[n.Event]
	if !ok {
		color = twitchPurple
	}

	embed := discordEmbed{
		Title:       n.Title,
		Description: n.Text,
		Color:       color,
		Footer:      &discordFooter{Text: string(n.Event)},
	}
	if !n.At.IsZero() {
		embed.Timestamp = n.At.UTC().Format(time.RFC3339)
	}

	payload := map[string]any{
		"username": "Twitch Points Tracker",
		"embeds":   []discordEmbed{embed},
	}
	if err := postJSON(ctx, d.httpClient, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}
