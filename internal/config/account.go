package config

import (
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
	"github.com/Guliveer/twitch-points-tracker/internal/pubsub"
)

// AccountConfig represents the full configuration for a single Twitch account.
// It is loaded from a YAML file and optionally overlaid with environment variables.
type AccountConfig struct {
	Username string `yaml:"-"`

	Enabled *bool `yaml:"enabled,omitempty"`

	Auth AuthConfig `yaml:"auth"`

	StreamerDefaults StreamerSettingsConfig `yaml:"streamer_defaults"`

	Streamers []StreamerConfig `yaml:"streamers"`

	Blacklist []string `yaml:"blacklist"`

	PubSub PubSubConfig `yaml:"pubsub"`

	Notifications NotificationsConfig `yaml:"notifications"`
}

// AuthConfig holds authentication-related settings.
type AuthConfig struct {
	AuthToken string `yaml:"auth_token,omitempty"`
}

// StreamerSettingsConfig is the YAML representation of per-streamer settings.
type StreamerSettingsConfig struct {
	FollowRaid *bool  `yaml:"follow_raid,omitempty"`
	Chat       string `yaml:"chat,omitempty"`
}

// StreamerConfig holds per-streamer configuration from YAML.
type StreamerConfig struct {
	Username string                  `yaml:"username"`
	Settings *StreamerSettingsConfig `yaml:"settings,omitempty"`
}

// PubSubConfig tunes the PubSub connection pool. Zero values fall back to
// the protocol defaults.
type PubSubConfig struct {
	URL                 string        `yaml:"url,omitempty"`
	TopicCapacity       int           `yaml:"topic_capacity,omitempty"`
	HeartbeatMin        time.Duration `yaml:"heartbeat_min,omitempty"`
	HeartbeatMax        time.Duration `yaml:"heartbeat_max,omitempty"`
	StaleThreshold      time.Duration `yaml:"stale_threshold,omitempty"`
	ReconnectDelay      time.Duration `yaml:"reconnect_delay,omitempty"`
	SettleDelay         time.Duration `yaml:"settle_delay,omitempty"`
	OfflineBackoffMin   time.Duration `yaml:"offline_backoff_min,omitempty"`
	OfflineBackoffMax   time.Duration `yaml:"offline_backoff_max,omitempty"`
	ReachabilityAddr    string        `yaml:"reachability_addr,omitempty"`
	ReachabilityTimeout time.Duration `yaml:"reachability_timeout,omitempty"`
}

// NotificationsConfig holds all notification provider configurations.
type NotificationsConfig struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Discord  *DiscordConfig  `yaml:"discord,omitempty"`
	Webhook  *WebhookConfig  `yaml:"webhook,omitempty"`
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Token               string   `yaml:"token,omitempty"`
	ChatID              string   `yaml:"chat_id,omitempty"`
	Events              []string `yaml:"events"`
	DisableNotification bool     `yaml:"disable_notification"`
}

// DiscordConfig holds Discord notification settings.
type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url,omitempty"`
	Events     []string `yaml:"events"`
}

// WebhookConfig holds generic webhook notification settings.
type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Method   string   `yaml:"method"`
	Events   []string `yaml:"events"`
}

// ToStreamerSettings converts a StreamerSettingsConfig to a model.StreamerSettings,
// using defaults for any unset fields. Unknown chat values keep the default.
func (ssc *StreamerSettingsConfig) ToStreamerSettings(defaults *model.StreamerSettings) *model.StreamerSettings {
	settings := *defaults

	if ssc == nil {
		return &settings
	}

	if ssc.FollowRaid != nil {
		settings.FollowRaid = *ssc.FollowRaid
	}
	if ssc.Chat != "" {
		if presence, ok := model.ParseChatPresence(ssc.Chat); ok {
			settings.Chat = presence
		}
	}

	return &settings
}

// IsEnabled returns whether this account is enabled.
// If the Enabled field is not set (nil), it defaults to true.
func (ac *AccountConfig) IsEnabled() bool {
	if ac.Enabled == nil {
		return true
	}
	return *ac.Enabled
}

// Defaults returns the streamer settings applied to every streamer
// without an override.
func (ac *AccountConfig) Defaults() *model.StreamerSettings {
	return ac.StreamerDefaults.ToStreamerSettings(model.DefaultStreamerSettings())
}

// ToPubSub converts the YAML section into the pool configuration.
func (pc PubSubConfig) ToPubSub() pubsub.Config {
	return pubsub.Config{
		URL:               pc.URL,
		TopicCapacity:     pc.TopicCapacity,
		HeartbeatMin:      pc.HeartbeatMin,
		HeartbeatMax:      pc.HeartbeatMax,
		StaleThreshold:    pc.StaleThreshold,
		ReconnectDelay:    pc.ReconnectDelay,
		SettleDelay:       pc.SettleDelay,
		OfflineBackoffMin: pc.OfflineBackoffMin,
		OfflineBackoffMax: pc.OfflineBackoffMax,
	}
}

// Probe builds the reachability probe used between reconnection attempts.
func (pc PubSubConfig) Probe() *pubsub.DialProbe {
	return pubsub.NewDialProbe(pc.ReachabilityAddr, pc.ReachabilityTimeout)
}
