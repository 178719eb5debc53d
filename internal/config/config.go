// Package config handles loading, parsing, and validating YAML configuration
// files for the tracker. It supports per-account configuration with
// environment variable overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// DefaultConfigDir is the default directory for account configuration files.
const DefaultConfigDir = "configs"

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set are left alone and a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadAccountConfig loads a single account configuration from a YAML file,
// then overlays environment variables for secrets.
func LoadAccountConfig(path string) (*AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg AccountConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	filename := filepath.Base(path)
	cfg.Username = strings.ToLower(strings.TrimSuffix(filename, filepath.Ext(filename)))

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// LoadAllAccountConfigs loads all .yaml/.yml files from the given directory.
// The username for each account is derived from the config filename.
func LoadAllAccountConfigs(dir string) ([]*AccountConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading config directory %s: %w", dir, err)
	}

	var configs []*AccountConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		cfg, err := LoadAccountConfig(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}

		configs = append(configs, cfg)
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("no account config files found in %s", dir)
	}

	return configs, nil
}

func applyDefaults(cfg *AccountConfig) {
	for i := range cfg.Streamers {
		cfg.Streamers[i].Username = strings.ToLower(strings.TrimSpace(cfg.Streamers[i].Username))
	}
	if cfg.Notifications.Webhook != nil && cfg.Notifications.Webhook.Method == "" {
		cfg.Notifications.Webhook.Method = "POST"
	}
}

// getEnv looks up an environment variable with a per-account suffix.
func getEnv(key, username string) string {
	return os.Getenv(key + "_" + strings.ToUpper(username))
}

// applyEnvOverrides overlays environment variables for secrets.
// Every variable requires the username suffix: KEY_<UPPERCASE_USERNAME>
func applyEnvOverrides(cfg *AccountConfig) {
	u := cfg.Username

	if v := getEnv("AUTH_TOKEN", u); v != "" {
		cfg.Auth.AuthToken = v
	}

	if cfg.Notifications.Telegram != nil {
		if v := getEnv("TELEGRAM_TOKEN", u); v != "" {
			cfg.Notifications.Telegram.Token = v
		}
		if v := getEnv("TELEGRAM_CHAT_ID", u); v != "" {
			cfg.Notifications.Telegram.ChatID = v
		}
	}

	if cfg.Notifications.Discord != nil {
		if v := getEnv("DISCORD_WEBHOOK", u); v != "" {
			cfg.Notifications.Discord.WebhookURL = v
		}
	}

	if cfg.Notifications.Webhook != nil {
		if v := getEnv("WEBHOOK_URL", u); v != "" {
			cfg.Notifications.Webhook.Endpoint = v
		}
	}
}

// Validate checks the configuration for common errors.
func Validate(cfg *AccountConfig) error {
	if cfg.Username == "" {
		return fmt.Errorf("username is required")
	}
	u := strings.ToUpper(cfg.Username)

	if cfg.Auth.AuthToken == "" {
		return fmt.Errorf("account %s: auth token not set (use env var AUTH_TOKEN_%s)", cfg.Username, u)
	}

	if len(cfg.Streamers) == 0 {
		return fmt.Errorf("account %s: at least one streamer must be configured", cfg.Username)
	}

	if err := validateChat(cfg.StreamerDefaults.Chat); err != nil {
		return fmt.Errorf("account %s: streamer_defaults: %w", cfg.Username, err)
	}

	for i, s := range cfg.Streamers {
		if s.Username == "" {
			return fmt.Errorf("account %s: streamer at index %d has empty username", cfg.Username, i)
		}
		if s.Settings != nil {
			if err := validateChat(s.Settings.Chat); err != nil {
				return fmt.Errorf("account %s: streamer %s: %w", cfg.Username, s.Username, err)
			}
		}
	}

	if err := validatePubSub(cfg.PubSub); err != nil {
		return fmt.Errorf("account %s: pubsub: %w", cfg.Username, err)
	}

	if cfg.Notifications.Telegram != nil && cfg.Notifications.Telegram.Enabled {
		if cfg.Notifications.Telegram.Token == "" || cfg.Notifications.Telegram.ChatID == "" {
			return fmt.Errorf("account %s: telegram enabled but token or chat_id not set (use env vars TELEGRAM_TOKEN_%s and TELEGRAM_CHAT_ID_%s)", cfg.Username, u, u)
		}
	}

	if cfg.Notifications.Discord != nil && cfg.Notifications.Discord.Enabled {
		if cfg.Notifications.Discord.WebhookURL == "" {
			return fmt.Errorf("account %s: discord enabled but webhook_url not set (use env var DISCORD_WEBHOOK_%s)", cfg.Username, u)
		}
	}

	if cfg.Notifications.Webhook != nil && cfg.Notifications.Webhook.Enabled {
		if cfg.Notifications.Webhook.Endpoint == "" {
			return fmt.Errorf("account %s: webhook enabled but endpoint not set (use env var WEBHOOK_URL_%s)", cfg.Username, u)
		}
	}

	return nil
}

func validateChat(s string) error {
	if s == "" {
		return nil
	}
	if _, ok := model.ParseChatPresence(s); !ok {
		return fmt.Errorf("unknown chat presence %q (want ALWAYS, NEVER, ONLINE or OFFLINE)", s)
	}
	return nil
}

func validatePubSub(pc PubSubConfig) error {
	if pc.TopicCapacity < 0 || pc.TopicCapacity > constants.MaxTopicsPerConn {
		return fmt.Errorf("topic_capacity %d outside 1..%d", pc.TopicCapacity, constants.MaxTopicsPerConn)
	}
	if pc.HeartbeatMin > 0 && pc.HeartbeatMax > 0 && pc.HeartbeatMin > pc.HeartbeatMax {
		return fmt.Errorf("heartbeat_min %v exceeds heartbeat_max %v", pc.HeartbeatMin, pc.HeartbeatMax)
	}
	if pc.OfflineBackoffMin > 0 && pc.OfflineBackoffMax > 0 && pc.OfflineBackoffMin > pc.OfflineBackoffMax {
		return fmt.Errorf("offline_backoff_min %v exceeds offline_backoff_max %v", pc.OfflineBackoffMin, pc.OfflineBackoffMax)
	}
	return nil
}
