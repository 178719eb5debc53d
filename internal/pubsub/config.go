package pubsub

import (
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/constants"
)

// Config holds the protocol parameters of a Pool.
type Config struct {
	URL               string
	TopicCapacity     int
	HeartbeatMin      time.Duration
	HeartbeatMax      time.Duration
	StaleThreshold    time.Duration
	ReconnectDelay    time.Duration
	SettleDelay       time.Duration
	OfflineBackoffMin time.Duration
	OfflineBackoffMax time.Duration
	ReadLimit         int64
	// WriteBuffer is the number of outbound frames queued per connection.
	WriteBuffer int
}

// DefaultConfig returns the parameters Twitch expects.
func DefaultConfig() Config {
	return Config{
		URL:               constants.PubSubURL,
		TopicCapacity:     constants.MaxTopicsPerConn,
		HeartbeatMin:      constants.HeartbeatMin,
		HeartbeatMax:      constants.HeartbeatMax,
		StaleThreshold:    constants.StaleThreshold,
		ReconnectDelay:    constants.ReconnectDelay,
		SettleDelay:       constants.SettleDelay,
		OfflineBackoffMin: constants.OfflineBackoffMin,
		OfflineBackoffMax: constants.OfflineBackoffMax,
		ReadLimit:         constants.ReadLimit,
		WriteBuffer:       128,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.TopicCapacity <= 0 {
		c.TopicCapacity = d.TopicCapacity
	}
	if c.HeartbeatMin <= 0 {
		c.HeartbeatMin = d.HeartbeatMin
	}
	if c.HeartbeatMax <= 0 {
		c.HeartbeatMax = d.HeartbeatMax
	}
	if c.HeartbeatMax < c.HeartbeatMin {
		c.HeartbeatMax = c.HeartbeatMin
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = d.StaleThreshold
	}
	// Negative delays disable the wait; zero means default.
	switch {
	case c.ReconnectDelay == 0:
		c.ReconnectDelay = d.ReconnectDelay
	case c.ReconnectDelay < 0:
		c.ReconnectDelay = 0
	}
	switch {
	case c.SettleDelay == 0:
		c.SettleDelay = d.SettleDelay
	case c.SettleDelay < 0:
		c.SettleDelay = 0
	}
	if c.OfflineBackoffMin <= 0 {
		c.OfflineBackoffMin = d.OfflineBackoffMin
	}
	if c.OfflineBackoffMax <= 0 {
		c.OfflineBackoffMax = d.OfflineBackoffMax
	}
	if c.OfflineBackoffMax < c.OfflineBackoffMin {
		c.OfflineBackoffMax = c.OfflineBackoffMin
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	// A freshly opened connection flushes a full topic set plus one PING.
	if c.WriteBuffer <= c.TopicCapacity {
		c.WriteBuffer = c.TopicCapacity + 16
	}
	return c
}
