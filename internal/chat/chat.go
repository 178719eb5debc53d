// Package chat keeps the account present in streamers' IRC chats. Join and
// Leave are idempotent; the miner decides when to call them.
package chat

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/gempir/go-twitch-irc/v4"

	"github.com/Guliveer/twitch-points-tracker/internal/logger"
)

// transport is the subset of *twitch.Client the Manager drives.
type transport interface {
	Join(channels ...string)
	Depart(channel string)
	Connect() error
	Disconnect() error
}

// Manager tracks which chats the account is in. go-twitch-irc handles
// PING/PONG keepalive and reconnection and rejoins channels on its own.
type Manager struct {
	mu sync.Mutex

	client  transport
	handler *Handler

	channels map[string]bool
	running  bool

	log *logger.Logger
}

// NewManager creates a Manager that logs in as username.
func NewManager(username, authToken string, log *logger.Logger) *Manager {
	handler := NewHandler(username, log)
	client := twitch.NewClient(strings.ToLower(username), "oauth:"+authToken)

	client.OnPrivateMessage(handler.OnPrivateMessage)
	client.OnConnect(handler.OnConnect)
	client.OnReconnectMessage(func(twitch.ReconnectMessage) {
		handler.OnReconnect()
	})
	client.OnSelfJoinMessage(handler.OnSelfJoinMessage)
	client.OnSelfPartMessage(handler.OnSelfPartMessage)

	return newManager(client, handler, log)
}

func newManager(client transport, handler *Handler, log *logger.Logger) *Manager {
	return &Manager{
		client:   client,
		handler:  handler,
		channels: make(map[string]bool),
		log:      log,
	}
}

// Join enters channel's chat. Joining a chat the account is already in is
// a no-op.
func (m *Manager) Join(channelName string) error {
	channel := strings.ToLower(channelName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channels[channel] {
		return nil
	}
	m.channels[channel] = true
	m.client.Join(channel)
	m.log.Info("Join IRC Chat", "channel", channel)
	return nil
}

// Leave departs channel's chat. Leaving a chat the account is not in is a
// no-op.
func (m *Manager) Leave(channelName string) error {
	channel := strings.ToLower(channelName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.channels[channel] {
		return nil
	}
	delete(m.channels, channel)
	m.client.Depart(channel)
	m.log.Info("Leave IRC Chat", "channel", channel)
	return nil
}

// Run connects to Twitch IRC and blocks until ctx is cancelled or the
// connection fails for good.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.client.Connect()
	}()

	select {
	case <-ctx.Done():
		m.Close()
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			m.log.Error("IRC connection error", "error", err)
			return err
		}
		return nil
	}
}

// Close departs every joined chat and disconnects.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false

	for channel := range m.channels {
		m.client.Depart(channel)
	}
	clear(m.channels)

	if err := m.client.Disconnect(); err != nil {
		m.log.Debug("IRC disconnect", "error", err)
	}
	m.log.Info("IRC chat manager closed")
}

// IsJoined reports whether the account is in channel's chat.
func (m *Manager) IsJoined(channelName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[strings.ToLower(channelName)]
}

// JoinedChannels returns the joined chats, sorted.
func (m *Manager) JoinedChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make([]string, 0, len(m.channels))
	for channel := range m.channels {
		channels = append(channels, channel)
	}
	slices.Sort(channels)
	return channels
}
