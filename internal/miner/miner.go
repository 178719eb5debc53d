// Package miner owns the tracked streamers of one account. It routes PubSub
// messages into streamer state, keeps chat presence in line with each
// streamer's chat setting, and orchestrates startup and shutdown.
package miner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/metrics"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
	"github.com/Guliveer/twitch-points-tracker/internal/pubsub"
	"github.com/Guliveer/twitch-points-tracker/internal/twitch"
)

// ErrUnknownStreamer is returned for a username that is not tracked.
var ErrUnknownStreamer = errors.New("unknown streamer")

// Chat is the chat-presence transport. *chat.Manager satisfies it. When
// the value also has a Run(ctx) error method, Miner.Run runs it.
type Chat interface {
	Join(channel string) error
	Leave(channel string) error
	IsJoined(channel string) bool
}

// Tokens supplies the account's credentials.
type Tokens interface {
	AuthToken() string
	UserID() string
}

// Deps are the collaborators a Miner calls out to.
type Deps struct {
	API     twitch.API
	Chat    Chat
	Tokens  Tokens
	Metrics *metrics.Account
	// Probe decides whether the network is up between reconnections.
	// Defaults to the probe configured in the account's pubsub section.
	Probe pubsub.Reachability
	// Now defaults to time.Now.
	Now func() time.Time
}

// Miner tracks the streamers of a single account. It implements
// [pubsub.MessageHandler].
type Miner struct {
	cfg     *config.AccountConfig
	log     *logger.Logger
	api     twitch.API
	chat    Chat
	tokens  Tokens
	metrics *metrics.Account
	now     func() time.Time

	pool *pubsub.Pool

	running atomic.Bool

	streamersMu sync.RWMutex
	streamers   []*model.Streamer
	byChannel   map[string]*model.Streamer

	// chatMu makes each reconciliation's check-then-act on chat atomic.
	chatMu sync.Mutex
}

// New creates a Miner for cfg. The PubSub pool is created here but opens
// no connection until Run subscribes the streamers' topics.
func New(cfg *config.AccountConfig, log *logger.Logger, deps Deps) *Miner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Chat == nil {
		deps.Chat = noChat{}
	}
	probe := deps.Probe
	if probe == nil {
		probe = cfg.PubSub.Probe()
	}

	m := &Miner{
		cfg:       cfg,
		log:       log,
		api:       deps.API,
		chat:      deps.Chat,
		tokens:    deps.Tokens,
		metrics:   deps.Metrics,
		now:       deps.Now,
		byChannel: make(map[string]*model.Streamer),
	}
	m.pool = pubsub.NewPool(cfg.PubSub.ToPubSub(), deps.Tokens, probe, m, deps.Metrics, log)
	return m
}

// Username returns the account username.
func (m *Miner) Username() string {
	return m.cfg.Username
}

// IsRunning reports whether Run has finished startup and not yet returned.
func (m *Miner) IsRunning() bool {
	return m.running.Load()
}

// PubSubStats returns the pool's connection state.
func (m *Miner) PubSubStats() pubsub.Stats {
	return m.pool.Stats()
}

// Run resolves the configured streamers, subscribes their topics and
// routes messages until ctx is cancelled or the pool fails.
//  1. Resolve channel IDs (worker pool)
//  2. Subscribe the user topic and every streamer's topics
//  3. Dispatch PubSub messages, run chat, and check initial online state
//     followed by one chat reconciliation pass
func (m *Miner) Run(ctx context.Context) error {
	defer m.running.Store(false)
	defer m.pool.Shutdown()

	startTime := m.now()
	m.log.Info("🚀 Starting tracker", "account", m.cfg.Username)

	if err := m.resolveStreamers(ctx); err != nil {
		return fmt.Errorf("resolving streamers: %w", err)
	}

	topics := m.allTopics()
	if err := m.pool.SubmitAll(ctx, topics); err != nil {
		return fmt.Errorf("subscribing to PubSub topics: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.pool.Run(gctx)
	})

	if runner, ok := m.chat.(interface{ Run(context.Context) error }); ok {
		g.Go(func() error {
			if err := runner.Run(gctx); err != nil {
				m.log.Error("Chat stopped, PubSub tracking continues", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		m.checkInitialOnline(gctx)
		m.reconcileAll()
		return nil
	})

	g.Go(func() error {
		return m.runStatusLoop(gctx)
	})

	m.running.Store(true)
	m.log.Info("✅ Tracker started",
		"streamers", len(m.getStreamers()),
		"pubsub_topics", len(topics),
		"connections", m.pool.ConnectionCount(),
		"startup_duration", m.now().Sub(startTime).Round(time.Millisecond),
	)

	err := g.Wait()
	m.logSummary()
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, pubsub.ErrPoolClosed)) {
		return nil
	}
	return err
}

// SetChatPresence changes a streamer's chat setting and reconciles chat
// presence with it.
func (m *Miner) SetChatPresence(username string, presence model.ChatPresence) error {
	s := m.streamerByUsername(username)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrUnknownStreamer, username)
	}

	s.Mu.Lock()
	if s.Settings == nil {
		s.Settings = model.DefaultStreamerSettings()
	}
	s.Settings.Chat = presence
	s.Mu.Unlock()

	m.log.Info("Chat presence changed", "streamer", s.Username, "chat", presence)
	m.reconcileChat(s)
	return nil
}

// Streamers returns the tracked streamers. Callers must only read them
// under each streamer's Mu; prefer Snapshot.
func (m *Miner) Streamers() []*model.Streamer {
	return m.getStreamers()
}

// Snapshot returns a read-only copy of every tracked streamer.
func (m *Miner) Snapshot() []model.StreamerSnapshot {
	streamers := m.getStreamers()
	out := make([]model.StreamerSnapshot, 0, len(streamers))
	for _, s := range streamers {
		out = append(out, s.Snapshot())
	}
	return out
}

// reconcileChat joins or leaves the streamer's chat so presence matches
// its chat setting and online state. Join and leave are only issued when
// they change something.
func (m *Miner) reconcileChat(s *model.Streamer) {
	s.Mu.RLock()
	presence := s.ChatPresence()
	online := s.IsOnline
	username := s.Username
	s.Mu.RUnlock()

	m.chatMu.Lock()
	defer m.chatMu.Unlock()

	switch model.DecideChat(presence, online) {
	case model.ChatJoin:
		if m.chat.IsJoined(username) {
			return
		}
		if err := m.chat.Join(username); err != nil {
			m.log.Warn("Failed to join chat", "streamer", username, "error", err)
		}
	case model.ChatLeave:
		if !m.chat.IsJoined(username) {
			return
		}
		if err := m.chat.Leave(username); err != nil {
			m.log.Warn("Failed to leave chat", "streamer", username, "error", err)
		}
	}
}

func (m *Miner) reconcileAll() {
	for _, s := range m.getStreamers() {
		m.reconcileChat(s)
	}
}

// noChat is used when no chat transport is configured.
type noChat struct{}

func (noChat) Join(string) error    { return nil }
func (noChat) Leave(string) error   { return nil }
func (noChat) IsJoined(string) bool { return false }
