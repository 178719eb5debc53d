package miner

import (
	"context"
	"fmt"
	"strings"

	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
	"github.com/Guliveer/twitch-points-tracker/internal/workerpool"
)

func (m *Miner) getStreamers() []*model.Streamer {
	m.streamersMu.RLock()
	defer m.streamersMu.RUnlock()
	result := make([]*model.Streamer, len(m.streamers))
	copy(result, m.streamers)
	return result
}

func (m *Miner) streamerByChannelID(channelID string) *model.Streamer {
	m.streamersMu.RLock()
	defer m.streamersMu.RUnlock()
	return m.byChannel[channelID]
}

func (m *Miner) streamerByUsername(username string) *model.Streamer {
	m.streamersMu.RLock()
	defer m.streamersMu.RUnlock()
	for _, s := range m.streamers {
		if strings.EqualFold(s.Username, username) {
			return s
		}
	}
	return nil
}

func (m *Miner) setStreamers(streamers []*model.Streamer) {
	m.streamersMu.Lock()
	defer m.streamersMu.Unlock()
	m.streamers = streamers
	clear(m.byChannel)
	for _, s := range streamers {
		m.byChannel[s.ChannelID] = s
	}
}

// resolveStreamers looks up the channel ID of every configured streamer
// that is not blacklisted. Streamers that cannot be resolved are skipped;
// configuration order is preserved.
func (m *Miner) resolveStreamers(ctx context.Context) error {
	defaults := m.cfg.Defaults()

	blacklist := make(map[string]bool, len(m.cfg.Blacklist))
	for _, name := range m.cfg.Blacklist {
		blacklist[strings.ToLower(name)] = true
	}

	seen := make(map[string]bool, len(m.cfg.Streamers))
	var wanted []config.StreamerConfig
	for _, sc := range m.cfg.Streamers {
		username := strings.ToLower(strings.TrimSpace(sc.Username))
		if username == "" || blacklist[username] || seen[username] {
			continue
		}
		seen[username] = true
		sc.Username = username
		wanted = append(wanted, sc)
	}

	m.log.Info("Resolving channel IDs", "count", len(wanted), "workers", constants.StartupWorkers)

	streamers := workerpool.Map(ctx, wanted, constants.StartupWorkers, func(ctx context.Context, sc config.StreamerConfig) (*model.Streamer, bool) {
		channelID, err := m.api.GetChannelID(ctx, sc.Username)
		if err != nil {
			m.log.Warn("Failed to resolve channel ID, skipping", "streamer", sc.Username, "error", err)
			return nil, false
		}
		if channelID == "" {
			m.log.Warn("Empty channel ID, skipping", "streamer", sc.Username)
			return nil, false
		}

		s := model.NewStreamer(sc.Username)
		s.ChannelID = channelID
		s.Settings = sc.Settings.ToStreamerSettings(defaults)

		m.log.Debug("📋 Loaded", "streamer", sc.Username, "channel_id", channelID)
		return s, true
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(streamers) == 0 {
		return fmt.Errorf("no streamers could be resolved for account %s", m.cfg.Username)
	}

	m.setStreamers(streamers)
	m.log.Info("📋 Streamers resolved", "count", len(streamers), "configured", len(wanted))
	return nil
}

// allTopics lists the account's PubSub topics: the user's points topic
// first, then each streamer's topics in configuration order.
func (m *Miner) allTopics() []model.Topic {
	topics := []model.Topic{model.NewTopic(model.TopicCommunityPoints, m.tokens.UserID())}
	for _, s := range m.getStreamers() {
		topics = append(topics, streamerTopics(s)...)
	}
	return topics
}

func streamerTopics(s *model.Streamer) []model.Topic {
	s.Mu.RLock()
	defer s.Mu.RUnlock()

	topics := []model.Topic{model.NewTopic(model.TopicVideoPlayback, s.ChannelID)}
	if s.Settings != nil && s.Settings.FollowRaid {
		topics = append(topics, model.NewTopic(model.TopicRaid, s.ChannelID))
	}
	return topics
}

// checkInitialOnline asks for the authoritative online state of every
// streamer concurrently and marks the live ones online. Streamers found
// offline are reconciled afterwards by the caller.
func (m *Miner) checkInitialOnline(ctx context.Context) {
	streamers := m.getStreamers()
	m.log.Info("Checking initial online status", "count", len(streamers), "workers", constants.StartupWorkers)

	_ = workerpool.Run(ctx, streamers, constants.StartupWorkers, func(ctx context.Context, s *model.Streamer) error {
		online, err := m.api.CheckStreamerOnline(ctx, s)
		if err != nil {
			m.log.Debug("Failed to check online status", "streamer", s.Username, "error", err)
			return nil
		}
		if online {
			m.setOnline(ctx, s, true)
		}
		return nil
	})

	online := 0
	for _, s := range streamers {
		s.Mu.RLock()
		if s.IsOnline {
			online++
		}
		s.Mu.RUnlock()
	}
	m.log.Info("Initial online status check complete",
		"online", online, "offline", len(streamers)-online, "total", len(streamers))
}
