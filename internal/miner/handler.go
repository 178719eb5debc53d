package miner

import (
	"context"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
	"github.com/Guliveer/twitch-points-tracker/internal/utils"
)

// HandlePubSubMessage routes a decoded message to the streamer it targets.
// Messages for channels that are not tracked are ignored.
func (m *Miner) HandlePubSubMessage(ctx context.Context, msg *model.Message) {
	if msg == nil {
		return
	}

	streamer := m.streamerByChannelID(msg.ChannelID)
	if streamer == nil {
		m.log.Debug("Message for untracked channel", "topic", msg.Topic, "type", string(msg.Type))
		return
	}

	switch p := msg.Payload.(type) {
	case model.PointsEarned:
		m.handlePointsEarned(ctx, streamer, p)
	case model.PointsSpent:
		m.handlePointsSpent(streamer, p)
	case model.ClaimAvailable:
		m.handleClaimAvailable(ctx, streamer, p)
	case model.StreamUp:
		m.handleStreamUp(streamer)
	case model.StreamDown:
		m.handleStreamDown(ctx, streamer)
	case model.Viewcount:
		m.handleViewcount(ctx, streamer, p)
	case model.RaidUpdate:
		m.handleRaid(ctx, streamer, p)
	default:
		m.log.Debug("Unhandled PubSub message", "topic", msg.Topic, "type", string(msg.Type))
	}
}

func (m *Miner) handlePointsEarned(ctx context.Context, s *model.Streamer, p model.PointsEarned) {
	s.Mu.Lock()
	s.SetBalance(p.Balance)
	s.UpdateHistory(p.ReasonCode, p.Gain, 1)
	s.SetMultipliers(p.Multipliers)
	username := s.Username
	balance := s.ChannelPoints
	s.Mu.Unlock()

	m.metrics.PointsGained(username, p.ReasonCode, p.Gain)
	m.metrics.Balance(username, balance)
	m.emit(ctx, model.GainEvent(p.ReasonCode),
		utils.SignedMillify(p.Gain, 2)+" points",
		"streamer", username,
		"reason", p.ReasonCode,
		"balance", utils.Millify(balance, 2))
}

func (m *Miner) handlePointsSpent(s *model.Streamer, p model.PointsSpent) {
	s.Mu.Lock()
	s.SetBalance(p.Balance)
	username := s.Username
	balance := s.ChannelPoints
	s.Mu.Unlock()

	m.metrics.Balance(username, balance)
	m.log.Debug("Points spent", "streamer", username, "balance", balance)
}

// handleClaimAvailable claims the bonus. The balance changes with the
// points-earned message that follows a successful claim.
func (m *Miner) handleClaimAvailable(ctx context.Context, s *model.Streamer, p model.ClaimAvailable) {
	m.emit(ctx, model.EventBonusClaim, "Claiming bonus", "streamer", s.Username, "claim_id", p.ClaimID)
	if err := m.api.ClaimBonus(ctx, s, p.ClaimID); err != nil {
		m.log.Warn("Failed to claim bonus", "streamer", s.Username, "error", err)
	}
}

// handleStreamUp only records the hint; the online flip waits for an
// authoritative check triggered by a later viewcount.
func (m *Miner) handleStreamUp(s *model.Streamer) {
	s.Mu.Lock()
	s.StreamUpAt = m.now()
	s.Mu.Unlock()

	m.log.Debug("Stream up", "streamer", s.Username)
}

func (m *Miner) handleStreamDown(ctx context.Context, s *model.Streamer) {
	m.setOnline(ctx, s, false)
}

func (m *Miner) handleViewcount(ctx context.Context, s *model.Streamer, p model.Viewcount) {
	s.Mu.Lock()
	s.ViewersCount = p.Viewers
	elapsed := s.StreamUpElapsed(m.now())
	s.Mu.Unlock()

	if !elapsed {
		return
	}

	online, err := m.api.CheckStreamerOnline(ctx, s)
	if err != nil {
		m.log.Debug("Failed to check online status on viewcount", "streamer", s.Username, "error", err)
		return
	}
	m.setOnline(ctx, s, online)
}

func (m *Miner) handleRaid(ctx context.Context, s *model.Streamer, p model.RaidUpdate) {
	raid := p.Raid

	s.Mu.Lock()
	followRaid := s.Settings != nil && s.Settings.FollowRaid
	if !followRaid || s.Raid.Equal(&raid) {
		s.Mu.Unlock()
		return
	}
	s.Raid = &raid
	s.Mu.Unlock()

	m.emit(ctx, model.EventJoinRaid, "Joining raid", "streamer", s.Username, "target", raid.TargetLogin)
	if err := m.api.JoinRaid(ctx, raid.RaidID); err != nil {
		m.log.Warn("Failed to join raid", "streamer", s.Username, "raid_id", raid.RaidID, "error", err)
	}
}

// setOnline applies an online state. A transition emits an event; chat is
// reconciled every time, so a missed join or leave is repaired by the next
// update.
func (m *Miner) setOnline(ctx context.Context, s *model.Streamer, online bool) {
	now := m.now()

	s.Mu.Lock()
	var changed bool
	if online {
		changed = s.SetOnline(now)
	} else {
		changed = s.SetOffline(now)
	}
	username := s.Username
	balance := s.ChannelPoints
	history := s.PrintHistory()
	s.Mu.Unlock()

	if changed {
		m.metrics.Online(username, online)
		if online {
			m.emit(ctx, model.EventStreamerOnline, "Stream online",
				"streamer", username, "balance", utils.Millify(balance, 2))
		} else {
			args := []any{"streamer", username}
			if history != "" {
				args = append(args, "history", history)
			}
			m.emit(ctx, model.EventStreamerOffline, "Stream offline", args...)
		}
	}
	m.reconcileChat(s)
}

// emit logs an event, forwards it to the notification hook and counts it.
func (m *Miner) emit(ctx context.Context, event model.Event, msg string, args ...any) {
	m.metrics.Event(string(event))
	m.log.Event(ctx, event, msg, args...)
}
