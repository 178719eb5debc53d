package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/utils"
)

// streamUpDebounce is how long a stream-up hint is trusted over the
// authoritative online check.
const streamUpDebounce = 120 * time.Second

// Streamer is the tracked state of one Twitch channel. Fields are guarded
// by Mu; only the message router mutates them.
type Streamer struct {
	Mu sync.RWMutex `json:"-"`

	Username    string `json:"username"`
	ChannelID   string `json:"channel_id"`
	DisplayName string `json:"display_name,omitempty"`

	Settings *StreamerSettings `json:"settings,omitempty"`

	IsOnline bool `json:"is_online"`

	StreamUpAt time.Time `json:"stream_up_at"`
	OnlineAt   time.Time `json:"online_at"`
	OfflineAt  time.Time `json:"offline_at"`

	ChannelPoints int `json:"channel_points"`
	ViewersCount  int `json:"viewers_count"`

	ActiveMultipliers  []PointsMultiplier `json:"active_multipliers,omitempty"`
	WatchStreakMissing bool               `json:"watch_streak_missing"`

	Raid *Raid `json:"raid,omitempty"`

	History map[string]*HistoryEntry `json:"history,omitempty"`

	StreamerURL string `json:"streamer_url"`
}

// PointsMultiplier represents an active channel points multiplier.
type PointsMultiplier struct {
	Factor float64 `json:"factor"`
}

// HistoryEntry tracks cumulative points earned for a specific reason code.
type HistoryEntry struct {
	Counter int `json:"counter"`
	Amount  int `json:"amount"`
}

// NewStreamer creates a new Streamer with default settings.
func NewStreamer(username string) *Streamer {
	return &Streamer{
		Username:    username,
		Settings:    DefaultStreamerSettings(),
		History:     make(map[string]*HistoryEntry),
		StreamerURL: fmt.Sprintf("https://www.twitch.tv/%s", username),
	}
}

// SetOffline marks the streamer offline and reports whether the state
// changed. Must be called with Mu held.
func (s *Streamer) SetOffline(now time.Time) bool {
	if !s.IsOnline {
		return false
	}
	s.OfflineAt = now
	s.IsOnline = false
	return true
}

// SetOnline marks the streamer online and reports whether the state
// changed. Must be called with Mu held.
func (s *Streamer) SetOnline(now time.Time) bool {
	if s.IsOnline {
		return false
	}
	s.OnlineAt = now
	s.IsOnline = true
	s.WatchStreakMissing = true
	return true
}

// SetBalance stores a balance reported by the server. Negative values are
// ignored. Must be called with Mu held.
func (s *Streamer) SetBalance(balance int) {
	if balance < 0 {
		return
	}
	s.ChannelPoints = balance
}

// UpdateHistory adds earned points for a given reason code.
func (s *Streamer) UpdateHistory(reasonCode string, earned int, counter int) {
	if s.History == nil {
		s.History = make(map[string]*HistoryEntry)
	}
	if _, ok := s.History[reasonCode]; !ok {
		s.History[reasonCode] = &HistoryEntry{}
	}
	s.History[reasonCode].Counter += counter
	s.History[reasonCode].Amount += earned

	if reasonCode == "WATCH_STREAK" {
		s.WatchStreakMissing = false
	}
}

// SetMultipliers replaces the active multiplier factors.
func (s *Streamer) SetMultipliers(factors []float64) {
	s.ActiveMultipliers = s.ActiveMultipliers[:0]
	for _, f := range factors {
		s.ActiveMultipliers = append(s.ActiveMultipliers, PointsMultiplier{Factor: f})
	}
}

// StreamUpElapsed reports whether no stream-up hint was seen within the
// debounce window.
func (s *Streamer) StreamUpElapsed(now time.Time) bool {
	return s.StreamUpAt.IsZero() || now.Sub(s.StreamUpAt) > streamUpDebounce
}

// TotalPointsMultiplier returns the sum of all active multiplier factors.
func (s *Streamer) TotalPointsMultiplier() float64 {
	var total float64
	for _, multiplier := range s.ActiveMultipliers {
		total += multiplier.Factor
	}
	return total
}

// ChatPresence returns the configured chat intent, ChatNever when unset.
func (s *Streamer) ChatPresence() ChatPresence {
	if s.Settings == nil {
		return ChatNever
	}
	return s.Settings.Chat
}

// PrintHistory formats the gain history as "REASON(n times, X gained)",
// sorted by reason code.
func (s *Streamer) PrintHistory() string {
	reasons := make([]string, 0, len(s.History))
	for reason := range s.History {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		entry := s.History[reason]
		parts = append(parts, fmt.Sprintf("%s(%d times, %s gained)",
			reason, entry.Counter, utils.Millify(entry.Amount, 2)))
	}
	return strings.Join(parts, "; ")
}

// String returns a human-readable representation of the streamer.
func (s *Streamer) String() string {
	return fmt.Sprintf("Streamer(username=%s, channel_id=%s, channel_points=%s)",
		s.Username, s.ChannelID, utils.Millify(s.ChannelPoints, 2))
}

// MarshalJSON implements custom JSON marshaling to handle the mutex.
func (s *Streamer) MarshalJSON() ([]byte, error) {
	type Alias Streamer
	s.Mu.RLock()
	defer s.Mu.RUnlock()
	return json.Marshal((*Alias)(s))
}

// StreamerSnapshot is a read-only copy of a Streamer handed to reporting code.
type StreamerSnapshot struct {
	Username      string                  `json:"username"`
	ChannelID     string                  `json:"channel_id"`
	IsOnline      bool                    `json:"is_online"`
	OnlineAt      time.Time               `json:"online_at"`
	OfflineAt     time.Time               `json:"offline_at"`
	ChannelPoints int                     `json:"channel_points"`
	ViewersCount  int                     `json:"viewers_count"`
	Multiplier    float64                 `json:"multiplier"`
	Chat          string                  `json:"chat"`
	History       map[string]HistoryEntry `json:"history"`
}

// Snapshot copies the streamer under a read lock.
func (s *Streamer) Snapshot() StreamerSnapshot {
	s.Mu.RLock()
	defer s.Mu.RUnlock()

	history := make(map[string]HistoryEntry, len(s.History))
	for reason, entry := range s.History {
		history[reason] = *entry
	}
	return StreamerSnapshot{
		Username:      s.Username,
		ChannelID:     s.ChannelID,
		IsOnline:      s.IsOnline,
		OnlineAt:      s.OnlineAt,
		OfflineAt:     s.OfflineAt,
		ChannelPoints: s.ChannelPoints,
		ViewersCount:  s.ViewersCount,
		Multiplier:    s.TotalPointsMultiplier(),
		Chat:          s.ChatPresence().String(),
		History:       history,
	}
}

// ChatPresence controls when the tracker joins a streamer's IRC chat.
type ChatPresence int

const (
	// ChatAlways means always stay in chat.
	ChatAlways ChatPresence = iota
	// ChatNever means never join chat.
	ChatNever
	// ChatOnline means join chat only when the streamer is online.
	ChatOnline
	// ChatOffline means join chat only when the streamer is offline.
	ChatOffline
)

// String returns the string representation of a ChatPresence value.
func (c ChatPresence) String() string {
	switch c {
	case ChatAlways:
		return "ALWAYS"
	case ChatNever:
		return "NEVER"
	case ChatOnline:
		return "ONLINE"
	case ChatOffline:
		return "OFFLINE"
	default:
		return "ONLINE"
	}
}

// ChatAction is the outcome of chat reconciliation.
type ChatAction int

const (
	ChatNoop ChatAction = iota
	ChatJoin
	ChatLeave
)

// DecideChat maps a chat intent and online state to the action that
// brings chat presence in line with it.
func DecideChat(presence ChatPresence, isOnline bool) ChatAction {
	switch presence {
	case ChatAlways:
		return ChatJoin
	case ChatOnline:
		if isOnline {
			return ChatJoin
		}
		return ChatLeave
	case ChatOffline:
		if isOnline {
			return ChatLeave
		}
		return ChatJoin
	default:
		return ChatNoop
	}
}

// ParseChatPresence converts a string to a ChatPresence value. The second
// result is false for unknown input, which maps to ChatOnline.
func ParseChatPresence(s string) (ChatPresence, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ALWAYS":
		return ChatAlways, true
	case "NEVER":
		return ChatNever, true
	case "ONLINE":
		return ChatOnline, true
	case "OFFLINE":
		return ChatOffline, true
	default:
		return ChatOnline, false
	}
}

// StreamerSettings holds per-streamer feature toggles.
type StreamerSettings struct {
	FollowRaid bool         `json:"follow_raid" yaml:"follow_raid"`
	Chat       ChatPresence `json:"chat" yaml:"chat"`
}

// DefaultStreamerSettings returns StreamerSettings with default values.
func DefaultStreamerSettings() *StreamerSettings {
	return &StreamerSettings{
		FollowRaid: true,
		Chat:       ChatOnline,
	}
}
