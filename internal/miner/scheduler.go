package miner

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/utils"
)

// runStatusLoop logs the points summary every constants.StatusInterval
// until ctx is done.
func (m *Miner) runStatusLoop(ctx context.Context) error {
	c := cron.New()
	c.Schedule(cron.Every(constants.StatusInterval), cron.FuncJob(m.logSummary))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// logSummary logs every streamer's balance and gain history, then the
// PubSub pool counters.
func (m *Miner) logSummary() {
	for _, s := range m.getStreamers() {
		s.Mu.RLock()
		username := s.Username
		balance := s.ChannelPoints
		online := s.IsOnline
		history := s.PrintHistory()
		s.Mu.RUnlock()

		args := []any{"streamer", username, "balance", utils.Millify(balance, 2), "online", online}
		if history != "" {
			args = append(args, "history", history)
		}
		m.log.Info("📊 Summary", args...)
	}

	stats := m.pool.Stats()
	m.log.Info("📊 PubSub",
		"connections", len(stats.Connections),
		"reconnects", stats.Reconnects,
		"duplicates", stats.Duplicates,
		"malformed", stats.Malformed)
}
