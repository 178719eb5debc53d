package twitch

import (
	"context"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// API is the set of Twitch calls the miner makes. *Client satisfies it.
type API interface {
	GetChannelID(ctx context.Context, username string) (string, error)
	CheckStreamerOnline(ctx context.Context, s *model.Streamer) (bool, error)
	ClaimBonus(ctx context.Context, s *model.Streamer, claimID string) error
	JoinRaid(ctx context.Context, raidID string) error
}
