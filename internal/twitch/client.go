// Package twitch provides the Twitch API client the miner calls for
// channel lookups, authoritative online checks, bonus claims and raids.
package twitch

import (
	"context"
	"fmt"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/auth"
	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/gql"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// Client combines the authenticator and the GQL client.
type Client struct {
	Auth *auth.Authenticator
	GQL  gql.Operations
	Log  *logger.Logger

	now func() time.Time
}

// NewClient creates a Client for the account.
func NewClient(cfg *config.AccountConfig, log *logger.Logger) *Client {
	authenticator := auth.NewAuthenticator(cfg, log)
	return &Client{
		Auth: authenticator,
		GQL:  gql.NewClient(authenticator, log),
		Log:  log,
		now:  time.Now,
	}
}

// Login validates the account's token.
func (c *Client) Login(ctx context.Context) error {
	return c.Auth.Login(ctx)
}

// AuthToken returns the account's OAuth token.
func (c *Client) AuthToken() string { return c.Auth.AuthToken() }

// UserID returns the authenticated user's ID.
func (c *Client) UserID() string { return c.Auth.UserID() }

// GetChannelID fetches the channel ID for a streamer username.
func (c *Client) GetChannelID(ctx context.Context, username string) (string, error) {
	return c.GQL.GetUserID(ctx, username)
}

// CheckStreamerOnline asks Twitch whether the streamer is live. It does not
// change the streamer; the caller applies the transition. A streamer that
// went offline less than a minute ago is reported offline without a request.
func (c *Client) CheckStreamerOnline(ctx context.Context, streamer *model.Streamer) (bool, error) {
	streamer.Mu.RLock()
	isOnline := streamer.IsOnline
	offlineAt := streamer.OfflineAt
	channelID := streamer.ChannelID
	username := streamer.Username
	streamer.Mu.RUnlock()

	if !isOnline && !offlineAt.IsZero() && c.now().Sub(offlineAt) < constants.OfflineDebounce {
		return false, nil
	}

	live, err := c.GQL.IsStreamLive(ctx, channelID)
	if err != nil {
		return isOnline, fmt.Errorf("checking %s online: %w", username, err)
	}
	return live, nil
}

// ClaimBonus claims a channel points bonus for a streamer.
func (c *Client) ClaimBonus(ctx context.Context, streamer *model.Streamer, claimID string) error {
	streamer.Mu.RLock()
	channelID := streamer.ChannelID
	username := streamer.Username
	streamer.Mu.RUnlock()

	c.Log.Debug("Claiming channel points bonus", "streamer", username, "claim_id", claimID)
	return c.GQL.ClaimCommunityPoints(ctx, claimID, channelID)
}

// JoinRaid joins a raid by its ID.
func (c *Client) JoinRaid(ctx context.Context, raidID string) error {
	c.Log.Debug("Joining raid", "raid_id", raidID)
	return c.GQL.JoinRaid(ctx, raidID)
}
