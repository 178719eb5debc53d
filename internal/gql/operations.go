package gql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Guliveer/twitch-points-tracker/internal/constants"
)

// GetUserID fetches the Twitch user ID for a given login name.
func (c *Client) GetUserID(ctx context.Context, login string) (string, error) {
	data, err := c.PostGQL(ctx, constants.GQLGetIDFromLogin, map[string]any{"login": login})
	if err != nil {
		return "", fmt.Errorf("GetUserID for %s: %w", login, err)
	}

	var resp struct {
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parsing GetUserID response: %w", err)
	}
	if resp.User == nil || resp.User.ID == "" {
		return "", fmt.Errorf("user %s not found", login)
	}
	return resp.User.ID, nil
}

// IsStreamLive reports whether the channel currently has a live stream.
func (c *Client) IsStreamLive(ctx context.Context, channelID string) (bool, error) {
	data, err := c.PostGQL(ctx, constants.GQLWithIsStreamLiveQuery, map[string]any{"id": channelID})
	if err != nil {
		return false, fmt.Errorf("IsStreamLive for %s: %w", channelID, err)
	}

	var resp struct {
		User *struct {
			Stream *struct {
				ID string `json:"id"`
			} `json:"stream"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("parsing IsStreamLive response: %w", err)
	}
	return resp.User != nil && resp.User.Stream != nil, nil
}

// ClaimCommunityPoints claims a channel points bonus.
func (c *Client) ClaimCommunityPoints(ctx context.Context, claimID, channelID string) error {
	vars := map[string]any{
		"input": map[string]any{
			"channelID": channelID,
			"claimID":   claimID,
		},
	}
	if _, err := c.PostGQL(ctx, constants.GQLClaimCommunityPoints, vars); err != nil {
		return fmt.Errorf("ClaimCommunityPoints: %w", err)
	}
	return nil
}

// JoinRaid joins a raid by its ID.
func (c *Client) JoinRaid(ctx context.Context, raidID string) error {
	vars := map[string]any{
		"input": map[string]any{
			"raidID": raidID,
		},
	}
	if _, err := c.PostGQL(ctx, constants.GQLJoinRaid, vars); err != nil {
		return fmt.Errorf("JoinRaid: %w", err)
	}
	return nil
}
