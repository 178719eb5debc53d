package gql

import "context"

// Operations is the set of GQL calls the tracker makes.
// *Client satisfies this interface.
type Operations interface {
	GetUserID(ctx context.Context, login string) (string, error)
	IsStreamLive(ctx context.Context, channelID string) (bool, error)
	ClaimCommunityPoints(ctx context.Context, claimID, channelID string) error
	JoinRaid(ctx context.Context, raidID string) error
}
