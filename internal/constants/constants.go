// Package constants defines Twitch endpoints, client identifiers, persisted
// GQL operations, and the default timing values of the PubSub protocol.
package constants

import "time"

const (
	// TwitchURL is the base Twitch web URL.
	TwitchURL = "https://www.twitch.tv"
	// PubSubURL is the Twitch PubSub WebSocket endpoint.
	PubSubURL = "wss://pubsub-edge.twitch.tv/v1"
	// GQLURL is the Twitch GraphQL API endpoint.
	GQLURL = "https://gql.twitch.tv/gql"
	// ValidateURL is the Twitch OAuth2 token validation endpoint.
	ValidateURL = "https://id.twitch.tv/oauth2/validate"
)

const (
	// ClientID is the Twitch client ID (TV client).
	ClientID = "ue6666qo983tsx6so1t0vnawi233wa"
	// DefaultUserAgent is the user-agent string used for API requests.
	DefaultUserAgent = "Mozilla/5.0 (Linux; Android 7.1; Smart Box C1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// PubSub protocol defaults. Every value can be overridden through the
// account's pubsub config section.
const (
	// MaxTopicsPerConn is the server-imposed topic limit per WebSocket.
	MaxTopicsPerConn = 50
	// HeartbeatMin is the lower bound of the random PING interval.
	HeartbeatMin = 25 * time.Second
	// HeartbeatMax is the upper bound of the random PING interval.
	HeartbeatMax = 30 * time.Second
	// StaleThreshold is how long a connection may go without a PONG.
	StaleThreshold = 5 * time.Minute
	// ReconnectDelay is the pause before a dead connection is rebuilt.
	ReconnectDelay = 30 * time.Second
	// SettleDelay is the pause between opening a replacement connection
	// and resubmitting the topics of the connection it replaced.
	SettleDelay = 30 * time.Second
	// OfflineBackoffMin is the shortest wait between reachability probes.
	OfflineBackoffMin = 1 * time.Minute
	// OfflineBackoffMax is the longest wait between reachability probes.
	OfflineBackoffMax = 3 * time.Minute
	// ReachabilityAddr is dialed to decide whether the network is up.
	ReachabilityAddr = "1.1.1.1:53"
	// ReachabilityTimeout bounds a single reachability probe.
	ReachabilityTimeout = 3 * time.Second
	// ReadLimit caps the size of a single inbound frame.
	ReadLimit = 128 << 10
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 15 * time.Second
	// DefaultMaxRetries is the default number of retries for GQL requests.
	DefaultMaxRetries = 3
	// StartupWorkers is the number of concurrent workers for startup lookups.
	StartupWorkers = 5
	// StreamUpDebounce is how long a stream-up hint suppresses online checks.
	StreamUpDebounce = 120 * time.Second
	// OfflineDebounce is how long after going offline an online check is skipped.
	OfflineDebounce = 60 * time.Second
	// DefaultGracefulShutdownTimeout is the timeout for HTTP server shutdown.
	DefaultGracefulShutdownTimeout = 5 * time.Second
	// ForcedExitTimeout bounds the whole shutdown sequence.
	ForcedExitTimeout = 30 * time.Second
	// StatusInterval is how often each tracker logs its points summary.
	StatusInterval = 30 * time.Minute
)

// GQLOperation represents a persisted GQL query with its operation name and SHA256 hash.
type GQLOperation struct {
	OperationName string
	SHA256Hash    string
}

var (
	GQLWithIsStreamLiveQuery = GQLOperation{
		OperationName: "WithIsStreamLiveQuery",
		SHA256Hash:    "04e46329a6786ff3a81c01c50bfa5d725902507a0deb83b0edbf7abe7a3716ea",
	}
	GQLClaimCommunityPoints = GQLOperation{
		OperationName: "ClaimCommunityPoints",
		SHA256Hash:    "46aaeebe02c99afdf4fc97c7c0cba964124bf6b0af229395f1f6d1feed05b3d0",
	}
	GQLJoinRaid = GQLOperation{
		OperationName: "JoinRaid",
		SHA256Hash:    "c6a332a86d1087fbbb1a8623aa01bd1313d2386e7c63be60fdb2d1901f01a4ae",
	}
	GQLGetIDFromLogin = GQLOperation{
		OperationName: "GetIDFromLogin",
		SHA256Hash:    "94e82a7b1e3c21e186daa73ee2afc4b8f23bade1fbbff6fe8ac133f50a2f58ca",
	}
)
