package auth

import "context"

// Provider is the authentication interface used by the Twitch client,
// the PubSub pool and the chat transport. *Authenticator satisfies it.
type Provider interface {
	Login(ctx context.Context) error
	AuthToken() string
	UserID() string
	GetAuthHeaders() map[string]string
}
