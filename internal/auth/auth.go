// Package auth validates the account's OAuth token and supplies the
// headers every Twitch request carries.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
)

// ErrInvalidToken is returned when the validate endpoint rejects the token.
var ErrInvalidToken = errors.New("invalid auth token")

// Authenticator holds the account's token and the identity it validated
// to. It is safe for concurrent use.
type Authenticator struct {
	mu sync.RWMutex

	username      string
	authToken     string
	userID        string
	deviceID      string
	clientSession string

	validateURL string
	log         *logger.Logger
	httpClient  *http.Client
}

// NewAuthenticator creates an Authenticator for the account's configured token.
func NewAuthenticator(cfg *config.AccountConfig, log *logger.Logger) *Authenticator {
	return &Authenticator{
		username:      strings.ToLower(cfg.Username),
		authToken:     cfg.Auth.AuthToken,
		deviceID:      generateDeviceID(),
		clientSession: uuid.NewString(),
		validateURL:   constants.ValidateURL,
		log:           log,
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
	}
}

// Login validates the token against the OAuth2 validate endpoint and
// records the user ID it belongs to.
func (a *Authenticator) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.authToken == "" {
		return fmt.Errorf("%w: no token configured for %s", ErrInvalidToken, a.username)
	}
	if err := a.validateToken(ctx); err != nil {
		return err
	}
	a.log.Info("🔑 Authenticated", "user_id", a.userID, "session", a.clientSession)
	return nil
}

// validateToken checks that the current token is valid and belongs to the
// configured user. Must be called with mu held.
func (a *Authenticator) validateToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.validateURL, nil)
	if err != nil {
		return fmt.Errorf("create validate request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+a.authToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("validate token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token validation failed with status %d", resp.StatusCode)
	}

	var result struct {
		Login  string `json:"login"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode validate response: %w", err)
	}

	if !strings.EqualFold(result.Login, a.username) {
		return fmt.Errorf("authenticated as %q but config expects %q", result.Login, a.username)
	}

	a.userID = result.UserID
	return nil
}

// AuthToken returns the current OAuth token.
func (a *Authenticator) AuthToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authToken
}

// UserID returns the authenticated user's Twitch numeric ID.
func (a *Authenticator) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

// ClientSession returns the per-run session ID.
func (a *Authenticator) ClientSession() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.clientSession
}

// GetAuthHeaders returns the headers needed for all Twitch API requests.
func (a *Authenticator) GetAuthHeaders() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return map[string]string{
		"Authorization":     "OAuth " + a.authToken,
		"Client-Id":         constants.ClientID,
		"Client-Session-Id": a.clientSession,
		"X-Device-Id":       a.deviceID,
		"User-Agent":        constants.DefaultUserAgent,
	}
}

// generateDeviceID creates a random 32-character alphanumeric device ID.
func generateDeviceID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
