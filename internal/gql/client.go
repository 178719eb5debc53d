// Package gql provides a small GraphQL client for the Twitch GQL API with
// persisted-query requests, retries on transient failures and a circuit
// breaker.
package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
)

// ErrCircuitOpen is returned when the circuit breaker is open and requests
// are being skipped to avoid hammering a failing API.
var ErrCircuitOpen = errors.New("circuit breaker open: API requests temporarily suspended")

// HeaderSource supplies the headers attached to every request.
type HeaderSource interface {
	GetAuthHeaders() map[string]string
}

type circuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	cooldownUntil    time.Time
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	cb.consecutiveFails = 0
	cb.mu.Unlock()
}

// recordFailure opens the breaker after 10 consecutive failures, for 30s
// per extra failure up to 5 minutes.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFails++
	if cb.consecutiveFails >= 10 {
		backoff := min(time.Duration(cb.consecutiveFails-9)*30*time.Second, 5*time.Minute)
		cb.cooldownUntil = time.Now().Add(backoff)
	}
}

func (cb *circuitBreaker) shouldSkip() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.cooldownUntil)
}

// Client is the Twitch GQL HTTP client.
type Client struct {
	httpClient *http.Client
	headers    HeaderSource
	log        *logger.Logger
	breaker    *circuitBreaker

	url        string
	maxRetries int
	retryBase  time.Duration
}

// NewClient creates a Client that authenticates with headers.
func NewClient(headers HeaderSource, log *logger.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   constants.DefaultHTTPTimeout,
		},
		headers:    headers,
		log:        log,
		breaker:    &circuitBreaker{},
		url:        constants.GQLURL,
		maxRetries: constants.DefaultMaxRetries,
		retryBase:  time.Second,
	}
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    *gqlExtensions `json:"extensions,omitempty"`
}

type gqlExtensions struct {
	PersistedQuery *persistedQuery `json:"persistedQuery"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

// PostGQL sends a single persisted operation and returns the "data"
// portion of the response. GQL-level errors are logged, not returned.
func (c *Client) PostGQL(ctx context.Context, op constants.GQLOperation, variables map[string]any) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(gqlRequest{
		OperationName: op.OperationName,
		Variables:     variables,
		Extensions: &gqlExtensions{
			PersistedQuery: &persistedQuery{Version: 1, SHA256Hash: op.SHA256Hash},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling GQL request: %w", err)
	}

	respBody, err := c.doHTTPRequest(ctx, jsonBody, op.OperationName)
	if err != nil {
		return nil, err
	}

	var response gqlResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("parsing GQL response for %s: %w", op.OperationName, err)
	}
	if len(response.Errors) > 0 {
		c.log.Warn("GQL operation returned errors",
			"operation", op.OperationName,
			"error", response.Errors[0].Message)
	}
	return response.Data, nil
}

// doHTTPRequest posts jsonBody, retrying network errors, 429 and 5xx with
// exponential backoff. Individual retries log at DEBUG; only the final
// failure logs at WARN.
func (c *Client) doHTTPRequest(ctx context.Context, jsonBody []byte, opName string) ([]byte, error) {
	if c.breaker.shouldSkip() {
		c.log.Debug("Circuit breaker open, skipping request", "operation", opName)
		return nil, ErrCircuitOpen
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryBase
			c.log.Debug("Retrying GQL request",
				"operation", opName,
				"attempt", fmt.Sprintf("%d/%d", attempt, c.maxRetries),
				"backoff", backoff)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("creating GQL request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range c.headers.GetAuthHeaders() {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				c.log.Debug("GQL request failed, will retry", "operation", opName, "error", err)
				continue
			}
			c.breaker.recordFailure()
			c.log.Warn("GQL request failed after all retries",
				"operation", opName, "attempts", c.maxRetries+1, "error", err)
			return nil, fmt.Errorf("GQL request for %s failed: %w", opName, err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			if attempt < c.maxRetries {
				continue
			}
			return nil, fmt.Errorf("reading GQL response for %s: %w", opName, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt < c.maxRetries {
				c.log.Debug("GQL request returned retryable status, will retry",
					"operation", opName, "status", resp.StatusCode)
				continue
			}
			c.breaker.recordFailure()
			c.log.Warn("GQL request returned retryable status after all retries",
				"operation", opName, "status", resp.StatusCode, "attempts", c.maxRetries+1)
			return nil, fmt.Errorf("GQL request for %s returned status %d after %d retries",
				opName, resp.StatusCode, c.maxRetries)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GQL request for %s returned status %d: %s",
				opName, resp.StatusCode, string(body))
		}

		c.breaker.recordSuccess()
		return body, nil
	}

	c.breaker.recordFailure()
	return nil, fmt.Errorf("GQL request for %s exhausted retries", opName)
}
