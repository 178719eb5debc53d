// Package pubsub implements the Twitch PubSub WebSocket client: a pool of
// connections holding up to a fixed number of topics each, PING/PONG
// keepalive with staleness detection, and in-place reconnection that
// resubmits a dead connection's topics in order.
package pubsub

import "encoding/json"

// PubSub protocol frame types.
const (
	TypePing      = "PING"
	TypePong      = "PONG"
	TypeListen    = "LISTEN"
	TypeMessage   = "MESSAGE"
	TypeResponse  = "RESPONSE"
	TypeReconnect = "RECONNECT"
)

// Request is a frame sent from the client to the server.
type Request struct {
	Type  string       `json:"type"`
	Nonce string       `json:"nonce,omitempty"`
	Data  *RequestData `json:"data,omitempty"`
}

// RequestData carries the topics of a LISTEN request. AuthToken is only
// set for user-scoped topics.
type RequestData struct {
	Topics    []string `json:"topics"`
	AuthToken string   `json:"auth_token,omitempty"`
}

// Response is a frame received from the server.
type Response struct {
	Type  string          `json:"type"`
	Nonce string          `json:"nonce,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessageData is the payload of a MESSAGE frame. Message is itself a
// JSON document encoded as a string.
type MessageData struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}
