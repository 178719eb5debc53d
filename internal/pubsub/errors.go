package pubsub

import (
	"errors"
	"fmt"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("pubsub pool closed")
	// ErrConnectionReplaced is returned when a topic is assigned to a
	// connection that has been closed for reconnection. Callers retry
	// against the connection now occupying the slot.
	ErrConnectionReplaced = errors.New("pubsub connection replaced")
	// ErrCapacityReached is returned when a connection already holds its
	// maximum number of topics.
	ErrCapacityReached = errors.New("pubsub connection at topic capacity")
	// ErrWriteBufferFull is returned when the outbound queue of a
	// connection cannot take another frame.
	ErrWriteBufferFull = errors.New("pubsub write buffer full")
	// ErrListenRejected is wrapped by every ListenError.
	ErrListenRejected = errors.New("pubsub LISTEN rejected")
)

// ListenError reports a RESPONSE frame carrying an error for a LISTEN
// request. It is not retried.
type ListenError struct {
	Slot  int
	Topic model.Topic
	Nonce string
	Code  string
}

func (e *ListenError) Error() string {
	topic := e.Topic.String()
	if topic == "" {
		topic = "unknown topic"
	}
	return fmt.Sprintf("conn #%d: LISTEN %s rejected: %s", e.Slot, topic, e.Code)
}

func (e *ListenError) Unwrap() error { return ErrListenRejected }
