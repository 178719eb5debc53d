package pubsub

import (
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// Deduplicator drops a MESSAGE identical to the one immediately before it
// on the same connection. It remembers exactly one message and is not
// safe for concurrent use; each connection's read loop owns one.
type Deduplicator struct {
	seen      bool
	timestamp time.Time
	identity  model.Identity
}

// Seen records (ts, id) and reports whether it matches the previous call.
func (d *Deduplicator) Seen(ts time.Time, id model.Identity) bool {
	if d.seen && d.timestamp.Equal(ts) && d.identity == id {
		return true
	}
	d.seen = true
	d.timestamp = ts
	d.identity = id
	return false
}
