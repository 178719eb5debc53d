package pubsub

import (
	"context"
	"net"
	"time"

	"github.com/Guliveer/twitch-points-tracker/internal/constants"
)

// Reachability reports whether the network is usable. The reconnection
// controller polls it before rebuilding a connection.
type Reachability interface {
	Reachable(ctx context.Context) bool
}

// DialProbe treats the network as reachable when a TCP connection to Addr
// succeeds within Timeout.
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

// NewDialProbe returns a probe against addr, falling back to the default
// public resolver.
func NewDialProbe(addr string, timeout time.Duration) *DialProbe {
	if addr == "" {
		addr = constants.ReachabilityAddr
	}
	if timeout <= 0 {
		timeout = constants.ReachabilityTimeout
	}
	return &DialProbe{Addr: addr, Timeout: timeout}
}

// Reachable implements Reachability.
func (p *DialProbe) Reachable(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ReachabilityFunc adapts a function to Reachability.
type ReachabilityFunc func(ctx context.Context) bool

// Reachable implements Reachability.
func (f ReachabilityFunc) Reachable(ctx context.Context) bool { return f(ctx) }
