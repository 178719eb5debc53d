package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/metrics"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// MessageHandler processes decoded PubSub messages routed from the pool.
// Calls are made from a single goroutine, one message at a time.
type MessageHandler interface {
	HandlePubSubMessage(ctx context.Context, msg *model.Message)
}

// TokenSource supplies the auth token attached to user-scoped LISTENs.
type TokenSource interface {
	AuthToken() string
}

// Pool spreads topics across Connections, Config.TopicCapacity per
// connection, and merges their messages into one handler. Slots are only
// ever appended or replaced in place; the slot list never shrinks.
type Pool struct {
	cfg     Config
	tokens  TokenSource
	probe   Reachability
	handler MessageHandler
	metrics *metrics.Account
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	slots    []*Connection
	assigned map[model.Topic]int
	load     []int
	closed   bool

	inbound chan *model.Message
	fatal   chan error

	reconnects atomic.Int64
	duplicates atomic.Int64
	malformed  atomic.Int64

	shutdownOnce sync.Once
}

// NewPool creates an empty pool. Connections are opened lazily by Submit
// and run until Shutdown; Run delivers their messages to handler.
func NewPool(cfg Config, tokens TokenSource, probe Reachability, handler MessageHandler, m *metrics.Account, log *logger.Logger) *Pool {
	if probe == nil {
		probe = NewDialProbe("", 0)
	}
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:      cfg.withDefaults(),
		tokens:   tokens,
		probe:    probe,
		handler:  handler,
		metrics:  m,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		assigned: make(map[model.Topic]int),
		inbound:  make(chan *model.Message, 256),
		fatal:    make(chan error, 1),
	}
}

// Submit assigns topic to a connection. A new connection is opened when
// none exists or the newest one is full. Submitting a topic the pool
// already serves is a no-op.
func (p *Pool) Submit(ctx context.Context, topic model.Topic) error {
	if topic.Kind == "" {
		return fmt.Errorf("submitting topic: %w", model.ErrInvalidTopic)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if _, ok := p.assigned[topic]; ok {
		p.mu.Unlock()
		return nil
	}
	if n := len(p.slots); n == 0 || p.load[n-1] >= p.cfg.TopicCapacity {
		conn := newConnection(p.ctx, n, p)
		p.slots = append(p.slots, conn)
		p.load = append(p.load, 0)
		p.startLocked(conn)
		p.metrics.SetConnections(len(p.slots))
		p.log.Info("Opened PubSub connection", "conn", n, "connections", len(p.slots))
	}
	slot := len(p.slots) - 1
	p.assigned[topic] = slot
	p.load[slot]++
	p.mu.Unlock()

	if err := p.deliver(ctx, slot, topic); err != nil {
		p.unassign(topic, slot)
		return fmt.Errorf("submitting %s to conn #%d: %w", topic, slot, err)
	}

	p.metrics.AddTopics(1)
	return nil
}

// SubmitAll submits topics in order and stops at the first error.
func (p *Pool) SubmitAll(ctx context.Context, topics []model.Topic) error {
	for _, topic := range topics {
		if err := p.Submit(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// Run delivers messages to the handler until ctx ends, the pool is shut
// down, or the server rejects a LISTEN. The rejection is returned as a
// *ListenError. Run shuts the pool down before returning.
func (p *Pool) Run(ctx context.Context) error {
	defer p.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return ErrPoolClosed
		case err := <-p.fatal:
			return err
		case msg := <-p.inbound:
			p.metrics.Message(string(msg.Topic.Kind), string(msg.Type))
			if p.handler != nil {
				p.handler.HandlePubSubMessage(ctx, msg)
			}
		}
	}
}

// Shutdown force-closes every connection and waits for their goroutines
// and any reconnection in progress. It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		slots := append([]*Connection(nil), p.slots...)
		p.mu.Unlock()

		for _, conn := range slots {
			conn.forceClose()
		}
		p.cancel()
		p.wg.Wait()

		p.log.Info("PubSub pool closed", "connections", len(slots))
	})
}

// ConnStats describes one pool slot.
type ConnStats struct {
	Index        int  `json:"index"`
	Topics       int  `json:"topics"`
	Open         bool `json:"open"`
	Reconnecting bool `json:"reconnecting"`
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Connections []ConnStats `json:"connections"`
	Reconnects  int64       `json:"reconnects"`
	Duplicates  int64       `json:"duplicates"`
	Malformed   int64       `json:"malformed"`
}

// Stats returns the state of every slot and the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	slots := append([]*Connection(nil), p.slots...)
	p.mu.Unlock()

	st := Stats{
		Connections: make([]ConnStats, 0, len(slots)),
		Reconnects:  p.reconnects.Load(),
		Duplicates:  p.duplicates.Load(),
		Malformed:   p.malformed.Load(),
	}
	for _, conn := range slots {
		st.Connections = append(st.Connections, conn.stats())
	}
	return st
}

// Topics returns the topics of the connection currently at slot, in order.
func (p *Pool) Topics(slot int) []model.Topic {
	conn := p.current(slot)
	if conn == nil {
		return nil
	}
	return conn.Topics()
}

// ConnectionCount returns the number of slots.
func (p *Pool) ConnectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// current returns the connection occupying slot.
func (p *Pool) current(slot int) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot < 0 || slot >= len(p.slots) {
		return nil
	}
	return p.slots[slot]
}

// deliver assigns topic to whatever connection occupies slot. When that
// connection is being replaced it waits for the replacement and retries.
func (p *Pool) deliver(ctx context.Context, slot int, topic model.Topic) error {
	for {
		conn := p.current(slot)
		if conn == nil {
			return ErrPoolClosed
		}

		err := conn.assign(topic)
		if !errors.Is(err, ErrConnectionReplaced) {
			return err
		}

		select {
		case <-conn.replaced:
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return ErrPoolClosed
		}
	}
}

// unassign forgets that topic belongs to slot.
func (p *Pool) unassign(topic model.Topic, slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.assigned[topic]; ok && s == slot {
		delete(p.assigned, topic)
		p.load[slot]--
	}
}

// startLocked runs conn in the background. Must be called with mu held.
func (p *Pool) startLocked(conn *Connection) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		conn.run()
	}()
}

func (p *Pool) dispatch(ctx context.Context, msg *model.Message) {
	select {
	case p.inbound <- msg:
	case <-ctx.Done():
	}
}

func (p *Pool) fail(err *ListenError) {
	p.metrics.ListenError(err.Code)
	select {
	case p.fatal <- err:
	default:
	}
}

func (p *Pool) dropped(cause string) {
	switch cause {
	case "duplicate":
		p.duplicates.Add(1)
	case "malformed":
		p.malformed.Add(1)
	}
	p.metrics.Dropped(cause)
}

func (p *Pool) authToken() string {
	if p.tokens == nil {
		return ""
	}
	return p.tokens.AuthToken()
}
