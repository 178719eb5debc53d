package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/model"
)

// Connection is one physical WebSocket to the PubSub server, serving up to
// Config.TopicCapacity topics. It is created by the Pool and, once dead,
// replaced in its slot by a fresh Connection; it is never reopened.
type Connection struct {
	mu sync.Mutex

	index  int
	cfg    Config
	pool   *Pool
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	ws      *websocket.Conn
	topics  []model.Topic
	pending []model.Topic

	isOpen         bool
	isClosed       bool
	isReconnecting bool
	forcedClose    bool
	lastPong       time.Time

	// nonces maps in-flight LISTEN nonces to their topic.
	nonces map[string]model.Topic

	// dedup is owned by the read loop.
	dedup Deduplicator

	writeCh chan []byte

	// replaced is closed once another Connection occupies this slot.
	replaced chan struct{}
}

func newConnection(parent context.Context, index int, p *Pool) *Connection {
	ctx, cancel := context.WithCancel(parent)
	return &Connection{
		index:    index,
		cfg:      p.cfg,
		pool:     p,
		log:      p.log,
		ctx:      ctx,
		cancel:   cancel,
		topics:   make([]model.Topic, 0, p.cfg.TopicCapacity),
		nonces:   make(map[string]model.Topic),
		writeCh:  make(chan []byte, p.cfg.WriteBuffer),
		replaced: make(chan struct{}),
	}
}

// Topics returns the topics served by this connection in submission order.
func (c *Connection) Topics() []model.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// stats reports the connection's slot, load and state.
func (c *Connection) stats() ConnStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnStats{
		Index:        c.index,
		Topics:       len(c.topics),
		Open:         c.isOpen,
		Reconnecting: c.isReconnecting,
	}
}

// run dials the server and serves the connection until it is closed or
// fails. Failures hand the connection to the reconnection controller.
func (c *Connection) run() {
	ctx := c.ctx

	ws, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("PubSub dial failed", "conn", c.index, "error", err)
		c.pool.reconnect(c, "dial")
		return
	}
	ws.SetReadLimit(c.cfg.ReadLimit)

	c.mu.Lock()
	if c.isClosed {
		c.mu.Unlock()
		ws.CloseNow()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	var wg sync.WaitGroup
	defer func() {
		c.cancel()
		ws.CloseNow()
		wg.Wait()
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, ws)
	}()

	c.open()
	c.log.Debug("PubSub connection open", "conn", c.index)

	go func() {
		defer wg.Done()
		c.heartbeat(ctx)
	}()

	c.readLoop(ctx, ws)
}

// open marks the handshake complete, flushes pending LISTENs in submission
// order and sends the first PING.
func (c *Connection) open() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return
	}
	c.isOpen = true
	c.lastPong = time.Now()
	for _, topic := range c.pending {
		if err := c.sendListen(topic); err != nil {
			c.log.Error("Failed to flush pending topic", "conn", c.index, "topic", topic, "error", err)
		}
	}
	c.pending = nil
	c.sendPing()
}

// assign adds topic to this connection. It sends LISTEN right away when the
// connection is open and buffers it otherwise. Assigning a topic the
// connection already serves is a no-op.
func (c *Connection) assign(topic model.Topic) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return ErrConnectionReplaced
	}
	if c.hasTopic(topic) {
		return nil
	}
	if len(c.topics) >= c.cfg.TopicCapacity {
		return ErrCapacityReached
	}
	if c.isOpen {
		if err := c.sendListen(topic); err != nil {
			return err
		}
	} else {
		c.pending = append(c.pending, topic)
	}
	c.topics = append(c.topics, topic)
	return nil
}

// beginReconnect moves the connection into the reconnecting state. It
// returns false when the connection is already reconnecting or was closed
// on purpose, so each connection is handed to the controller at most once.
func (c *Connection) beginReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isReconnecting || c.forcedClose {
		return false
	}
	c.isReconnecting = true
	c.isClosed = true
	c.isOpen = false
	return true
}

// close stops the loops and drops the socket.
func (c *Connection) close() {
	c.mu.Lock()
	c.isClosed = true
	c.isOpen = false
	ws := c.ws
	c.mu.Unlock()

	c.cancel()
	if ws != nil {
		ws.CloseNow()
	}
}

// forceClose closes the connection for good; no reconnection follows.
func (c *Connection) forceClose() {
	c.mu.Lock()
	c.forcedClose = true
	c.mu.Unlock()
	c.close()
}

func (c *Connection) heartbeat(ctx context.Context) {
	for {
		if !sleepCtx(ctx, randomDuration(c.cfg.HeartbeatMin, c.cfg.HeartbeatMax)) {
			return
		}

		c.mu.Lock()
		if c.isReconnecting || c.isClosed {
			c.mu.Unlock()
			return
		}
		c.sendPing()
		elapsed := time.Since(c.lastPong)
		c.mu.Unlock()

		if elapsed > c.cfg.StaleThreshold {
			c.log.Warn("No PONG received within the staleness threshold",
				"conn", c.index, "elapsed", elapsed.Round(time.Millisecond))
			c.pool.reconnect(c, "stale")
			return
		}
	}
}

func (c *Connection) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("PubSub read failed", "conn", c.index, "error", err)
			c.pool.reconnect(c, "read")
			return
		}
		c.handleFrame(ctx, data)
	}
}

func (c *Connection) writeLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.writeCh:
			if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
				if ctx.Err() == nil {
					c.log.Warn("PubSub write failed", "conn", c.index, "error", err)
				}
				return
			}
		}
	}
}

func (c *Connection) handleFrame(ctx context.Context, data []byte) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.Warn("Dropping unreadable frame", "conn", c.index, "error", err)
		c.pool.dropped("malformed")
		return
	}

	switch resp.Type {
	case TypePong:
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()

	case TypeReconnect:
		c.log.Info("Server requested reconnection", "conn", c.index)
		c.pool.reconnect(c, "server")

	case TypeResponse:
		c.mu.Lock()
		topic := c.nonces[resp.Nonce]
		delete(c.nonces, resp.Nonce)
		c.mu.Unlock()

		if resp.Error == "" {
			return
		}
		c.log.Error("LISTEN rejected", "conn", c.index, "topic", topic, "code", resp.Error)
		c.pool.fail(&ListenError{Slot: c.index, Topic: topic, Nonce: resp.Nonce, Code: resp.Error})

	case TypeMessage:
		c.handleMessage(ctx, resp.Data)

	default:
		c.log.Debug("Ignoring frame", "conn", c.index, "type", resp.Type)
	}
}

func (c *Connection) handleMessage(ctx context.Context, raw json.RawMessage) {
	var data MessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		c.log.Warn("Dropping MESSAGE with unreadable data", "conn", c.index, "error", err)
		c.pool.dropped("malformed")
		return
	}

	msg, err := model.ParseMessage(data.Topic, []byte(data.Message))
	if err != nil {
		c.log.Warn("Dropping malformed MESSAGE", "conn", c.index, "topic", data.Topic, "error", err)
		c.pool.dropped("malformed")
		return
	}

	if c.dedup.Seen(msg.Timestamp, msg.Identity()) {
		c.log.Debug("Dropping duplicate MESSAGE", "conn", c.index, "topic", data.Topic, "type", msg.Type)
		c.pool.dropped("duplicate")
		return
	}

	c.pool.dispatch(ctx, msg)
}

// sendListen queues a LISTEN for a single topic. Must be called with mu held.
func (c *Connection) sendListen(topic model.Topic) error {
	nonce := newNonce()
	data := &RequestData{Topics: []string{topic.String()}}
	if topic.IsUserScoped() {
		data.AuthToken = c.pool.authToken()
	}

	if err := c.send(Request{Type: TypeListen, Nonce: nonce, Data: data}); err != nil {
		return fmt.Errorf("listening to %s: %w", topic, err)
	}
	c.nonces[nonce] = topic
	c.log.Debug("Listening to topic", "conn", c.index, "topic", topic)
	return nil
}

// sendPing queues a PING. Must be called with mu held.
func (c *Connection) sendPing() {
	if err := c.send(Request{Type: TypePing}); err != nil {
		c.log.Warn("Dropping PING", "conn", c.index, "error", err)
	}
}

func (c *Connection) send(req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", req.Type, err)
	}
	select {
	case c.writeCh <- data:
		return nil
	default:
		return ErrWriteBufferFull
	}
}

func (c *Connection) hasTopic(topic model.Topic) bool {
	for _, t := range c.topics {
		if t == topic {
			return true
		}
	}
	return false
}

// randomDuration returns a uniformly distributed duration in [lo, hi].
func randomDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
