package pubsub

import "github.com/Guliveer/twitch-points-tracker/internal/model"

// reconnect hands old to the reconnection controller unless it is already
// being replaced or was closed on purpose. Safe to call from any of the
// connection's goroutines.
func (p *Pool) reconnect(old *Connection, reason string) {
	if !old.beginReconnect() {
		return
	}
	p.reconnects.Add(1)
	p.metrics.Reconnect(reason)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.recover(old, reason)
	}()
}

// recover closes old, waits out the reconnect delay and any network
// outage, installs a new connection in the same slot and, after the settle
// delay, resubmits old's topics in their original order.
func (p *Pool) recover(old *Connection, reason string) {
	p.log.Info("Reconnecting PubSub connection",
		"conn", old.index, "reason", reason, "delay", p.cfg.ReconnectDelay)
	old.close()

	if !sleepCtx(p.ctx, p.cfg.ReconnectDelay) {
		return
	}

	for !p.probe.Reachable(p.ctx) {
		wait := randomDuration(p.cfg.OfflineBackoffMin, p.cfg.OfflineBackoffMax)
		p.log.Warn("Network unreachable, waiting before next probe",
			"conn", old.index, "retry_in", wait)
		if !sleepCtx(p.ctx, wait) {
			return
		}
	}

	if p.replace(old) == nil {
		return
	}

	if !sleepCtx(p.ctx, p.cfg.SettleDelay) {
		return
	}

	restored := p.resubmit(old.index, old.Topics())
	p.log.Info("PubSub connection restored", "conn", old.index, "topics", restored)
}

// resubmit delivers topics to the connection at slot in order and returns
// how many made it. A topic that fails is released so a later Submit can
// place it again.
func (p *Pool) resubmit(slot int, topics []model.Topic) int {
	restored := 0
	for _, topic := range topics {
		if err := p.deliver(p.ctx, slot, topic); err != nil {
			if p.ctx.Err() != nil {
				return restored
			}
			p.unassign(topic, slot)
			p.metrics.AddTopics(-1)
			p.log.Error("Failed to resubmit topic", "conn", slot, "topic", topic, "error", err)
			continue
		}
		restored++
	}
	return restored
}

// replace installs a fresh connection in old's slot and starts it. It
// returns nil if the pool is closed.
func (p *Pool) replace(old *Connection) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.slots[old.index] != old {
		return nil
	}
	conn := newConnection(p.ctx, old.index, p)
	p.slots[old.index] = conn
	close(old.replaced)
	p.startLocked(conn)
	return conn
}
