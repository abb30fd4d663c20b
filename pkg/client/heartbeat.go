package client

import (
	"time"

	"github.com/pulse-mq/pulse-go/pkg/wire"
)

// heartbeatTick runs once per heartbeat interval on an established
// connection. With no ping outstanding it issues one; with an
// unanswered ping two intervals old it declares the connection stale
// and force-closes it, which hands control to the reconnect path.
func (c *Client) heartbeatTick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.state != StateConnected || c.sock == nil {
		c.mu.Unlock()
		return
	}

	now := time.Now()
	outstanding := !c.lastPingAt.IsZero() && c.lastPongAt.Before(c.lastPingAt)

	if !outstanding {
		c.pingSeq++
		seq := c.pingSeq
		c.lastPingAt = now
		sock := c.sock
		c.mu.Unlock()

		c.sendPacket(sock, wire.NewPingReq(seq))
		return
	}

	if now.Sub(c.lastPingAt) >= 2*c.config.HeartbeatInterval {
		outcome, ok := c.closeLocked(gen, ErrConnectionStale)
		c.mu.Unlock()

		c.logError("heartbeat", ErrConnectionStale)
		if ok {
			c.finishClose(outcome)
		}
		return
	}

	// Ping outstanding but still inside the staleness window.
	c.mu.Unlock()
}
