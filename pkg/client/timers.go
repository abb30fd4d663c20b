package client

import (
	"time"
)

// timerGuard owns the two supervision timers of a connection: the
// handshake timer (single-shot, bounds a connection attempt) and the
// heartbeat ticker (periodic, supervises an established connection).
// The two are mutually exclusive: the handshake timer runs only while
// Connecting, the heartbeat only while Connected.
//
// All methods must be called with the client mutex held. Timer
// callbacks fire on their own goroutines and must revalidate state
// (generation, lifecycle state) before acting.
type timerGuard struct {
	handshake      *time.Timer
	handshakeArmed bool

	heartbeatStop chan struct{}
}

// armHandshake starts the handshake timer. A second arm while one is
// already pending is ignored, so overlapping attempt paths cannot
// stack timeouts. Returns whether the timer was armed by this call.
func (g *timerGuard) armHandshake(d time.Duration, fire func()) bool {
	if g.handshakeArmed {
		return false
	}
	g.handshakeArmed = true
	g.handshake = time.AfterFunc(d, fire)
	return true
}

// handshakeFired marks the pending handshake timer as consumed.
// Called by the timeout path before it acts, so a concurrent cancel
// cannot race a second consumption.
func (g *timerGuard) handshakeFired() bool {
	if !g.handshakeArmed {
		return false
	}
	g.handshakeArmed = false
	g.handshake = nil
	return true
}

// cancelHandshake stops a pending handshake timer, if any.
func (g *timerGuard) cancelHandshake() {
	if g.handshake != nil {
		g.handshake.Stop()
	}
	g.handshake = nil
	g.handshakeArmed = false
}

// startHeartbeat starts the periodic heartbeat, replacing any
// previous one. tick is invoked on a dedicated goroutine.
func (g *timerGuard) startHeartbeat(interval time.Duration, tick func()) {
	g.stopHeartbeat()

	stop := make(chan struct{})
	g.heartbeatStop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
}

// stopHeartbeat stops the heartbeat goroutine, if running.
func (g *timerGuard) stopHeartbeat() {
	if g.heartbeatStop != nil {
		close(g.heartbeatStop)
		g.heartbeatStop = nil
	}
}

// stopAll cancels both timers.
func (g *timerGuard) stopAll() {
	g.cancelHandshake()
	g.stopHeartbeat()
}
