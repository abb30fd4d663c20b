package client

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerGuardArmHandshakeOnce(t *testing.T) {
	var g timerGuard
	var fired atomic.Int32

	if !g.armHandshake(20*time.Millisecond, func() { fired.Add(1) }) {
		t.Fatal("first arm should succeed")
	}
	if g.armHandshake(time.Millisecond, func() { fired.Add(1) }) {
		t.Error("second arm while pending should be a no-op")
	}

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("handshake fired %d times, want 1", got)
	}
}

func TestTimerGuardCancelHandshake(t *testing.T) {
	var g timerGuard
	var fired atomic.Int32

	g.armHandshake(20*time.Millisecond, func() { fired.Add(1) })
	g.cancelHandshake()

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("canceled handshake fired %d times", got)
	}

	// Cancel clears the armed flag, so a fresh arm works.
	if !g.armHandshake(time.Hour, func() {}) {
		t.Error("arm after cancel should succeed")
	}
	g.cancelHandshake()
}

func TestTimerGuardHandshakeFired(t *testing.T) {
	var g timerGuard

	g.armHandshake(time.Hour, func() {})
	if !g.handshakeFired() {
		t.Error("first consumption should succeed")
	}
	if g.handshakeFired() {
		t.Error("second consumption should fail")
	}
	g.cancelHandshake()
}

func TestTimerGuardHeartbeat(t *testing.T) {
	var g timerGuard
	var ticks atomic.Int32

	g.startHeartbeat(10*time.Millisecond, func() { ticks.Add(1) })
	time.Sleep(55 * time.Millisecond)
	g.stopHeartbeat()

	got := ticks.Load()
	if got < 2 {
		t.Errorf("heartbeat ticked %d times in 55ms at 10ms interval", got)
	}

	// No ticks after stop.
	time.Sleep(30 * time.Millisecond)
	if after := ticks.Load(); after != got {
		t.Errorf("heartbeat ticked after stop: %d -> %d", got, after)
	}
}

func TestTimerGuardStartHeartbeatReplaces(t *testing.T) {
	var g timerGuard
	var first, second atomic.Int32

	g.startHeartbeat(5*time.Millisecond, func() { first.Add(1) })
	g.startHeartbeat(5*time.Millisecond, func() { second.Add(1) })
	time.Sleep(30 * time.Millisecond)
	g.stopAll()

	// Let any in-flight tick drain before sampling.
	time.Sleep(10 * time.Millisecond)
	firstTicks := first.Load()
	time.Sleep(20 * time.Millisecond)
	if first.Load() != firstTicks {
		t.Error("replaced heartbeat kept ticking")
	}
	if second.Load() == 0 {
		t.Error("replacement heartbeat never ticked")
	}
}

func TestTimerGuardStopAllIdempotent(t *testing.T) {
	var g timerGuard

	g.armHandshake(time.Hour, func() {})
	g.startHeartbeat(time.Hour, func() {})

	g.stopAll()
	g.stopAll()
}
