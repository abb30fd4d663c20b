package client

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 40*time.Millisecond, 0)

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond, // clamped
		40 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i+1, got, w)
		}
	}
	if got := b.Attempts(); got != len(want) {
		t.Errorf("Attempts() = %d, want %d", got, len(want))
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(10*time.Millisecond, 40*time.Millisecond, 0)

	b.Next()
	b.Next()
	b.Reset()

	if got := b.Attempts(); got != 0 {
		t.Errorf("Attempts() after Reset = %d, want 0", got)
	}
	if got := b.Next(); got != 10*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want initial delay", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 0.5)

	for i := 0; i < 50; i++ {
		b.Reset()
		d := b.Next()
		if d < 100*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 150ms]", d)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(0, 0, -1)

	if got := b.Next(); got != DefaultReconnectDelayInitial {
		t.Errorf("Next() = %v, want %v", got, DefaultReconnectDelayInitial)
	}
}

func TestBackoffClampAcrossMaxBoundary(t *testing.T) {
	// 1s, 2s, 4s with a 5s cap: doubling past the cap clamps to it.
	b := NewBackoff(time.Second, 5*time.Second, 0)

	b.Next()
	b.Next()
	if got := b.Next(); got != 4*time.Second {
		t.Errorf("third delay = %v, want 4s", got)
	}
	if got := b.Next(); got != 5*time.Second {
		t.Errorf("fourth delay = %v, want clamped 5s", got)
	}
}
