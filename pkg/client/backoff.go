package client

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff computes exponential reconnect delays. The first call to
// Next returns the initial delay; each subsequent call doubles the
// previous delay, clamped to the maximum. Safe for concurrent use.
type Backoff struct {
	mu       sync.Mutex
	initial  time.Duration
	max      time.Duration
	jitter   float64
	current  time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff with the given bounds. Non-positive
// values fall back to the package defaults. jitter adds up to the
// given fraction of random spread to each delay; 0 disables it.
func NewBackoff(initial, max time.Duration, jitter float64) *Backoff {
	if initial <= 0 {
		initial = DefaultReconnectDelayInitial
	}
	if max <= 0 {
		max = DefaultReconnectDelayMax
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{
		initial: initial,
		max:     max,
		jitter:  jitter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next advances the backoff and returns the next delay.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == 0 {
		b.current = b.initial
	} else {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	b.attempts++

	d := b.current
	if b.jitter > 0 {
		d += time.Duration(b.rng.Float64() * b.jitter * float64(d))
		if d > b.max {
			d = b.max
		}
	}
	return d
}

// Attempts returns the number of delays handed out since the last
// reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset returns the backoff to its initial position.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = 0
	b.attempts = 0
}
