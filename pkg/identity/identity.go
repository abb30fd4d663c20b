// Package identity generates client session identities.
//
// An identity is generated once at client construction and stays
// stable for the client's lifetime. The generator is injected so
// tests can substitute deterministic identities.
package identity

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultPrefix is used when no caller-supplied id is configured.
const DefaultPrefix = "pulse"

// Generator produces session identities.
type Generator interface {
	// Next returns a new identity. Each call returns a distinct value.
	Next() string
}

// UUIDGenerator combines a caller-supplied prefix, a monotonic
// counter, and a random UUID. The counter keeps identities readable
// and ordered within a process; the UUID makes them globally unique.
type UUIDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewGenerator creates a UUIDGenerator with the given prefix.
// An empty prefix falls back to DefaultPrefix.
func NewGenerator(prefix string) *UUIDGenerator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &UUIDGenerator{prefix: prefix}
}

// Next returns the next identity, e.g. "sensor-3-9f2c1e7a".
func (g *UUIDGenerator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%d-%s", g.prefix, n, shortUUID())
}

// shortUUID returns the first UUID group (8 hex chars).
func shortUUID() string {
	return uuid.NewString()[:8]
}

// Fixed always returns the same identity. For tests.
type Fixed string

// Next returns the fixed identity.
func (f Fixed) Next() string { return string(f) }

// Compile-time interface satisfaction checks.
var (
	_ Generator = (*UUIDGenerator)(nil)
	_ Generator = Fixed("")
)
