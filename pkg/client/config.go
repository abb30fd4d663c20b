package client

import (
	"time"

	"github.com/pulse-mq/pulse-go/pkg/identity"
	"github.com/pulse-mq/pulse-go/pkg/log"
	"github.com/pulse-mq/pulse-go/pkg/payload"
	"github.com/pulse-mq/pulse-go/pkg/transport"
)

// Default timing parameters. Applied by New for zero-valued fields.
const (
	// DefaultHandshakeTimeout bounds a single connection attempt from
	// dial start to ConnAck.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultHeartbeatInterval is the period of the heartbeat monitor
	// on an established connection.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultReconnectDelayInitial is the first reconnect backoff delay.
	DefaultReconnectDelayInitial = 1 * time.Second

	// DefaultReconnectDelayMax caps the reconnect backoff delay.
	DefaultReconnectDelayMax = 60 * time.Second
)

// Config holds client construction parameters. The zero value is
// usable; New fills in defaults.
type Config struct {
	// ID is a caller-chosen name that prefixes the generated session
	// identity. Empty falls back to identity.DefaultPrefix.
	ID string

	// HandshakeTimeout bounds each connection attempt.
	HandshakeTimeout time.Duration

	// HeartbeatInterval is the heartbeat monitor period. A connection
	// with an unanswered ping older than twice this interval is
	// considered stale and force-closed.
	HeartbeatInterval time.Duration

	// ReconnectDelayInitial is the first backoff delay.
	ReconnectDelayInitial time.Duration

	// ReconnectDelayMax caps the backoff delay.
	ReconnectDelayMax time.Duration

	// ReconnectJitter adds up to the given fraction of random spread
	// to each backoff delay. 0 keeps delays deterministic.
	ReconnectJitter float64

	// KeepBackoffAfterSuccess, when set, carries the backoff position
	// across successful connections instead of resetting it. The
	// default (reset on success) makes each outage start from the
	// initial delay.
	KeepBackoffAfterSuccess bool

	// Identity generates the session identity. Defaults to a
	// UUID-based generator prefixed with ID.
	Identity identity.Generator

	// Payload serializes application message bodies. Defaults to JSON.
	Payload payload.Codec

	// Dialer opens the framed stream to the broker. Defaults to a TCP
	// transport dialer.
	Dialer Dialer

	// MaxMessageSize caps frame sizes for the default dialer. Ignored
	// when Dialer is set.
	MaxMessageSize uint32

	// Logger receives structured events. Defaults to NoopLogger.
	Logger log.Logger
}

// withDefaults returns a copy of the config with defaults applied.
func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ReconnectDelayInitial <= 0 {
		c.ReconnectDelayInitial = DefaultReconnectDelayInitial
	}
	if c.ReconnectDelayMax <= 0 {
		c.ReconnectDelayMax = DefaultReconnectDelayMax
	}
	if c.Identity == nil {
		c.Identity = identity.NewGenerator(c.ID)
	}
	if c.Payload == nil {
		c.Payload = payload.JSON{}
	}
	if c.Dialer == nil {
		c.Dialer = NewTransportDialer(transport.DialerConfig{
			ConnectTimeout: c.HandshakeTimeout,
			MaxMessageSize: c.MaxMessageSize,
		})
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	return c
}
