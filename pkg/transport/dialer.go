package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DialerConfig configures a Pulse dialer.
type DialerConfig struct {
	// ConnectTimeout bounds the TCP (and TLS) establishment.
	// Applied only when the caller's context has no deadline.
	// Default: 30s.
	ConnectTimeout time.Duration

	// MaxMessageSize is the maximum frame payload size (default: 64KB).
	MaxMessageSize uint32

	// TLSConfig enables TLS when non-nil. The config is normalized
	// via NewClientTLSConfig.
	TLSConfig *tls.Config
}

// Dialer opens framed stream connections to brokers.
// It is the transport factory consumed by the client package.
type Dialer struct {
	config  DialerConfig
	tlsConf *tls.Config
}

// NewDialer creates a new dialer.
func NewDialer(config DialerConfig) *Dialer {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	var tlsConf *tls.Config
	if config.TLSConfig != nil {
		tlsConf = NewClientTLSConfig(config.TLSConfig)
	}

	return &Dialer{
		config:  config,
		tlsConf: tlsConf,
	}
}

// Dial establishes a framed connection to host:port.
func (d *Dialer) Dial(ctx context.Context, host string, port int) (*Conn, error) {
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ConnectTimeout)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := &net.Dialer{}
	nc, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if d.tlsConf != nil {
		tlsConn := tls.Client(nc, d.tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		nc = tlsConn
	}

	return newConn(nc, d.config.MaxMessageSize), nil
}
