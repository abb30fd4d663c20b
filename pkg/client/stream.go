package client

import (
	"context"
	"time"

	"github.com/pulse-mq/pulse-go/pkg/transport"
)

// Stream is the framed byte stream the client drives. Implemented by
// *transport.Conn; tests substitute in-memory fakes.
type Stream interface {
	// Send writes one frame.
	Send(data []byte) error

	// Receive reads one frame, blocking when timeout is zero.
	Receive(timeout time.Duration) ([]byte, error)

	// Close tears down the stream. Idempotent.
	Close() error
}

// Dialer opens a framed stream to a broker endpoint.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Stream, error)
}

// transportDialer adapts *transport.Dialer to the Dialer interface.
type transportDialer struct {
	dialer *transport.Dialer
}

// NewTransportDialer creates the default TCP dialer.
func NewTransportDialer(config transport.DialerConfig) Dialer {
	return &transportDialer{dialer: transport.NewDialer(config)}
}

// Dial opens a framed TCP connection to host:port.
func (d *transportDialer) Dial(ctx context.Context, host string, port int) (Stream, error) {
	conn, err := d.dialer.Dial(ctx, host, port)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Compile-time interface satisfaction checks.
var (
	_ Stream = (*transport.Conn)(nil)
	_ Dialer = (*transportDialer)(nil)
)
