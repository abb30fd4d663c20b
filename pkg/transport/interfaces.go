package transport

import (
	"context"
	"net"
	"time"
)

// StreamConn is a framed byte stream between a client and a broker.
// Implemented by Conn.
type StreamConn interface {
	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Send writes one frame to the peer.
	Send(data []byte) error

	// Receive reads one frame. A zero timeout blocks.
	Receive(timeout time.Duration) ([]byte, error)

	// Close closes the connection.
	Close() error
}

// StreamDialer opens framed stream connections to broker endpoints.
// Implemented by Dialer.
type StreamDialer interface {
	// Dial establishes a framed connection to host:port.
	Dial(ctx context.Context, host string, port int) (*Conn, error)
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ StreamConn      = (*Conn)(nil)
	_ StreamDialer    = (*Dialer)(nil)
	_ FrameReadWriter = (*Framer)(nil)
)
