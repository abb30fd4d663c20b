package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pulse-mq/pulse-go/pkg/log"
)

// Connection errors.
var (
	// ErrConnClosed indicates the connection was closed locally.
	ErrConnClosed = errors.New("connection closed")
)

// Conn is a framed stream connection between a client and a broker.
// Both the Dialer and the Listener produce Conns; the same type serves
// both directions.
type Conn struct {
	conn   net.Conn
	framer *Framer

	closeCh   chan struct{}
	closeOnce sync.Once
}

// newConn wraps a net.Conn with framing.
func newConn(nc net.Conn, maxMessageSize uint32) *Conn {
	if maxMessageSize == 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Conn{
		conn:    nc,
		framer:  NewFramerWithMaxSize(nc, maxMessageSize),
		closeCh: make(chan struct{}),
	}
}

// SetLogger configures frame logging for this connection.
// Pass nil to disable logging.
func (c *Conn) SetLogger(logger log.Logger, connID string) {
	c.framer.SetLogger(logger, connID)
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes one frame to the peer.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnClosed
	default:
	}

	return c.framer.WriteFrame(data)
}

// Receive reads one frame from the peer. A zero timeout blocks until
// a frame arrives or the connection fails.
func (c *Conn) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case <-c.closeCh:
		return nil, ErrConnClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	return c.framer.ReadFrame()
}

// Close closes the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
