package transport

import (
	"crypto/tls"
	"fmt"
	"net"
)

// ListenerConfig configures a Pulse listener.
type ListenerConfig struct {
	// Address is the listen address, e.g. ":7683".
	Address string

	// MaxMessageSize is the maximum frame payload size (default: 64KB).
	MaxMessageSize uint32

	// TLSConfig enables TLS when non-nil. The config is normalized
	// via NewServerTLSConfig.
	TLSConfig *tls.Config
}

// Listener accepts framed stream connections from clients.
type Listener struct {
	ln     net.Listener
	config ListenerConfig
}

// Listen starts listening on the configured address.
func Listen(config ListenerConfig) (*Listener, error) {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	var ln net.Listener
	var err error
	if config.TLSConfig != nil {
		ln, err = tls.Listen("tcp", config.Address, NewServerTLSConfig(config.TLSConfig))
	} else {
		ln, err = net.Listen("tcp", config.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("listen failed: %w", err)
	}

	return &Listener{ln: ln, config: config}, nil
}

// Accept waits for the next client connection.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newConn(nc, l.config.MaxMessageSize), nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the listener. Pending Accept calls fail.
func (l *Listener) Close() error {
	return l.ln.Close()
}
