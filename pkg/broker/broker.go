package broker

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pulse-mq/pulse-go/pkg/log"
	"github.com/pulse-mq/pulse-go/pkg/transport"
	"github.com/pulse-mq/pulse-go/pkg/wire"
)

// DefaultPort is the well-known Pulse broker port.
const DefaultPort = 7110

// Config configures a broker.
type Config struct {
	// Address to listen on (e.g. ":7110" or "127.0.0.1:7110").
	Address string

	// MaxMessageSize is the maximum frame payload size (default: 64KB).
	MaxMessageSize uint32

	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	// Journal records sessions and publishes when non-nil.
	Journal *Journal

	// Logger for broker events (optional).
	Logger log.Logger
}

// Broker accepts Pulse clients and fans published messages out to all
// other connected clients.
type Broker struct {
	config   Config
	logger   log.Logger
	listener *transport.Listener

	mu       sync.RWMutex
	sessions map[*session]struct{}

	running atomic.Bool
	wg      sync.WaitGroup
}

// session is one connected client.
type session struct {
	connID     string
	conn       *transport.Conn
	remoteAddr string

	writeMu sync.Mutex

	mu        sync.Mutex
	identity  string
	connected bool
}

// send writes a frame, serializing concurrent writers.
func (s *session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Send(data)
}

// ready reports whether the session completed its handshake.
func (s *session) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// New creates a broker.
func New(config Config) *Broker {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	return &Broker{
		config:   config,
		logger:   config.Logger,
		sessions: make(map[*session]struct{}),
	}
}

// Start begins listening and accepting clients.
func (b *Broker) Start() error {
	if b.running.Load() {
		return fmt.Errorf("broker already running")
	}

	ln, err := transport.Listen(transport.ListenerConfig{
		Address:        b.config.Address,
		MaxMessageSize: b.config.MaxMessageSize,
		TLSConfig:      b.config.TLSConfig,
	})
	if err != nil {
		return err
	}
	b.listener = ln
	b.running.Store(true)

	b.wg.Add(1)
	go b.acceptLoop()

	return nil
}

// Stop closes the listener and all client connections.
func (b *Broker) Stop() error {
	if !b.running.Load() {
		return nil
	}
	b.running.Store(false)

	b.listener.Close()

	b.mu.Lock()
	for s := range b.sessions {
		s.conn.Close()
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Addr returns the listen address.
func (b *Broker) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// acceptLoop accepts incoming connections until the broker stops.
func (b *Broker) acceptLoop() {
	defer b.wg.Done()

	for b.running.Load() {
		conn, err := b.listener.Accept()
		if err != nil {
			if b.running.Load() {
				b.logError("", "accept", err)
			}
			continue
		}

		b.wg.Add(1)
		go b.handleConn(conn)
	}
}

// handleConn runs one client session from accept to teardown.
func (b *Broker) handleConn(conn *transport.Conn) {
	defer b.wg.Done()

	sess := &session{
		connID:     uuid.NewString(),
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
	}

	b.mu.Lock()
	b.sessions[sess] = struct{}{}
	b.mu.Unlock()

	b.logState(sess, "", "CONNECTED", "")

	b.readLoop(sess)

	b.mu.Lock()
	delete(b.sessions, sess)
	b.mu.Unlock()
	conn.Close()

	b.logState(sess, "CONNECTED", "DISCONNECTED", "")
}

// readLoop processes frames from one client.
func (b *Broker) readLoop(sess *session) {
	for {
		data, err := sess.conn.Receive(0)
		if err != nil {
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			// One malformed frame does not end the session.
			b.logError(sess.connID, "decode packet", err)
			continue
		}

		switch msg.Type {
		case wire.TypeConnect:
			b.handleConnect(sess, msg)
		case wire.TypePingReq:
			b.reply(sess, wire.NewPingResp(msg.Seq))
		case wire.TypePublish:
			b.handlePublish(sess, msg, data)
		case wire.TypeDisconnect:
			b.logControl(sess, wire.TypeDisconnect)
			return
		case wire.TypeConnAck, wire.TypePingResp:
			// Client-bound packets; ignore.
		}
	}
}

// handleConnect completes the handshake and acknowledges.
func (b *Broker) handleConnect(sess *session, msg *wire.Message) {
	sess.mu.Lock()
	sess.identity = msg.Identity
	sess.connected = true
	sess.mu.Unlock()

	if b.config.Journal != nil {
		if err := b.config.Journal.RecordSession(msg.Identity, sess.remoteAddr); err != nil {
			b.logError(sess.connID, "journal session", err)
		}
	}

	b.reply(sess, wire.NewConnAck())
}

// handlePublish journals the message and forwards the raw frame to
// every other handshaked client.
func (b *Broker) handlePublish(sess *session, msg *wire.Message, raw []byte) {
	if !sess.ready() {
		// Publish before Connect; drop.
		return
	}

	sess.mu.Lock()
	identity := sess.identity
	sess.mu.Unlock()

	if b.config.Journal != nil {
		if err := b.config.Journal.RecordPublish(identity, msg.Topic, msg.Payload); err != nil {
			b.logError(sess.connID, "journal publish", err)
		}
	}

	b.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Identity:     identity,
		RemoteAddr:   sess.remoteAddr,
		Packet: &log.PacketEvent{
			PacketType:  wire.TypePublish.String(),
			Topic:       msg.Topic,
			PayloadSize: len(msg.Payload),
		},
	})

	b.mu.RLock()
	peers := make([]*session, 0, len(b.sessions))
	for p := range b.sessions {
		if p != sess && p.ready() {
			peers = append(peers, p)
		}
	}
	b.mu.RUnlock()

	for _, p := range peers {
		if err := p.send(raw); err != nil {
			// The peer's read loop observes the dead connection.
			b.logError(p.connID, "forward publish", err)
		}
	}
}

// reply encodes and sends a control packet to one session.
func (b *Broker) reply(sess *session, msg *wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		b.logError(sess.connID, "encode "+msg.Type.String(), err)
		return
	}
	if err := sess.send(data); err != nil {
		b.logError(sess.connID, "send "+msg.Type.String(), err)
		return
	}
	b.logControl(sess, msg.Type)
}

func (b *Broker) logControl(sess *session, t wire.Type) {
	b.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryControl,
		RemoteAddr:   sess.remoteAddr,
		Control: &log.ControlEvent{
			PacketType: t.String(),
		},
	})
}

func (b *Broker) logState(sess *session, old, new, reason string) {
	b.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sess.connID,
		Direction:    log.DirectionNone,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   sess.remoteAddr,
		StateChange: &log.StateChangeEvent{
			OldState: old,
			NewState: new,
			Reason:   reason,
		},
	})
}

func (b *Broker) logError(connID, context string, err error) {
	b.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionNone,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}
