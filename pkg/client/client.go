package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulse-mq/pulse-go/pkg/log"
	"github.com/pulse-mq/pulse-go/pkg/wire"
)

// Errors returned by client operations.
var (
	// ErrAlreadyConnected is returned by Connect on an established
	// connection.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectInProgress is returned by Connect while an attempt is
	// already in flight.
	ErrConnectInProgress = errors.New("connect already in progress")

	// ErrClientClosed is returned once Close has been called.
	ErrClientClosed = errors.New("client closed")

	// ErrNoEndpoint is returned by Connect when no broker endpoint is
	// known.
	ErrNoEndpoint = errors.New("no broker endpoint configured")

	// ErrHandshakeTimeout is the close cause when an attempt does not
	// reach ConnAck within the handshake timeout.
	ErrHandshakeTimeout = errors.New("handshake timed out")

	// ErrConnectionStale is the close cause when a ping goes
	// unanswered for two heartbeat intervals.
	ErrConnectionStale = errors.New("connection stale: heartbeat unanswered")
)

// socket is one physical connection. Each dial attempt gets a fresh
// generation so callbacks from a dead socket cannot act on its
// successor.
type socket struct {
	id     string
	gen    uint64
	stream Stream
}

// Client maintains a resilient connection to a Pulse broker.
// All exported methods are safe for concurrent use.
type Client struct {
	config   Config
	identity string
	dialer   Dialer
	logger   log.Logger
	router   *Router
	backoff  *Backoff

	mu           sync.Mutex
	state        State
	closed       bool
	host         string
	port         int
	hasEndpoint  bool
	sock         *socket
	gen          uint64
	genClosed    bool
	successCount uint64
	pingSeq      uint32
	lastPingAt   time.Time
	lastPongAt   time.Time
	timers       timerGuard
	reconnect    *time.Timer

	onConnect     func()
	onReconnect   func()
	onDisconnect  func(identity string)
	onFatal       func(err error)
	onStateChange func(old, new State)
}

// New creates a client. The session identity is generated once here
// and stays stable across reconnects.
func New(config Config) *Client {
	config = config.withDefaults()

	return &Client{
		config:   config,
		identity: config.Identity.Next(),
		dialer:   config.Dialer,
		logger:   config.Logger,
		router:   NewRouter(),
		backoff: NewBackoff(
			config.ReconnectDelayInitial,
			config.ReconnectDelayMax,
			config.ReconnectJitter,
		),
		state: StateDisconnected,
	}
}

// Identity returns the session identity.
func (c *Client) Identity() string { return c.identity }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SuccessCount returns the number of completed handshakes.
func (c *Client) SuccessCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.successCount
}

// Endpoint returns the broker endpoint, if one has been set.
func (c *Client) Endpoint() (host string, port int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host, c.port, c.hasEndpoint
}

// OnConnect registers a handler invoked once, after the first
// successful handshake of the client's lifetime.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// OnReconnect registers a handler invoked after every successful
// handshake except the first.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = fn
}

// OnDisconnect registers a handler invoked when the broker announces
// an orderly disconnect. It receives the session identity and fires
// before the connection is torn down.
func (c *Client) OnDisconnect(fn func(identity string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// OnFatal registers a handler invoked when a connection fails before
// any handshake ever succeeded. No reconnect is attempted; the client
// stays Disconnected and the caller decides what to do.
func (c *Client) OnFatal(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFatal = fn
}

// OnStateChange registers a handler invoked on every lifecycle
// transition.
func (c *Client) OnStateChange(fn func(old, new State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// Subscribe registers a handler for messages published to a topic.
// Matching is exact. Subscriptions are client-local and survive
// reconnects.
func (c *Client) Subscribe(topic string, fn Handler) SubscriptionID {
	return c.router.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func (c *Client) Unsubscribe(topic string, id SubscriptionID) bool {
	return c.router.Unsubscribe(topic, id)
}

// Topics returns the topics with at least one local handler.
func (c *Client) Topics() []string {
	return c.router.Topics()
}

// Connect initiates a connection to host:port. It validates
// synchronously and returns immediately; the attempt itself proceeds
// in the background, bounded by the handshake timeout. An empty host
// reuses the endpoint from a previous Connect call.
func (c *Client) Connect(host string, port int) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}

	if host != "" {
		c.host = host
		c.port = port
		c.hasEndpoint = true
	}
	if !c.hasEndpoint {
		c.mu.Unlock()
		return ErrNoEndpoint
	}

	// A manual Connect supersedes any pending backoff wait.
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}

	change := c.startAttemptLocked()
	c.mu.Unlock()

	c.notifyStateChange(change)
	return nil
}

// startAttemptLocked begins a new connection attempt: a fresh socket
// generation, the handshake timer, and the dial goroutine. The caller
// holds c.mu and has verified the state allows an attempt.
func (c *Client) startAttemptLocked() stateChange {
	c.gen++
	c.genClosed = false
	gen := c.gen

	change := c.setStateLocked(StateConnecting, "connection attempt")

	c.timers.armHandshake(c.config.HandshakeTimeout, func() {
		c.handshakeTimeout(gen)
	})

	host, port := c.host, c.port
	go c.dial(gen, host, port)

	return change
}

// dial opens the stream and sends the Connect packet. Runs on its own
// goroutine; everything it learns is revalidated against the socket
// generation.
func (c *Client) dial(gen uint64, host string, port int) {
	stream, err := c.dialer.Dial(context.Background(), host, port)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.logError("dial", err)
		c.handleClose(gen, fmt.Errorf("dial: %w", err))
		return
	}

	sock := &socket{
		id:     uuid.NewString(),
		gen:    gen,
		stream: stream,
	}
	c.sock = sock
	c.mu.Unlock()

	data, err := wire.Encode(wire.NewConnect(c.identity))
	if err != nil {
		c.handleClose(gen, fmt.Errorf("encode connect: %w", err))
		return
	}
	if err := stream.Send(data); err != nil {
		c.handleClose(gen, fmt.Errorf("send connect: %w", err))
		return
	}
	c.logPacket(sock, log.DirectionOut, wire.TypeConnect, "", 0)

	go c.readLoop(sock)
}

// readLoop receives frames until the socket dies. One per socket.
func (c *Client) readLoop(sock *socket) {
	for {
		data, err := sock.stream.Receive(0)
		if err != nil {
			c.handleClose(sock.gen, fmt.Errorf("receive: %w", err))
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			c.logError("decode packet", err)
			c.handleClose(sock.gen, fmt.Errorf("decode packet: %w", err))
			return
		}

		switch msg.Type {
		case wire.TypeConnAck:
			c.handleConnAck(sock)
		case wire.TypePublish:
			c.handlePublish(sock, msg)
		case wire.TypePingResp:
			c.handlePong(sock, msg.Seq)
		case wire.TypePingReq:
			// Answer broker-initiated pings so either side may probe.
			c.sendPacket(sock, wire.NewPingResp(msg.Seq))
		case wire.TypeDisconnect:
			c.handleServerDisconnect(sock, msg.Reason)
			return
		default:
			c.logError("dispatch packet", fmt.Errorf("unexpected packet type %s", msg.Type))
		}
	}
}

// handleConnAck completes the handshake: cancel the handshake timer,
// start the heartbeat, fire the success signal. A duplicate ConnAck
// on an already-connected socket is ignored.
func (c *Client) handleConnAck(sock *socket) {
	c.mu.Lock()
	if sock.gen != c.gen || c.closed || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}

	c.timers.cancelHandshake()
	c.successCount++
	first := c.successCount == 1
	if !c.config.KeepBackoffAfterSuccess {
		c.backoff.Reset()
	}
	c.lastPingAt = time.Time{}
	c.lastPongAt = time.Time{}

	change := c.setStateLocked(StateConnected, "handshake complete")

	gen := sock.gen
	c.timers.startHeartbeat(c.config.HeartbeatInterval, func() {
		c.heartbeatTick(gen)
	})

	var fire func()
	if first {
		fire = c.onConnect
	} else {
		fire = c.onReconnect
	}
	c.mu.Unlock()

	c.logPacket(sock, log.DirectionIn, wire.TypeConnAck, "", 0)
	c.notifyStateChange(change)
	if fire != nil {
		fire()
	}
}

// handlePublish decodes the payload and hands it to the router.
// Handlers run synchronously on the read loop.
func (c *Client) handlePublish(sock *socket, msg *wire.Message) {
	c.logPacket(sock, log.DirectionIn, wire.TypePublish, msg.Topic, len(msg.Payload))

	var value any
	if len(msg.Payload) > 0 {
		if err := c.config.Payload.Unmarshal(msg.Payload, &value); err != nil {
			c.logError("decode payload", fmt.Errorf("topic %q: %w", msg.Topic, err))
			return
		}
	}
	c.router.Dispatch(msg.Topic, value)
}

// handlePong records the liveness response.
func (c *Client) handlePong(sock *socket, seq uint32) {
	c.mu.Lock()
	if sock.gen != c.gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	c.logControl(sock, log.DirectionIn, wire.TypePingResp, seq)
}

// handleServerDisconnect processes an orderly disconnect from the
// broker: the disconnect signal fires first, then the socket goes
// through the shared close handler like any other loss.
func (c *Client) handleServerDisconnect(sock *socket, reason string) {
	c.logControl(sock, log.DirectionIn, wire.TypeDisconnect, 0)

	c.mu.Lock()
	stale := sock.gen != c.gen || c.closed
	fn := c.onDisconnect
	identity := c.identity
	c.mu.Unlock()
	if stale {
		return
	}

	if fn != nil {
		fn(identity)
	}

	if reason == "" {
		reason = "server disconnect"
	}
	c.handleClose(sock.gen, errors.New(reason))
}

// handshakeTimeout fires when an attempt does not complete in time.
// Validation and teardown happen under one lock acquisition so a
// ConnAck racing the timer cannot slip in between.
func (c *Client) handshakeTimeout(gen uint64) {
	c.mu.Lock()
	if !c.timers.handshakeFired() || gen != c.gen || c.closed || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	outcome, ok := c.closeLocked(gen, ErrHandshakeTimeout)
	c.mu.Unlock()

	c.logError("handshake", ErrHandshakeTimeout)
	if ok {
		c.finishClose(outcome)
	}
}

// closeOutcome carries the results of a locked teardown to the
// post-lock actions.
type closeOutcome struct {
	stream    Stream
	change    stateChange
	closed    bool
	succeeded bool
	fatal     func(error)
	cause     error
}

// handleClose is the single teardown path for a socket generation.
// Every failure source converges here: dial errors, read loop errors,
// handshake timeout, heartbeat staleness, server disconnects. It runs
// at most once per generation; later calls for the same generation
// and any call for a stale generation are no-ops.
//
// After teardown it makes the reconnect decision: a client that has
// connected successfully at least once schedules a reconnect, one
// that never has reports a fatal error.
func (c *Client) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	outcome, ok := c.closeLocked(gen, cause)
	c.mu.Unlock()

	if ok {
		c.finishClose(outcome)
	}
}

// closeLocked performs the teardown. Caller holds c.mu. Returns false
// when the generation is stale or already closed.
func (c *Client) closeLocked(gen uint64, cause error) (closeOutcome, bool) {
	if gen != c.gen || c.genClosed {
		return closeOutcome{}, false
	}
	c.genClosed = true

	c.timers.stopAll()
	c.lastPingAt = time.Time{}
	c.lastPongAt = time.Time{}

	outcome := closeOutcome{
		closed:    c.closed,
		succeeded: c.successCount > 0,
		fatal:     c.onFatal,
		cause:     cause,
	}
	if c.sock != nil {
		outcome.stream = c.sock.stream
		c.sock = nil
	}

	if !outcome.closed {
		reason := "connection lost"
		if cause != nil {
			reason = cause.Error()
		}
		outcome.change = c.setStateLocked(StateDisconnected, reason)
	}
	return outcome, true
}

// finishClose runs the teardown steps that must happen outside the
// lock: stream close, callbacks, and the reconnect-or-fatal decision.
func (c *Client) finishClose(outcome closeOutcome) {
	if outcome.stream != nil {
		outcome.stream.Close()
	}

	c.notifyStateChange(outcome.change)

	if outcome.closed {
		return
	}
	if outcome.succeeded {
		c.scheduleReconnect()
		return
	}

	c.logError("connect", outcome.cause)
	if outcome.fatal != nil {
		outcome.fatal(outcome.cause)
	}
}

// scheduleReconnect arms the backoff timer for the next attempt.
func (c *Client) scheduleReconnect() {
	delay := c.backoff.Next()
	attempt := c.backoff.Attempts()

	c.mu.Lock()
	if c.closed || c.reconnect != nil {
		c.mu.Unlock()
		return
	}
	c.reconnect = time.AfterFunc(delay, c.reconnectFire)
	c.mu.Unlock()

	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionNone,
		Layer:     log.LayerClient,
		Category:  log.CategoryState,
		Identity:  c.identity,
		StateChange: &log.StateChangeEvent{
			OldState: StateDisconnected.String(),
			NewState: StateDisconnected.String(),
			Reason:   fmt.Sprintf("reconnect %d in %s", attempt, delay),
		},
	})
}

// reconnectFire starts the next attempt when the backoff delay
// elapses.
func (c *Client) reconnectFire() {
	c.mu.Lock()
	c.reconnect = nil
	if c.closed || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	change := c.startAttemptLocked()
	c.mu.Unlock()

	c.notifyStateChange(change)
}

// Send publishes a message to a topic. The payload is serialized with
// the configured codec. Delivery is fire-and-forget: when the client
// is not connected the message is dropped and Send returns nil. Only
// local errors (payload or packet encoding) are reported.
func (c *Client) Send(topic string, message any) error {
	if topic == "" {
		return fmt.Errorf("publish requires a topic")
	}

	body, err := c.config.Payload.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	data, err := wire.Encode(wire.NewPublish(topic, body))
	if err != nil {
		return fmt.Errorf("encode publish: %w", err)
	}

	c.mu.Lock()
	sock := c.sock
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || sock == nil {
		return nil
	}

	if err := sock.stream.Send(data); err != nil {
		// The read loop observes the broken socket and reconnects.
		c.logError("send publish", err)
		return nil
	}
	c.logPacket(sock, log.DirectionOut, wire.TypePublish, topic, len(body))
	return nil
}

// Close shuts the client down: a best-effort Disconnect packet goes
// out on an open socket, the socket is torn down, and no reconnect is
// scheduled. Close is idempotent; the client cannot be reused.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}

	sock := c.sock
	gen := c.gen
	change := c.setStateLocked(StateClosed, "closed by caller")
	c.mu.Unlock()

	if sock != nil {
		c.sendPacket(sock, wire.NewDisconnect(c.identity, "client closed"))
		c.handleClose(gen, nil)
	} else {
		c.mu.Lock()
		c.timers.stopAll()
		c.mu.Unlock()
	}

	c.notifyStateChange(change)
	return nil
}

// Disconnect is an alias for Close.
func (c *Client) Disconnect() error { return c.Close() }

// sendPacket encodes and sends a control packet, logging failures
// instead of surfacing them. The socket's fate is the read loop's
// business.
func (c *Client) sendPacket(sock *socket, msg *wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		c.logError("encode "+msg.Type.String(), err)
		return
	}
	if err := sock.stream.Send(data); err != nil {
		c.logError("send "+msg.Type.String(), err)
		return
	}
	c.logControl(sock, log.DirectionOut, msg.Type, msg.Seq)
}

// stateChange captures a transition made under the lock so the
// callback and logging can run outside it.
type stateChange struct {
	old, new State
	reason   string
	valid    bool
	fn       func(old, new State)
}

// setStateLocked transitions the lifecycle state. Caller holds c.mu.
func (c *Client) setStateLocked(next State, reason string) stateChange {
	old := c.state
	if old == next {
		return stateChange{}
	}
	c.state = next
	return stateChange{old: old, new: next, reason: reason, valid: true, fn: c.onStateChange}
}

// notifyStateChange logs a transition and invokes the state callback.
// Must be called without c.mu held.
func (c *Client) notifyStateChange(change stateChange) {
	if !change.valid {
		return
	}

	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionNone,
		Layer:     log.LayerClient,
		Category:  log.CategoryState,
		Identity:  c.identity,
		StateChange: &log.StateChangeEvent{
			OldState: change.old.String(),
			NewState: change.new.String(),
			Reason:   change.reason,
		},
	})

	if change.fn != nil {
		change.fn(change.old, change.new)
	}
}

// logPacket records wire-layer packet activity.
func (c *Client) logPacket(sock *socket, dir log.Direction, t wire.Type, topic string, payloadSize int) {
	category := log.CategoryControl
	if t == wire.TypePublish {
		category = log.CategoryMessage
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sock.id,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     category,
		Identity:     c.identity,
		Packet: &log.PacketEvent{
			PacketType:  t.String(),
			Topic:       topic,
			PayloadSize: payloadSize,
		},
	})
}

// logControl records keepalive and session control packets.
func (c *Client) logControl(sock *socket, dir log.Direction, t wire.Type, seq uint32) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: sock.id,
		Direction:    dir,
		Layer:        log.LayerClient,
		Category:     log.CategoryControl,
		Identity:     c.identity,
		Control: &log.ControlEvent{
			PacketType: t.String(),
			Seq:        seq,
		},
	})
}

// logError records an error event.
func (c *Client) logError(context string, err error) {
	if err == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionNone,
		Layer:     log.LayerClient,
		Category:  log.CategoryError,
		Identity:  c.identity,
		Error: &log.ErrorEventData{
			Layer:   log.LayerClient,
			Message: err.Error(),
			Context: context,
		},
	})
}
