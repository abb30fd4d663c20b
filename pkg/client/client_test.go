package client

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulse-mq/pulse-go/pkg/identity"
	"github.com/pulse-mq/pulse-go/pkg/wire"
)

// fakeStream is an in-memory Stream scripted by the test. It can
// answer Connect and PingReq packets like a broker would.
type fakeStream struct {
	ackConnect bool
	pongPings  bool

	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []*wire.Message
}

func newFakeStream(ackConnect, pongPings bool) *fakeStream {
	return &fakeStream{
		ackConnect: ackConnect,
		pongPings:  pongPings,
		in:         make(chan []byte, 16),
		closed:     make(chan struct{}),
	}
}

func (s *fakeStream) Send(data []byte) error {
	select {
	case <-s.closed:
		return errors.New("stream closed")
	default:
	}

	msg, err := wire.Decode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	switch msg.Type {
	case wire.TypeConnect:
		if s.ackConnect {
			s.deliver(wire.NewConnAck())
		}
	case wire.TypePingReq:
		if s.pongPings {
			s.deliver(wire.NewPingResp(msg.Seq))
		}
	}
	return nil
}

func (s *fakeStream) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case data := <-s.in:
		return data, nil
	case <-s.closed:
		return nil, errors.New("stream closed")
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// deliver queues a packet for the client's read loop.
func (s *fakeStream) deliver(msg *wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		panic(err)
	}
	select {
	case s.in <- data:
	case <-s.closed:
	}
}

// sentTypes returns the packet types the client sent, in order.
func (s *fakeStream) sentTypes() []wire.Type {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]wire.Type, len(s.sent))
	for i, m := range s.sent {
		types[i] = m.Type
	}
	return types
}

// sentOfType returns the first sent packet of the given type, or nil.
func (s *fakeStream) sentOfType(t wire.Type) *wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.sent {
		if m.Type == t {
			return m
		}
	}
	return nil
}

func (s *fakeStream) countSent(t wire.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.sent {
		if m.Type == t {
			n++
		}
	}
	return n
}

// fakeDialer hands out fakeStreams. failFirst makes the first N dials
// fail; ackPlan overrides ackConnect per dial (1-based, defaults to
// true past its end).
type fakeDialer struct {
	failFirst int
	ackPlan   []bool
	pongPings bool

	mu      sync.Mutex
	dials   int
	hosts   []string
	ports   []int
	streams []*fakeStream
}

func (d *fakeDialer) Dial(ctx context.Context, host string, port int) (Stream, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.hosts = append(d.hosts, host)
	d.ports = append(d.ports, port)
	fail := n <= d.failFirst
	ack := true
	if n-1 < len(d.ackPlan) {
		ack = d.ackPlan[n-1]
	}
	d.mu.Unlock()

	if fail {
		return nil, errors.New("connection refused")
	}

	s := newFakeStream(ack, d.pongPings)
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) stream(n int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n-1 >= len(d.streams) {
		return nil
	}
	return d.streams[n-1]
}

func (d *fakeDialer) lastStream() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// testConfig returns a config with short timings for tests.
func testConfig(d Dialer) Config {
	return Config{
		Identity:              identity.Fixed("client-under-test"),
		HandshakeTimeout:      60 * time.Millisecond,
		HeartbeatInterval:     20 * time.Millisecond,
		ReconnectDelayInitial: 10 * time.Millisecond,
		ReconnectDelayMax:     40 * time.Millisecond,
		Dialer:                d,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestConnectLifecycle(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	var connects atomic.Int32
	c.OnConnect(func() { connects.Add(1) })

	if err := c.Connect("broker.local", 7110); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")
	waitFor(t, time.Second, func() bool { return connects.Load() == 1 }, "connect signal")

	if got := c.SuccessCount(); got != 1 {
		t.Errorf("SuccessCount = %d, want 1", got)
	}

	connect := d.stream(1).sentOfType(wire.TypeConnect)
	if connect == nil {
		t.Fatal("no Connect packet sent")
	}
	if connect.Identity != "client-under-test" {
		t.Errorf("Connect identity = %q, want client-under-test", connect.Identity)
	}
}

func TestConnectValidation(t *testing.T) {
	t.Run("no endpoint", func(t *testing.T) {
		c := New(testConfig(&fakeDialer{}))
		defer c.Close()

		if err := c.Connect("", 0); !errors.Is(err, ErrNoEndpoint) {
			t.Errorf("Connect = %v, want ErrNoEndpoint", err)
		}
	})

	t.Run("already connected", func(t *testing.T) {
		d := &fakeDialer{pongPings: true}
		c := New(testConfig(d))
		defer c.Close()

		if err := c.Connect("h", 1); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

		if err := c.Connect("h", 1); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("connect in progress", func(t *testing.T) {
		d := &slowDialer{release: make(chan struct{})}
		defer close(d.release)

		c := New(testConfig(d))
		defer c.Close()

		if err := c.Connect("h", 1); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if err := c.Connect("h", 1); !errors.Is(err, ErrConnectInProgress) {
			t.Errorf("overlapping Connect = %v, want ErrConnectInProgress", err)
		}
	})

	t.Run("after close", func(t *testing.T) {
		c := New(testConfig(&fakeDialer{}))
		c.Close()

		if err := c.Connect("h", 1); !errors.Is(err, ErrClientClosed) {
			t.Errorf("Connect after Close = %v, want ErrClientClosed", err)
		}
	})
}

// slowDialer blocks dials until released.
type slowDialer struct {
	release chan struct{}
}

func (d *slowDialer) Dial(ctx context.Context, host string, port int) (Stream, error) {
	<-d.release
	return nil, errors.New("released")
}

func TestFirstDialFailureIsFatal(t *testing.T) {
	d := &fakeDialer{failFirst: 1 << 30}
	c := New(testConfig(d))
	defer c.Close()

	fatals := make(chan error, 1)
	c.OnFatal(func(err error) { fatals <- err })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case err := <-fatals:
		if err == nil {
			t.Error("fatal signal carried nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("fatal signal never fired")
	}

	if got := c.State(); got != StateDisconnected {
		t.Errorf("state after fatal = %v, want DISCONNECTED", got)
	}

	// No reconnect before the first success.
	time.Sleep(100 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Errorf("dials = %d, want 1 (no reconnect before first success)", got)
	}
}

func TestHandshakeTimeoutBeforeFirstSuccessIsFatal(t *testing.T) {
	d := &fakeDialer{ackPlan: []bool{false}}
	c := New(testConfig(d))
	defer c.Close()

	fatals := make(chan error, 1)
	c.OnFatal(func(err error) { fatals <- err })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case err := <-fatals:
		if !errors.Is(err, ErrHandshakeTimeout) {
			t.Errorf("fatal error = %v, want ErrHandshakeTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("fatal signal never fired")
	}

	waitFor(t, time.Second, func() bool {
		select {
		case <-d.stream(1).closed:
			return true
		default:
			return false
		}
	}, "stream teardown")
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	var connects, reconnects atomic.Int32
	c.OnConnect(func() { connects.Add(1) })
	c.OnReconnect(func() { reconnects.Add(1) })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "first connect")

	// Transport drop.
	d.stream(1).Close()

	waitFor(t, 2*time.Second, func() bool { return c.SuccessCount() == 2 }, "reconnect")
	waitFor(t, time.Second, func() bool { return reconnects.Load() == 1 }, "reconnect signal")

	if got := connects.Load(); got != 1 {
		t.Errorf("connect signal fired %d times, want exactly 1", got)
	}
	if got := d.dialCount(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
}

func TestHandshakeTimeoutAfterSuccessReconnects(t *testing.T) {
	// Second dial never completes the handshake; the third succeeds.
	d := &fakeDialer{ackPlan: []bool{true, false, true}, pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	fatals := make(chan error, 1)
	c.OnFatal(func(err error) { fatals <- err })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "first connect")

	d.stream(1).Close()

	waitFor(t, 2*time.Second, func() bool { return c.SuccessCount() == 2 }, "recovery after handshake timeout")

	select {
	case err := <-fatals:
		t.Errorf("fatal signal fired after a successful connection: %v", err)
	default:
	}
}

func TestServerDisconnect(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	identities := make(chan string, 1)
	c.OnDisconnect(func(id string) { identities <- id })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	d.stream(1).deliver(wire.NewDisconnect("broker", "shutting down"))

	select {
	case id := <-identities:
		if id != "client-under-test" {
			t.Errorf("disconnect signal identity = %q, want client-under-test", id)
		}
	case <-time.After(time.Second):
		t.Fatal("disconnect signal never fired")
	}

	// An announced disconnect is still recoverable.
	waitFor(t, 2*time.Second, func() bool { return c.SuccessCount() == 2 }, "reconnect after server disconnect")
}

func TestHeartbeatPings(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	waitFor(t, time.Second, func() bool {
		return d.stream(1).countSent(wire.TypePingReq) >= 2
	}, "periodic pings")

	// Answered pings keep the connection healthy.
	if got := c.State(); got != StateConnected {
		t.Errorf("state = %v, want CONNECTED", got)
	}
	if got := d.dialCount(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
}

func TestHeartbeatStalenessForcesReconnect(t *testing.T) {
	// Broker acks connects but never answers pings.
	d := &fakeDialer{pongPings: false}
	c := New(testConfig(d))
	defer c.Close()

	var reconnects atomic.Int32
	c.OnReconnect(func() { reconnects.Add(1) })
	fatals := make(chan error, 1)
	c.OnFatal(func(err error) { fatals <- err })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	waitFor(t, 2*time.Second, func() bool { return c.SuccessCount() >= 2 }, "reconnect after stale connection")

	select {
	case <-d.stream(1).closed:
	default:
		t.Error("stale stream was not closed")
	}
	select {
	case err := <-fatals:
		t.Errorf("staleness after success must not be fatal: %v", err)
	default:
	}
}

func TestCloseHandlerIdempotentPerGeneration(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	// Two observers of the same dead socket: teardown runs once, so
	// only one reconnect is scheduled.
	cause := errors.New("socket died")
	c.handleClose(gen, cause)
	c.handleClose(gen, cause)

	waitFor(t, 2*time.Second, func() bool { return c.SuccessCount() == 2 }, "single reconnect")
	time.Sleep(100 * time.Millisecond)
	if got := d.dialCount(); got != 2 {
		t.Errorf("dials = %d, want 2 (duplicate close must not double-reconnect)", got)
	}
}

func TestPublishDispatch(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	got := make(chan any, 4)
	id := c.Subscribe("metrics", func(topic string, m any) { got <- m })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	s := d.stream(1)
	s.deliver(wire.NewPublish("metrics", []byte(`{"load":0.75}`)))
	s.deliver(wire.NewPublish("metrics/extra", []byte(`{"load":1}`)))

	select {
	case m := <-got:
		want := map[string]any{"load": 0.75}
		if !reflect.DeepEqual(m, want) {
			t.Errorf("handler got %v, want %v", m, want)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}

	// "metrics/extra" must not reach the "metrics" handler, and after
	// unsubscribing nothing does.
	c.Unsubscribe("metrics", id)
	s.deliver(wire.NewPublish("metrics", []byte(`{"load":0.5}`)))

	select {
	case m := <-got:
		t.Errorf("unexpected dispatch: %v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSend(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	if err := c.Send("metrics", map[string]any{"load": 0.5}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return d.stream(1).sentOfType(wire.TypePublish) != nil
	}, "publish on the wire")

	pub := d.stream(1).sentOfType(wire.TypePublish)
	if pub.Topic != "metrics" {
		t.Errorf("publish topic = %q, want metrics", pub.Topic)
	}
	if len(pub.Payload) == 0 {
		t.Error("publish payload is empty")
	}
}

func TestSendValidation(t *testing.T) {
	c := New(testConfig(&fakeDialer{}))
	defer c.Close()

	if err := c.Send("", "x"); err == nil {
		t.Error("Send with empty topic should fail")
	}

	// Fire-and-forget: not connected means silently dropped.
	if err := c.Send("metrics", "x"); err != nil {
		t.Errorf("Send while disconnected = %v, want nil", err)
	}
}

func TestCloseIdempotentAndSuppressesReconnect(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if got := c.State(); got != StateClosed {
		t.Errorf("state = %v, want CLOSED", got)
	}

	if d.stream(1).sentOfType(wire.TypeDisconnect) == nil {
		t.Error("no Disconnect packet sent on Close")
	}

	time.Sleep(100 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Errorf("dials after Close = %d, want 1 (no reconnect)", got)
	}
}

func TestDuplicateConnAckIgnored(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	var connects atomic.Int32
	c.OnConnect(func() { connects.Add(1) })

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	d.stream(1).deliver(wire.NewConnAck())
	time.Sleep(50 * time.Millisecond)

	if got := connects.Load(); got != 1 {
		t.Errorf("connect signal fired %d times, want 1", got)
	}
	if got := c.SuccessCount(); got != 1 {
		t.Errorf("SuccessCount = %d, want 1", got)
	}
}

func TestReconnectReusesEndpoint(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	if err := c.Connect("broker.local", 7110); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	d.stream(1).Close()
	waitFor(t, 2*time.Second, func() bool { return d.dialCount() == 2 }, "redial")

	d.mu.Lock()
	host, port := d.hosts[1], d.ports[1]
	d.mu.Unlock()
	if host != "broker.local" || port != 7110 {
		t.Errorf("redial endpoint = %s:%d, want broker.local:7110", host, port)
	}
}

func TestConnectReusesStoredEndpoint(t *testing.T) {
	d := &fakeDialer{failFirst: 1, pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	if err := c.Connect("broker.local", 7110); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	// First dial fails before any success: fatal, no auto-retry.
	waitFor(t, time.Second, func() bool { return c.State() == StateDisconnected }, "disconnected after fatal")

	if err := c.Connect("", 0); err != nil {
		t.Fatalf("Connect with empty host failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	d.mu.Lock()
	host := d.hosts[1]
	d.mu.Unlock()
	if host != "broker.local" {
		t.Errorf("redial host = %q, want stored broker.local", host)
	}
}

func TestBackoffAcrossSuccess(t *testing.T) {
	t.Run("reset on success", func(t *testing.T) {
		d := &fakeDialer{pongPings: true}
		c := New(testConfig(d))
		defer c.Close()

		if err := c.Connect("h", 1); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "first connect")

		d.stream(1).Close()
		waitFor(t, 2*time.Second, func() bool { return c.SuccessCount() == 2 }, "reconnect")

		if got := c.backoff.Attempts(); got != 0 {
			t.Errorf("backoff attempts after success = %d, want 0", got)
		}
	})

	t.Run("keep across success", func(t *testing.T) {
		d := &fakeDialer{pongPings: true}
		cfg := testConfig(d)
		cfg.KeepBackoffAfterSuccess = true
		c := New(cfg)
		defer c.Close()

		if err := c.Connect("h", 1); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "first connect")

		d.stream(1).Close()
		waitFor(t, 2*time.Second, func() bool { return c.SuccessCount() == 2 }, "reconnect")

		if got := c.backoff.Attempts(); got == 0 {
			t.Error("backoff attempts should carry across success")
		}
	})
}

func TestStateChangeSignal(t *testing.T) {
	d := &fakeDialer{pongPings: true}
	c := New(testConfig(d))
	defer c.Close()

	var mu sync.Mutex
	var transitions []string
	c.OnStateChange(func(old, new State) {
		mu.Lock()
		transitions = append(transitions, old.String()+">"+new.String())
		mu.Unlock()
	})

	if err := c.Connect("h", 1); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.State() == StateConnected }, "connected state")

	// Callbacks fire outside the client lock, so delivery order across
	// goroutines is not guaranteed; assert both transitions happened.
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(transitions) == 2
	}, "both transitions")

	mu.Lock()
	got := append([]string(nil), transitions...)
	mu.Unlock()

	seen := map[string]bool{}
	for _, tr := range got {
		seen[tr] = true
	}
	if !seen["DISCONNECTED>CONNECTING"] || !seen["CONNECTING>CONNECTED"] {
		t.Errorf("transitions = %v, want connecting and connected", got)
	}
}
