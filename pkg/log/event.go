package log

import (
	"time"
)

// Event represents a Pulse log event captured at any layer.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time

	// ConnectionID uniquely identifies the socket generation the
	// event belongs to. Empty for events outside a connection.
	ConnectionID string

	// Direction indicates message flow.
	Direction Direction

	// Layer where the event was captured.
	Layer Layer

	// Category classifies the event type.
	Category Category

	// Identity is the client session identity, when known.
	Identity string

	// RemoteAddr is the peer address (IP:port), when known.
	RemoteAddr string

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       // Transport layer
	Packet      *PacketEvent      // Wire layer (decoded)
	StateChange *StateChangeEvent // Client lifecycle state
	Control     *ControlEvent     // Ping/pong/disconnect
	Error       *ErrorEventData   // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionNone indicates an event with no flow direction.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the packet encoding layer (decoded CBOR).
	LayerWire Layer = 1
	// LayerClient is the connection lifecycle layer.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an application message (publish).
	CategoryMessage Category = 0
	// CategoryControl indicates a control packet (connect/ping/disconnect).
	CategoryControl Category = 1
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures frame activity at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int
}

// PacketEvent captures a decoded packet at the wire layer.
type PacketEvent struct {
	// PacketType is the wire packet type name (CONNECT, PUBLISH, ...).
	PacketType string

	// Topic is set for publish packets.
	Topic string

	// PayloadSize is the application payload size in bytes.
	PayloadSize int
}

// StateChangeEvent captures client lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string

	// NewState is the new state.
	NewState string

	// Reason for the change (if available).
	Reason string
}

// ControlEvent captures keepalive and session control packets.
type ControlEvent struct {
	// PacketType is the control packet type name (PINGREQ, ...).
	PacketType string

	// Seq is the keepalive sequence number, when applicable.
	Seq uint32
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer

	// Message is the error message.
	Message string

	// Context describes what operation was being performed.
	Context string
}
