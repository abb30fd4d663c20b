package wire

import (
	"fmt"
)

// CBOR map keys for packet encoding.
// All Pulse packets use integer keys for efficiency.
const (
	KeyType     = 1
	KeyIdentity = 2
	KeyTopic    = 3
	KeyPayload  = 4
	KeySeq      = 5
	KeyReason   = 6
)

// Type identifies a Pulse control packet.
type Type uint8

const (
	// TypeConnect opens a session. Carries the client identity.
	TypeConnect Type = 1

	// TypeConnAck acknowledges a Connect.
	TypeConnAck Type = 2

	// TypePublish carries an application message for a topic.
	TypePublish Type = 3

	// TypePingReq requests a liveness response.
	TypePingReq Type = 4

	// TypePingResp answers a PingReq with the same sequence number.
	TypePingResp Type = 5

	// TypeDisconnect announces an orderly close.
	TypeDisconnect Type = 6
)

// IsValid returns true if the type is a known packet type.
func (t Type) IsValid() bool {
	return t >= TypeConnect && t <= TypeDisconnect
}

// String returns the packet type name.
func (t Type) String() string {
	switch t {
	case TypeConnect:
		return "CONNECT"
	case TypeConnAck:
		return "CONNACK"
	case TypePublish:
		return "PUBLISH"
	case TypePingReq:
		return "PINGREQ"
	case TypePingResp:
		return "PINGRESP"
	case TypeDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Message is a Pulse control packet. A single struct covers all packet
// types; which fields are meaningful depends on Type.
//
// CBOR encoding:
//
//	{
//	  1: type,       // uint8
//	  2: identity,   // string (CONNECT, DISCONNECT)
//	  3: topic,      // string (PUBLISH)
//	  4: payload,    // bytes  (PUBLISH, opaque to this layer)
//	  5: seq,        // uint32 (PINGREQ, PINGRESP)
//	  6: reason      // string (DISCONNECT, optional)
//	}
type Message struct {
	Type     Type   `cbor:"1,keyasint"`
	Identity string `cbor:"2,keyasint,omitempty"`
	Topic    string `cbor:"3,keyasint,omitempty"`
	Payload  []byte `cbor:"4,keyasint,omitempty"`
	Seq      uint32 `cbor:"5,keyasint,omitempty"`
	Reason   string `cbor:"6,keyasint,omitempty"`
}

// Validate checks that the message is well-formed for its type.
func (m *Message) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid packet type: %d", m.Type)
	}
	switch m.Type {
	case TypeConnect:
		if m.Identity == "" {
			return fmt.Errorf("connect packet requires an identity")
		}
	case TypePublish:
		if m.Topic == "" {
			return fmt.Errorf("publish packet requires a topic")
		}
	}
	return nil
}

// NewConnect builds a Connect packet for the given identity.
func NewConnect(identity string) *Message {
	return &Message{Type: TypeConnect, Identity: identity}
}

// NewConnAck builds a ConnAck packet.
func NewConnAck() *Message {
	return &Message{Type: TypeConnAck}
}

// NewPublish builds a Publish packet.
func NewPublish(topic string, payload []byte) *Message {
	return &Message{Type: TypePublish, Topic: topic, Payload: payload}
}

// NewPingReq builds a PingReq packet with the given sequence number.
func NewPingReq(seq uint32) *Message {
	return &Message{Type: TypePingReq, Seq: seq}
}

// NewPingResp builds a PingResp packet answering the given sequence.
func NewPingResp(seq uint32) *Message {
	return &Message{Type: TypePingResp, Seq: seq}
}

// NewDisconnect builds a Disconnect packet. The reason may be empty.
func NewDisconnect(identity, reason string) *Message {
	return &Message{Type: TypeDisconnect, Identity: identity, Reason: reason}
}
