// Package wire defines the CBOR wire format for Pulse control packets.
//
// Pulse uses CBOR (RFC 8949) with integer keys for efficient encoding.
// All packets are length-prefixed frames on the transport layer.
//
// # Packet Types
//
//   - Connect: client to broker, opens a session for an identity
//   - ConnAck: broker to client, acknowledges the handshake
//   - Publish: either direction, carries a topic and an opaque payload
//   - PingReq / PingResp: keepalive exchange
//   - Disconnect: either direction, announces an orderly close
//
// The protocol has no subscribe control packet: brokers fan published
// messages out to every connected session and topic filtering happens
// on the client.
//
// # CBOR Integer Keys
//
// All maps use integer keys for compactness. The key mappings are
// defined as constants in this package.
package wire
