// Package transport implements the Pulse byte transport: TCP streams
// (optionally wrapped in TLS) carrying length-prefixed frames.
//
// The Dialer is the client-side stream factory: it opens a framed
// connection to a broker endpoint. The Listener is its server-side
// counterpart used by the broker. Both yield a Conn, which moves whole
// frames; packet encoding on top of frames lives in the wire package.
//
// # Framing
//
// Every frame is a 4-byte big-endian length prefix followed by the
// payload. Frames larger than the configured maximum are rejected on
// both ends.
package transport
