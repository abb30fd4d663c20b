// Package broker implements a minimal Pulse broker.
//
// The broker accepts framed connections, completes the Connect/ConnAck
// handshake, answers keepalive pings, and fans published messages out
// to every other connected client. Topic filtering happens on the
// client side; the broker forwards everything.
//
// An optional SQLite journal records sessions and published messages
// for inspection.
package broker
