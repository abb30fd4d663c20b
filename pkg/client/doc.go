// Package client implements the Pulse client connection lifecycle.
//
// A Client owns exactly one broker connection at a time and drives it
// through a small state machine (Disconnected, Connecting, Connected,
// Closed). Connection attempts are bounded by a handshake timer,
// established connections are supervised by a heartbeat monitor, and
// involuntary disconnects trigger automatic reconnection with
// exponential backoff.
//
// All failure paths converge on a single close handler that is
// idempotent per socket generation: no matter how many layers observe
// the same socket dying (read loop, heartbeat, handshake timer), the
// teardown and the reconnect decision run at most once.
//
// Failures before the first successful handshake are fatal and are
// reported through the OnFatal signal; failures after at least one
// success always reconnect.
package client
