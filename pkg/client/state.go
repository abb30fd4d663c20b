package client

// State is the client connection lifecycle state.
type State uint8

const (
	// StateDisconnected means no socket exists and no attempt is in
	// flight. A reconnect may be pending.
	StateDisconnected State = 0

	// StateConnecting means a connection attempt is in flight, bounded
	// by the handshake timer.
	StateConnecting State = 1

	// StateConnected means the handshake completed and the heartbeat
	// monitor is running.
	StateConnected State = 2

	// StateClosed means the client was closed by the caller. Terminal.
	StateClosed State = 3
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
