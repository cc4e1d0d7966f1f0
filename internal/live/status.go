package live

// Status is the lifecycle state of a [Controller].
//
// The state machine is strictly forward: Idle → Connecting → Connected →
// (Disconnected | Error). Error and Disconnected are terminal; recovering
// from either means constructing a new Controller, never restarting the
// old one.
type Status int

const (
	// StatusIdle is the initial state before Start is called.
	StatusIdle Status = iota

	// StatusConnecting means the provider session is being established.
	StatusConnecting

	// StatusConnected means audio is streaming in both directions.
	StatusConnected

	// StatusDisconnected means the session ended cleanly. Terminal.
	StatusDisconnected

	// StatusError means the session failed. Terminal.
	StatusError
)

// String implements [fmt.Stringer].
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusError
}
