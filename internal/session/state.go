package session

// State is the lifecycle phase of a voice session.
type State int

const (
	// StateIdle means no session resources are live.
	StateIdle State = iota

	// StateConnecting means the transport dial is in flight.
	StateConnecting

	// StateActive means audio flows both ways.
	StateActive

	// StateMuted means the session is live but the microphone gate is
	// closed. Inbound playback continues.
	StateMuted

	// StateClosing means teardown is in progress.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateMuted:
		return "muted"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}
