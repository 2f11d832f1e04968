package domain

// CallState is the lifecycle position of a signaling exchange.
// Idle means no session is recorded; Ended is never stored.
type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallConnected
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText lets the state travel as a string in whoami replies.
func (s CallState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
