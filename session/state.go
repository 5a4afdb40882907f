package session

// State is the connection lifecycle state, mirrored on both peers.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
	Authenticating
	Authenticated
	Active
	Disconnecting
	Errored
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Active:
		return "active"
	case Disconnecting:
		return "disconnecting"
	case Errored:
		return "error"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// IsConnected reports whether the transport is up in this state.
func (s State) IsConnected() bool {
	switch s {
	case Connected, Authenticating, Authenticated, Active:
		return true
	default:
		return false
	}
}

// IsAuthenticated reports whether the peer has completed login.
func (s State) IsAuthenticated() bool {
	return s == Authenticated || s == Active
}
