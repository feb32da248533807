package session

// State is the lifecycle state of a session.
type State int

// Session states.
const (
	StateIdle State = iota
	StateLoading
	StateWatching
	StateReloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateWatching:
		return "watching"
	case StateReloading:
		return "reloading"
	default:
		return "unknown"
	}
}
