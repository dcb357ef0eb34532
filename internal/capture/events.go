package capture

// State is the capture session lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateActive     State = "active"
	StateStopping   State = "stopping"
	StateError      State = "error"
)

// EventKind discriminates the variants of Event.
type EventKind int

const (
	// EventStateChanged carries the new State.
	EventStateChanged EventKind = iota
	// EventLevel carries the current input level in [0, 1].
	EventLevel
	// EventError carries a session error.
	EventError
)

// Event is delivered on the channel returned by Session.Events. The
// channel is fixed at construction; consumers that fall behind lose
// events rather than block the audio callback.
type Event struct {
	Kind  EventKind
	State State
	Level float64
	Err   error
}
