package dispatch

// State is a dispatcher state.
type State string

const (
	StateIdle                 State = "Idle"
	StateEnvironmentActivated State = "EnvironmentActivated"
	StateExecuting            State = "Executing"
	StateLocated              State = "Located"
	StateMounted              State = "Mounted"
	StateRunning              State = "Running"
	StateStreaming            State = "Streaming"
	StateNextCommand          State = "NextCommand"
	StateDone                 State = "Done"
	StateFailed               State = "Failed"
)

// Terminal reports whether no transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
