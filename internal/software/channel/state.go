package channel

// State is the lifecycle state of the current connection.
type State string

const (
	StateClosed     State = "closed"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateFailed     State = "failed"
)

// String returns the string representation of the State.
func (state State) String() string {
	return string(state)
}
