package orchestrator

import "context"

// StateID is the closed set of orchestrator states. Transitions are
// returned by value from State.Execute and dispatched through a table,
// so an unknown state is a programming error caught at run time and a
// missing case is visible in one place.
type StateID int

const (
	// StateInit acquires an isolated browser session for the partition.
	StateInit StateID = iota
	// StateLogin restores or establishes an authenticated session.
	StateLogin
	// StateNavigate walks the UI to the partition's item list.
	StateNavigate
	// StateExtract runs the paginated per-item extraction loop.
	StateExtract
	// StateExit is terminal.
	StateExit
)

func (s StateID) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLogin:
		return "login"
	case StateNavigate:
		return "navigate"
	case StateExtract:
		return "extract-partition"
	case StateExit:
		return "exit"
	default:
		return "unknown"
	}
}

// State is one step of the run. Execute consumes the run context and
// returns the next state, or StateExit with a nil error on completion.
// Errors propagate immediately; the orchestrator holds no recovery logic.
type State interface {
	Execute(ctx context.Context, rc *RunContext) (StateID, error)
}
