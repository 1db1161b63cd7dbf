// Package process implements the hierarchical, cancellable, rollback-capable
// state machine that drives every user-visible Hive2Hive operation. It is
// deliberately small: a value-typed lifecycle (this file), a capability
// contract leaves and composites both satisfy (component.go), a sequential
// or concurrent container of children (composite.go), and a background
// execution adapter (async.go) — replacing the teacher's deep template-method
// inheritance with one state machine implemented once (see DESIGN.md).
package process

import "fmt"

// LifecycleState enumerates the states every ProcessComponent obeys.
type LifecycleState int

const (
	Ready LifecycleState = iota
	Running
	Paused
	Rollbacking
	Succeeded
	Failed
)

func (s LifecycleState) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	case Rollbacking:
		return "ROLLBACKING"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
}

// IsTerminal reports whether s is one of the two terminal states.
func (s LifecycleState) IsTerminal() bool {
	return s == Succeeded || s == Failed
}

// legalTransitions enumerates every (from, to) pair spec §3 allows. Anything
// not listed here is an invariant violation, signalled as InvalidState.
var legalTransitions = map[LifecycleState]map[LifecycleState]bool{
	Ready:       {Running: true},
	Running:     {Paused: true, Rollbacking: true, Succeeded: true},
	Paused:      {Running: true, Rollbacking: true},
	Rollbacking: {Paused: true, Failed: true},
	Succeeded:   {Rollbacking: true},
	Failed:      {},
}

// IsLegalTransition reports whether moving from `from` to `to` is a legal
// transition per spec §3.
func IsLegalTransition(from, to LifecycleState) bool {
	return legalTransitions[from][to]
}
