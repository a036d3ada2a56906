// Package pool implements the two-tier browser/page resource pool of
// spec.md §3 (C6): a bounded set of browsers, each owning a bounded set
// of pages, acquired and released under a single named async lock.
// Grounded on the inflight-dedupe/cancellation shape of
// internal/jobs/picon_pool.go, adapted from "one queued download job"
// to "one long-lived acquired handle" since this pool hands out handles
// a caller holds for the lifetime of a capture run rather than firing a
// job and forgetting it.
package pool

import "fmt"

// State is the lifecycle spec.md §3 assigns to pages (the full chain)
// and, via its subset, to browsers (no CAPTURING/PAUSED).
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateCapturing
	StatePaused
	StateStopped
	StateClosed
	StateUnavailabled // terminal; reachable from any state on a fatal error
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateCapturing:
		return "capturing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	case StateUnavailabled:
		return "unavailabled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s has no valid outbound transition.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateUnavailabled
}

// transitions enumerates every valid (from, to) edge for a page. A
// browser uses the same table restricted to the non-CAPTURING/PAUSED
// subset; callers that never call ToCapturing/ToPaused on a browser
// handle simply never exercise those edges.
var transitions = map[State]map[State]bool{
	StateUninitialized: {StateReady: true, StateUnavailabled: true},
	StateReady:         {StateCapturing: true, StateClosed: true, StateUnavailabled: true},
	StateCapturing:     {StatePaused: true, StateStopped: true, StateUnavailabled: true},
	StatePaused:        {StateCapturing: true, StateStopped: true, StateUnavailabled: true},
	StateStopped:       {StateClosed: true, StateReady: true, StateUnavailabled: true},
	StateClosed:        {},
	StateUnavailabled:  {},
}

// Machine is a single handle's (page's or browser's) state, guarded by
// the caller's own lock (the pool serializes all mutation under one
// named async lock per spec.md §5, so Machine itself need not be
// concurrency-safe).
type Machine struct {
	state State
}

// NewMachine constructs a Machine in StateUninitialized.
func NewMachine() *Machine {
	return &Machine{state: StateUninitialized}
}

// State reports the current state.
func (m *Machine) State() State {
	return m.state
}

// Transition moves to State to, rejecting any edge not in the table.
func (m *Machine) Transition(to State) error {
	if m.state.Terminal() {
		return fmt.Errorf("pool: cannot transition out of terminal state %s", m.state)
	}
	if !transitions[m.state][to] {
		return fmt.Errorf("pool: invalid transition %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}
