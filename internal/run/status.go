// Package run defines the lifecycle state machine for recommended runs.
//
// Valid status graph:
//
//	running ──► completed
//	    │
//	    ├─────► failed
//	    │
//	    └─────► cancelled
//
// completed, failed and cancelled are terminal states.
package run

import "fmt"

// Status values mirror the status column of recommended_runs.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
	// terminal states have no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// IsTerminal reports whether a run in this status can never change again.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
