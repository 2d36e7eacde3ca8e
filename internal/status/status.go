package status

import (
	"fmt"
	"time"
)

// State is a commit status value as reported by the forge.
type State string

// State values, in descending severity.
const (
	StatePending State = "pending"
	StateError   State = "error"
	StateFailure State = "failure"
	StateSuccess State = "success"
)

// severity is the combined-status precedence. Index 0 wins.
var severity = []State{StatePending, StateError, StateFailure, StateSuccess}

// Valid reports whether s is one of the four known states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateError, StateFailure, StateSuccess:
		return true
	default:
		return false
	}
}

// InvalidStateError is returned when a caller proposes a state outside the known set.
type InvalidStateError struct {
	Value string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid status %q: must be pending, error, failure, or success", e.Value)
}

// ParseState validates s and returns it as a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", &InvalidStateError{Value: s}
	}
	return st, nil
}

// Record is one status entry on a commit. Several records may share a context;
// only the most recently updated one counts.
type Record struct {
	Context   string    `json:"context"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot maps a context to its authoritative record for one commit.
type Snapshot map[string]Record

// Combine reduces records to a Snapshot, keeping the latest record per context.
// On equal timestamps the record seen first is kept. records is not modified.
func Combine(records []Record) Snapshot {
	snap := make(Snapshot, len(records))
	for _, r := range records {
		cur, ok := snap[r.Context]
		if !ok || r.UpdatedAt.After(cur.UpdatedAt) {
			snap[r.Context] = r
		}
	}
	return snap
}

// Read returns the state for context, or the combined state when context is "".
// The boolean is false when there is no status to report.
func (s Snapshot) Read(context string) (State, bool) {
	if context == "" {
		return s.Combined()
	}
	r, ok := s[context]
	if !ok {
		return "", false
	}
	return r.State, true
}

// Combined returns the most severe state across all contexts
// (pending > error > failure > success).
func (s Snapshot) Combined() (State, bool) {
	present := make(map[State]bool, len(severity))
	for _, r := range s {
		present[r.State] = true
	}
	for _, st := range severity {
		if present[st] {
			return st, true
		}
	}
	return "", false
}
