package workflow

import (
	"fmt"
	"strings"
)

// Status is the lifecycle position of one workflow.
type Status string

const (
	StatusPending     Status = "pending"
	StatusResearching Status = "researching"
	StatusOutlining   Status = "outlining"
	StatusWriting     Status = "writing"
	StatusEditing     Status = "editing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:     0,
	StatusResearching: 1,
	StatusOutlining:   2,
	StatusWriting:     3,
	StatusEditing:     4,
	StatusCompleted:   5,
	StatusFailed:      5,
}

// Rank orders statuses along the pipeline. Terminal statuses share the top
// rank; unknown statuses rank -1.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Label is the human-readable stage name shown in progress output.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Queued"
	case StatusResearching:
		return "Researching"
	case StatusOutlining:
		return "Outlining"
	case StatusWriting:
		return "Writing"
	case StatusEditing:
		return "Editing"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	}
	if s == "" {
		return ""
	}
	text := strings.ReplaceAll(string(s), "_", " ")
	return strings.ToUpper(text[:1]) + text[1:]
}

// CanTransition reports whether from may advance to to. Moves only go
// forward; failed is reachable from any non-terminal status.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return to.Rank() > from.Rank()
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: invalid transition %s -> %s", e.From, e.To)
}
