package document

import "fmt"

// Status is the lifecycle state shared by documents and their steps.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// ParseStatus validates a raw status value coming from the API boundary.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return Status(raw), nil
	}
	return "", fmt.Errorf("invalid status %q", raw)
}

// CanTransition reports whether moving from s to next is a legal lifecycle move.
// Legal moves: pending -> processing -> {completed, error}.
// completed/error -> processing is allowed for regeneration of an existing document.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusError
	case StatusCompleted, StatusError:
		return next == StatusProcessing
	}
	return false
}

// Transition returns next if the move is legal, otherwise an error.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal status transition %s -> %s", s, next)
	}
	return next, nil
}

// Terminal reports whether the status is a final pipeline state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}
