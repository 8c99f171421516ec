package domain

import "fmt"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Terminal statuses accept no further transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// transitions is the complete transition table. Anything absent is invalid;
// there is no fallback path.
var transitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusSent:      true,
		StatusCancelled: true,
	},
	StatusSent: {
		StatusAccepted:  true,
		StatusRejected:  true,
		StatusCancelled: true,
		StatusExpired:   true,
	},
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid quote transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Transition validates from -> to against the table and returns the typed
// error for every pair it does not allow.
func Transition(from, to Status) error {
	if allowed, ok := transitions[from]; ok && allowed[to] {
		return nil
	}
	return &TransitionError{From: from, To: to}
}
