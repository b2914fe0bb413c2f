package domain

import (
	"fmt"

	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress},
	TicketStatusInProgress: {TicketStatusClosed, TicketStatusOpen},
	TicketStatusClosed:     {},
}

// AllowedTransitions returns the statuses reachable from current.
func AllowedTransitions(current TicketStatus) []TicketStatus {
	next := allowedTransitions[current]
	out := make([]TicketStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether current -> next is in the transition table.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ValidateTransition checks a requested status change against the table and
// its guards. responsibleID is the responsible the ticket would carry after
// the change. Same-value requests are not transitions and always pass.
func ValidateTransition(current, next TicketStatus, responsibleID *string) error {
	if current == next {
		return nil
	}
	if !CanTransition(current, next) {
		return NewTransitionError(current, next, fmt.Sprintf("cannot change status from %s to %s", current, next))
	}
	assigned := responsibleID != nil && *responsibleID != ""
	switch next {
	case TicketStatusInProgress:
		if !assigned {
			return NewTransitionError(current, next, "a responsible is required to move a ticket to IN_PROGRESS")
		}
	case TicketStatusOpen:
		if assigned {
			return NewTransitionError(current, next, "the responsible must be removed to return a ticket to OPEN")
		}
	case TicketStatusClosed:
		if current != TicketStatusInProgress {
			return NewTransitionError(current, next, "only IN_PROGRESS tickets can be closed")
		}
	}
	return nil
}

// NewTransitionError reports a refused current -> next change along with the
// statuses that are reachable from current.
func NewTransitionError(current, next TicketStatus, message string) error {
	allowed := allowedTransitions[current]
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return apperrors.NewInvalidTransition(message, string(current), string(next), names)
}
