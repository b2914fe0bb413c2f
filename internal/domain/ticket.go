package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates ticket urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

var priorityRank = map[TicketPriority]int{
	TicketPriorityLow:    1,
	TicketPriorityMedium: 2,
	TicketPriorityHigh:   3,
	TicketPriorityUrgent: 4,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank orders priorities; higher is more urgent, unknown values rank 0.
func (p TicketPriority) Rank() int {
	return priorityRank[p]
}

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID            string
	FormID        string
	ResponseID    *string
	CreatorID     string
	ResponsibleID *string
	Status        TicketStatus
	Priority      TicketPriority
	Notes         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time

	// Projections loaded alongside the ticket.
	Form        *FormSummary
	Creator     *UserSummary
	Responsible *UserSummary
	Response    *FormResponse
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// HasResponsible reports whether an internal user currently owns the ticket.
func (t *Ticket) HasResponsible() bool {
	return t.ResponsibleID != nil && *t.ResponsibleID != ""
}
