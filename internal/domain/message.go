package domain

import "time"

// Message captures a post in a ticket thread. Internal messages are staff
// notes hidden from external requesters.
type Message struct {
	ID         string
	TicketID   string
	SenderID   string
	Content    string
	IsInternal bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time

	Sender *UserSummary
}
