package dto

import (
	"time"

	"github.com/deskline/helpdesk/internal/domain"
)

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID         string       `json:"id"`
	TicketID   string       `json:"ticket_id"`
	SenderID   string       `json:"sender_id"`
	Content    string       `json:"content"`
	IsInternal bool         `json:"is_internal"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Sender     *UserSummary `json:"sender"`
}

// NewMessageResponse maps a domain message.
func NewMessageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		SenderID:   m.SenderID,
		Content:    m.Content,
		IsInternal: m.IsInternal,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Sender:     newUserSummary(m.Sender),
	}
}

// NewMessageResponses maps a thread.
func NewMessageResponses(messages []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, NewMessageResponse(&messages[i]))
	}
	return out
}
