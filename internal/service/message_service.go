package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/repository"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

const messagePreviewLength = 120

// MessageService governs who can read and post to a ticket thread.
type MessageService struct {
	store      repository.Store
	dispatcher events.Dispatcher
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
}

// MessageCreateInput is a new post on a ticket thread.
type MessageCreateInput struct {
	Content    string
	IsInternal bool
}

// MessageThread is the visible part of a ticket thread.
type MessageThread struct {
	Messages []domain.Message
	Count    int
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	return &MessageService{store: deps.Store, dispatcher: deps.Dispatcher}
}

// ListMessages returns the thread in posting order. Internal notes are left
// out entirely for external users.
func (s *MessageService) ListMessages(ctx context.Context, user *domain.User, ticketID string) (*MessageThread, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if !auth.CanViewTicket(user, ticket) {
		return nil, apperrors.NewForbidden("you can only view messages of your own tickets")
	}

	messages, err := s.store.Messages().ListByTicket(ctx, ticket.ID, user.IsInternal())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	visible := make([]domain.Message, 0, len(messages))
	for i := range messages {
		if auth.CanViewMessage(user, ticket, &messages[i]) {
			visible = append(visible, messages[i])
		}
	}
	return &MessageThread{Messages: visible, Count: len(visible)}, nil
}

// GetMessageByID fetches one message, applying the ticket gate and then the
// internal-note gate.
func (s *MessageService) GetMessageByID(ctx context.Context, user *domain.User, messageID string) (*domain.Message, error) {
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, notFoundOr(err, "message", map[string]any{"message_id": messageID})
	}
	ticket, err := s.store.Tickets().GetByID(ctx, msg.TicketID)
	if err != nil {
		return nil, notFoundOr(err, "message", map[string]any{"message_id": messageID})
	}
	if !auth.CanViewTicket(user, ticket) {
		return nil, apperrors.NewForbidden("you can only view messages of your own tickets")
	}
	if !auth.CanViewMessage(user, ticket, msg) {
		return nil, apperrors.NewForbidden("internal notes are only visible to staff")
	}
	return msg, nil
}

// CreateMessage appends a post to an open thread.
func (s *MessageService) CreateMessage(ctx context.Context, user *domain.User, ticketID string, input MessageCreateInput) (*domain.Message, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}

	var msg *domain.Message
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		if !auth.CanViewTicket(user, ticket) {
			return apperrors.NewForbidden("you can only post on your own tickets")
		}
		if input.IsInternal && !user.IsInternal() {
			return apperrors.NewForbidden("only staff can post internal notes")
		}
		if ticket.IsClosed() {
			return apperrors.NewTicketClosed(ticket.ID)
		}

		msg = &domain.Message{
			TicketID:   ticket.ID,
			SenderID:   user.ID,
			Content:    content,
			IsInternal: input.IsInternal,
		}
		if err := tx.Messages().Create(ctx, msg); err != nil {
			return apperrors.MapError(err)
		}
		msg.Sender = user.Summary()
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, events.EventMessageAdded, msg.TicketID, user, events.MessageAddedPayload{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		IsInternal:  msg.IsInternal,
		BodyPreview: preview(msg.Content),
	})
	return msg, nil
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= messagePreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:messagePreviewLength]) + "..."
}
