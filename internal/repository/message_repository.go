package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk/internal/domain"
)

// MessageRepository manages ticket thread messages. Messages are append-only.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// ListByTicket returns the thread oldest first. Internal notes are
	// dropped from the query when includeInternal is false.
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Message, error)
}

type messageRepository struct {
	db Querier
}

const messageColumns = `m.id, m.ticket_id, m.sender_id, m.content, m.is_internal, m.created_at, m.updated_at, m.deleted_at,
               u.id, u.email, u.role`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (ticket_id, sender_id, content, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Content,
		msg.IsInternal,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if !isUUID(id) {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + messageColumns + `
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        JOIN tickets t ON t.id = m.ticket_id AND t.deleted_at IS NULL
        WHERE m.id=$1 AND m.deleted_at IS NULL`
	return scanMessage(r.db.QueryRow(ctx, query, id))
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages m JOIN users u ON u.id = m.sender_id
        WHERE m.ticket_id=$1 AND m.deleted_at IS NULL`
	if !includeInternal {
		query += ` AND m.is_internal = FALSE`
	}
	query += ` ORDER BY m.created_at ASC, m.id ASC`

	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var sender domain.UserSummary
	if err := row.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.SenderID,
		&msg.Content,
		&msg.IsInternal,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&msg.DeletedAt,
		&sender.ID,
		&sender.Email,
		&sender.Role,
	); err != nil {
		return nil, err
	}
	msg.Sender = &sender
	return &msg, nil
}
