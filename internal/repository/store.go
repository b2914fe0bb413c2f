package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories and runs them atomically when asked.
type Store interface {
	Users() UserRepository
	Forms() FormRepository
	FormResponses() FormResponseRepository
	Tickets() TicketRepository
	Messages() MessageRepository

	// WithinTx runs fn against a transactional Store. Returning an error
	// rolls every write back. Nested calls reuse the outer transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// isUUID guards UUID columns so malformed identifiers read as missing rows
// instead of surfacing as query errors.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type pgStore struct {
	pool *pgxpool.Pool
	db   Querier
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Users() UserRepository                 { return &userRepository{db: s.db} }
func (s *pgStore) Forms() FormRepository                 { return &formRepository{db: s.db} }
func (s *pgStore) FormResponses() FormResponseRepository { return &formResponseRepository{db: s.db} }
func (s *pgStore) Tickets() TicketRepository             { return &ticketRepository{db: s.db} }
func (s *pgStore) Messages() MessageRepository           { return &messageRepository{db: s.db} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgStore{db: tx})
	})
}
