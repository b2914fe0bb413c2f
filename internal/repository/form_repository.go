package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk/internal/domain"
)

// FormRepository reads intake forms.
type FormRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Form, error)
}

// FormResponseRepository reads submitted form responses.
type FormResponseRepository interface {
	GetByID(ctx context.Context, id string) (*domain.FormResponse, error)
}

type formRepository struct {
	db Querier
}

type formResponseRepository struct {
	db Querier
}

func (r *formRepository) GetByID(ctx context.Context, id string) (*domain.Form, error) {
	if !isUUID(id) {
		return nil, pgx.ErrNoRows
	}
	const query = `
        SELECT id, subject, beneficiary, description, is_active, created_at, updated_at, deleted_at
        FROM forms WHERE id=$1 AND deleted_at IS NULL`
	var form domain.Form
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&form.ID,
		&form.Subject,
		&form.Beneficiary,
		&form.Description,
		&form.IsActive,
		&form.CreatedAt,
		&form.UpdatedAt,
		&form.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &form, nil
}

func (r *formResponseRepository) GetByID(ctx context.Context, id string) (*domain.FormResponse, error) {
	if !isUUID(id) {
		return nil, pgx.ErrNoRows
	}
	const query = `
        SELECT id, form_id, content, created_at, updated_at, deleted_at
        FROM form_responses WHERE id=$1 AND deleted_at IS NULL`
	var resp domain.FormResponse
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&resp.ID,
		&resp.FormID,
		&resp.Content,
		&resp.CreatedAt,
		&resp.UpdatedAt,
		&resp.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &resp, nil
}
