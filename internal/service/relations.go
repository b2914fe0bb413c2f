package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/repository"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

// relationLoader attaches form, creator, responsible and response
// projections to tickets, memoizing lookups across a listing.
type relationLoader struct {
	store     repository.Store
	forms     map[string]*domain.Form
	users     map[string]*domain.User
	responses map[string]*domain.FormResponse
}

func newRelationLoader(store repository.Store) *relationLoader {
	return &relationLoader{
		store:     store,
		forms:     map[string]*domain.Form{},
		users:     map[string]*domain.User{},
		responses: map[string]*domain.FormResponse{},
	}
}

func (l *relationLoader) load(ctx context.Context, ticket *domain.Ticket) error {
	form, err := l.form(ctx, ticket.FormID)
	if err != nil {
		return err
	}
	ticket.Form = form.Summary()

	creator, err := l.user(ctx, ticket.CreatorID)
	if err != nil {
		return err
	}
	ticket.Creator = creator.Summary()

	ticket.Responsible = nil
	if ticket.HasResponsible() {
		responsible, err := l.user(ctx, *ticket.ResponsibleID)
		if err != nil {
			return err
		}
		ticket.Responsible = responsible.Summary()
	}

	ticket.Response = nil
	if ticket.ResponseID != nil {
		resp, err := l.response(ctx, *ticket.ResponseID)
		if err != nil {
			return err
		}
		ticket.Response = resp
	}
	return nil
}

// Missing relations (e.g. soft-deleted forms) load as nil projections.
func (l *relationLoader) form(ctx context.Context, id string) (*domain.Form, error) {
	if form, ok := l.forms[id]; ok {
		return form, nil
	}
	form, err := l.store.Forms().GetByID(ctx, id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	l.forms[id] = form
	return form, nil
}

func (l *relationLoader) user(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := l.users[id]; ok {
		return user, nil
	}
	user, err := l.store.Users().GetByID(ctx, id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	l.users[id] = user
	return user, nil
}

func (l *relationLoader) response(ctx context.Context, id string) (*domain.FormResponse, error) {
	if resp, ok := l.responses[id]; ok {
		return resp, nil
	}
	resp, err := l.store.FormResponses().GetByID(ctx, id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	l.responses[id] = resp
	return resp, nil
}
