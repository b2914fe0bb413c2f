package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/repository"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// TicketService owns the ticket lifecycle: creation, role-scoped reads and
// every status or assignment change.
type TicketService struct {
	store        repository.Store
	dispatcher   events.Dispatcher
	defaultLimit int
	maxLimit     int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store        repository.Store
	Dispatcher   events.Dispatcher
	DefaultLimit int
	MaxLimit     int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	FormID     string
	ResponseID *string
	Priority   domain.TicketPriority
	Notes      *string
}

// NullableID distinguishes an absent field from an explicit null.
type NullableID struct {
	Set   bool
	Value *string
}

// TicketUpdateInput carries the fields an update may touch. Nil pointers and
// unset NullableIDs leave the stored value alone.
type TicketUpdateInput struct {
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	Notes         *string
	ResponsibleID NullableID
}

// TicketListFilter describes listing filters. Unset filters are not applied.
type TicketListFilter struct {
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	FormID        *string
	ResponsibleID *string
	Page          int
	Limit         int
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Tickets    []domain.Ticket
	Total      int
	TotalPages int
	Page       int
	Limit      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:        deps.Store,
		dispatcher:   deps.Dispatcher,
		defaultLimit: deps.DefaultLimit,
		maxLimit:     deps.MaxLimit,
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = defaultPageLimit
	}
	if s.maxLimit <= 0 {
		s.maxLimit = maxPageLimit
	}
	return s
}

// CreateTicket opens a ticket for any authenticated user.
func (s *TicketService) CreateTicket(ctx context.Context, creator *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if creator == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	formID := strings.TrimSpace(input.FormID)
	if formID == "" {
		return nil, apperrors.NewValidationError("form_id is required", map[string]any{"field": "form_id"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, invalidPriority(priority)
	}
	responseID := trimmedOrNil(input.ResponseID)

	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		form, err := tx.Forms().GetByID(ctx, formID)
		if err != nil {
			return notFoundOr(err, "form", map[string]any{"form_id": formID})
		}
		if !form.IsActive {
			return apperrors.NewFormInactive(formID)
		}

		if responseID != nil {
			resp, err := tx.FormResponses().GetByID(ctx, *responseID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewValidationError("form response not found", map[string]any{"response_id": *responseID})
				}
				return apperrors.MapError(err)
			}
			if resp.FormID != form.ID {
				return apperrors.NewValidationError("form response does not belong to the given form", map[string]any{
					"response_id": *responseID,
					"form_id":     formID,
				})
			}
		}

		ticket = &domain.Ticket{
			FormID:        form.ID,
			ResponseID:    responseID,
			CreatorID:     creator.ID,
			ResponsibleID: nil,
			Status:        domain.TicketStatusOpen,
			Priority:      priority,
			Notes:         trimmedOrNil(input.Notes),
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		return newRelationLoader(tx).load(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventTicketCreated, ticket.ID, creator, events.TicketCreatedPayload{
		FormID:     ticket.FormID,
		ResponseID: ticket.ResponseID,
		Priority:   ticket.Priority,
	})
	return ticket, nil
}

// ListTickets returns a page of tickets visible to user. External users only
// ever see their own tickets, whatever filters they pass.
func (s *TicketService) ListTickets(ctx context.Context, user *domain.User, filter TicketListFilter) (*TicketPage, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, invalidStatus(*filter.Status)
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, invalidPriority(*filter.Priority)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	repoFilter := repository.TicketFilter{
		Status:        filter.Status,
		Priority:      filter.Priority,
		FormID:        filter.FormID,
		ResponsibleID: filter.ResponsibleID,
		Limit:         limit,
	}
	// Pages whose offset would overflow lie past any real result set.
	beyondEnd := page-1 > math.MaxInt/limit
	if !beyondEnd {
		repoFilter.Offset = (page - 1) * limit
	}
	if !user.IsInternal() {
		creatorID := user.ID
		repoFilter.CreatorID = &creatorID
	}

	total, err := s.store.Tickets().Count(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	var tickets []domain.Ticket
	if !beyondEnd {
		tickets, err = s.store.Tickets().List(ctx, repoFilter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	loader := newRelationLoader(s.store)
	for i := range tickets {
		if err := loader.load(ctx, &tickets[i]); err != nil {
			return nil, err
		}
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}

	return &TicketPage{
		Tickets:    tickets,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		Page:       page,
		Limit:      limit,
	}, nil
}

// GetTicketByID fetches a ticket. A missing ticket is reported before any
// permission check.
func (s *TicketService) GetTicketByID(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if !auth.CanViewTicket(user, ticket) {
		return nil, apperrors.NewForbidden("you can only view your own tickets")
	}
	if err := newRelationLoader(s.store).load(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateTicket applies a staff update. Status changes go through the
// transition table; clearing the responsible of an IN_PROGRESS ticket sends
// it back to OPEN.
func (s *TicketService) UpdateTicket(ctx context.Context, user *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if !auth.CanMutateTicket(user) {
		return nil, apperrors.NewForbidden("only internal users can update tickets")
	}

	var before, after domain.Ticket
	var changed []string
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.IsClosed() {
			return apperrors.NewTicketClosed(ticket.ID)
		}
		if input.Status != nil && !input.Status.Valid() {
			return invalidStatus(*input.Status)
		}
		if input.Priority != nil && !input.Priority.Valid() {
			return invalidPriority(*input.Priority)
		}
		before = *ticket

		if input.Priority != nil && *input.Priority != ticket.Priority {
			ticket.Priority = *input.Priority
			changed = append(changed, "priority")
		}
		if input.Notes != nil {
			ticket.Notes = trimmedOrNil(input.Notes)
			changed = append(changed, "notes")
		}
		if input.ResponsibleID.Set {
			responsibleID := trimmedOrNil(input.ResponsibleID.Value)
			if responsibleID != nil {
				if err := requireInternalUser(ctx, tx, *responsibleID); err != nil {
					return err
				}
			}
			ticket.ResponsibleID = responsibleID
		}

		if input.Status != nil && *input.Status != before.Status {
			if err := domain.ValidateTransition(before.Status, *input.Status, ticket.ResponsibleID); err != nil {
				return err
			}
			ticket.Status = *input.Status
		} else if before.Status == domain.TicketStatusInProgress && !ticket.HasResponsible() {
			ticket.Status = domain.TicketStatusOpen
		}

		if err := checkAssignment(ticket); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		if err := newRelationLoader(tx).load(ctx, ticket); err != nil {
			return err
		}
		after = *ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChanges(ctx, user, &before, &after, changed)
	return &after, nil
}

// AssignToMe takes an OPEN ticket and moves it to IN_PROGRESS under the caller.
func (s *TicketService) AssignToMe(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	if !auth.CanMutateTicket(user) {
		return nil, apperrors.NewForbidden("only internal users can take tickets")
	}
	return s.transition(ctx, user, ticketID, domain.TicketStatusOpen, domain.TicketStatusInProgress,
		"only OPEN tickets can be taken", func(t *domain.Ticket) {
			responsibleID := user.ID
			t.ResponsibleID = &responsibleID
		})
}

// ReturnToQueue releases an IN_PROGRESS ticket back to OPEN.
func (s *TicketService) ReturnToQueue(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	if !auth.CanMutateTicket(user) {
		return nil, apperrors.NewForbidden("only internal users can return tickets to the queue")
	}
	return s.transition(ctx, user, ticketID, domain.TicketStatusInProgress, domain.TicketStatusOpen,
		"only IN_PROGRESS tickets can be returned to the queue", func(t *domain.Ticket) {
			t.ResponsibleID = nil
		})
}

// Close moves an IN_PROGRESS ticket to CLOSED, keeping its responsible.
func (s *TicketService) Close(ctx context.Context, user *domain.User, ticketID string) (*domain.Ticket, error) {
	if !auth.CanMutateTicket(user) {
		return nil, apperrors.NewForbidden("only internal users can close tickets")
	}
	return s.transition(ctx, user, ticketID, domain.TicketStatusInProgress, domain.TicketStatusClosed,
		"only IN_PROGRESS tickets can be closed", func(*domain.Ticket) {})
}

// DeleteTicket soft-deletes a ticket that is not CLOSED.
func (s *TicketService) DeleteTicket(ctx context.Context, user *domain.User, ticketID string) error {
	if !auth.CanMutateTicket(user) {
		return apperrors.NewForbidden("only internal users can delete tickets")
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.IsClosed() {
			return apperrors.NewTicketClosed(ticket.ID)
		}
		if err := tx.Tickets().SoftDelete(ctx, ticket.ID); err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publishEvent(ctx, events.EventTicketDeleted, ticketID, user, nil)
	return nil
}

// transition runs one of the dedicated lifecycle actions: the ticket must be
// in from, apply sets the assignment, and the result lands in to.
func (s *TicketService) transition(ctx context.Context, user *domain.User, ticketID string, from, to domain.TicketStatus, refusal string, apply func(*domain.Ticket)) (*domain.Ticket, error) {
	var before, after domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != from {
			return domain.NewTransitionError(ticket.Status, to, refusal)
		}
		before = *ticket
		apply(ticket)
		if err := domain.ValidateTransition(from, to, ticket.ResponsibleID); err != nil {
			return err
		}
		ticket.Status = to
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		if err := newRelationLoader(tx).load(ctx, ticket); err != nil {
			return err
		}
		after = *ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishChanges(ctx, user, &before, &after, nil)
	return &after, nil
}

// checkAssignment enforces that only IN_PROGRESS tickets carry a responsible,
// except CLOSED tickets which keep the last one on record.
func checkAssignment(ticket *domain.Ticket) error {
	switch ticket.Status {
	case domain.TicketStatusOpen:
		if ticket.HasResponsible() {
			return apperrors.NewValidationError("a responsible can only be set while the ticket is IN_PROGRESS", map[string]any{
				"status":         ticket.Status,
				"responsible_id": *ticket.ResponsibleID,
			})
		}
	case domain.TicketStatusInProgress, domain.TicketStatusClosed:
		if !ticket.HasResponsible() {
			return apperrors.NewValidationError("the ticket requires a responsible in its current status", map[string]any{
				"status": ticket.Status,
			})
		}
	}
	return nil
}

func lockTicket(ctx context.Context, tx repository.Store, ticketID string) (*domain.Ticket, error) {
	ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func requireInternalUser(ctx context.Context, store repository.Store, userID string) error {
	user, err := store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("responsible user not found", map[string]any{"responsible_id": userID})
		}
		return apperrors.MapError(err)
	}
	if !user.IsInternal() {
		return apperrors.NewValidationError("responsible must be an internal user", map[string]any{"responsible_id": userID})
	}
	return nil
}

func (s *TicketService) publishChanges(ctx context.Context, user *domain.User, before, after *domain.Ticket, fields []string) {
	if before.Status != after.Status {
		s.publishEvent(ctx, events.EventTicketStatusChanged, after.ID, user, events.TicketStatusChangedPayload{
			OldStatus:     before.Status,
			NewStatus:     after.Status,
			ResponsibleID: after.ResponsibleID,
		})
	}
	if !sameID(before.ResponsibleID, after.ResponsibleID) {
		s.publishEvent(ctx, events.EventTicketAssigned, after.ID, user, events.TicketAssignedPayload{
			OldResponsibleID: before.ResponsibleID,
			ResponsibleID:    after.ResponsibleID,
		})
	}
	if len(fields) > 0 {
		s.publishEvent(ctx, events.EventTicketUpdated, after.ID, user, events.TicketUpdatedPayload{Fields: fields})
	}
}

func (s *TicketService) publishEvent(ctx context.Context, eventType events.EventType, ticketID string, actor *domain.User, payload interface{}) {
	publish(ctx, s.dispatcher, eventType, ticketID, actor, payload)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, eventType events.EventType, ticketID string, actor *domain.User, payload interface{}) {
	if dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if actor != nil {
		event.Actor = events.Actor{UserID: actor.ID, Role: actor.Role}
	}
	// The mutation is committed; subscriber failures must not fail the request.
	_ = dispatcher.Publish(ctx, event)
}

func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

func invalidStatus(status domain.TicketStatus) error {
	return apperrors.NewValidationError("unknown status", map[string]any{"status": status})
}

func invalidPriority(priority domain.TicketPriority) error {
	return apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
