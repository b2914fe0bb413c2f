package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/repository/memstore"
	"github.com/deskline/helpdesk/internal/service"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	store    *memstore.Store
	rec      *recorder
	tickets  *service.TicketService
	messages *service.MessageService

	agent     *domain.User
	agent2    *domain.User
	requester *domain.User
	other     *domain.User

	form         *domain.Form
	inactiveForm *domain.Form
	response     *domain.FormResponse
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	rec := &recorder{}
	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, rec.handle)

	f := &fixture{
		store: store,
		rec:   rec,
		tickets: service.NewTicketService(service.TicketDependencies{
			Store:        store,
			Dispatcher:   dispatcher,
			DefaultLimit: 10,
			MaxLimit:     50,
		}),
		messages: service.NewMessageService(service.MessageDependencies{Store: store, Dispatcher: dispatcher}),
	}
	f.agent = store.AddUser(domain.User{Name: "Ada", Email: "ada@helpdesk.test", Role: domain.RoleInternal})
	f.agent2 = store.AddUser(domain.User{Name: "Grace", Email: "grace@helpdesk.test", Role: domain.RoleInternal})
	f.requester = store.AddUser(domain.User{Name: "Rui", Email: "rui@example.com", Role: domain.RoleExternal})
	f.other = store.AddUser(domain.User{Name: "Mia", Email: "mia@example.com", Role: domain.RoleExternal})
	f.form = store.AddForm(domain.Form{Subject: "Access request", Beneficiary: "IT", IsActive: true})
	f.inactiveForm = store.AddForm(domain.Form{Subject: "Legacy", Beneficiary: "HR", IsActive: false})
	f.response = store.AddFormResponse(domain.FormResponse{FormID: f.form.ID, Content: map[string]any{"system": "vpn"}})
	return f
}

// seed stores a ticket in the given state, bypassing the lifecycle.
func (f *fixture) seed(creator *domain.User, status domain.TicketStatus, responsible *domain.User) *domain.Ticket {
	ticket := domain.Ticket{
		FormID:    f.form.ID,
		CreatorID: creator.ID,
		Status:    status,
	}
	if responsible != nil {
		id := responsible.ID
		ticket.ResponsibleID = &id
	}
	return f.store.AddTicket(ticket)
}

func (f *fixture) stored(t *testing.T, id string) domain.Ticket {
	t.Helper()
	ticket, ok := f.store.RawTicket(id)
	require.True(t, ok, "ticket %s not stored", id)
	return ticket
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %T: %v", err, err)
	require.Equal(t, code, domainErr.Code, domainErr.Message)
	return domainErr
}

// requireAssignmentInvariant checks that only IN_PROGRESS and CLOSED tickets
// carry a responsible, and IN_PROGRESS always does.
func requireAssignmentInvariant(t *testing.T, ticket domain.Ticket) {
	t.Helper()
	switch ticket.Status {
	case domain.TicketStatusOpen:
		require.Nil(t, ticket.ResponsibleID, "OPEN ticket must not have a responsible")
	case domain.TicketStatusInProgress:
		require.NotNil(t, ticket.ResponsibleID, "IN_PROGRESS ticket must have a responsible")
	}
}

func strPtr(s string) *string { return &s }

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }
