package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/repository/memstore"
	"github.com/deskline/helpdesk/internal/service"
	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

func TestCreateTicketByExternalUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.CreateTicket(ctx, f.requester, service.TicketCreateInput{FormID: f.form.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, f.requester.ID, ticket.CreatorID)
	assert.Nil(t, ticket.ResponsibleID)
	assert.Nil(t, ticket.Responsible)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	require.NotNil(t, ticket.Form)
	assert.Equal(t, "Access request", ticket.Form.Subject)
	require.NotNil(t, ticket.Creator)
	assert.Equal(t, f.requester.Email, ticket.Creator.Email)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, f.rec.types())
	assert.Equal(t, 1, f.store.TicketCount())
}

func TestCreateTicketWithResponseAndPriority(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.tickets.CreateTicket(context.Background(), f.requester, service.TicketCreateInput{
		FormID:     f.form.ID,
		ResponseID: strPtr(f.response.ID),
		Priority:   domain.TicketPriorityUrgent,
		Notes:      strPtr("  laptop stolen  "),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, ticket.Priority)
	require.NotNil(t, ticket.Response)
	assert.Equal(t, "vpn", ticket.Response.Content["system"])
	require.NotNil(t, ticket.Notes)
	assert.Equal(t, "laptop stolen", *ticket.Notes)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	foreign := f.store.AddFormResponse(domain.FormResponse{FormID: f.inactiveForm.ID})

	cases := []struct {
		name  string
		input service.TicketCreateInput
		code  string
	}{
		{name: "missing form", input: service.TicketCreateInput{}, code: apperrors.CodeValidation},
		{name: "blank form", input: service.TicketCreateInput{FormID: "   "}, code: apperrors.CodeValidation},
		{name: "unknown form", input: service.TicketCreateInput{FormID: "6f1c8a54-0000-4000-8000-000000000000"}, code: apperrors.CodeNotFound},
		{name: "inactive form", input: service.TicketCreateInput{FormID: f.inactiveForm.ID}, code: apperrors.CodeFormInactive},
		{name: "response of another form", input: service.TicketCreateInput{FormID: f.form.ID, ResponseID: strPtr(foreign.ID)}, code: apperrors.CodeValidation},
		{name: "unknown response", input: service.TicketCreateInput{FormID: f.form.ID, ResponseID: strPtr("missing")}, code: apperrors.CodeValidation},
		{name: "unknown priority", input: service.TicketCreateInput{FormID: f.form.ID, Priority: "CRITICAL"}, code: apperrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.tickets.CreateTicket(context.Background(), f.requester, tc.input)
			requireCode(t, err, tc.code)
		})
	}
	assert.Zero(t, f.store.TicketCount(), "failed creations must not persist tickets")
	assert.Empty(t, f.rec.types())
}

func TestCreateTicketRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(memstore.OpTicketCreate, errors.New("connection reset"))

	_, err := f.tickets.CreateTicket(context.Background(), f.requester, service.TicketCreateInput{FormID: f.form.ID})
	domainErr := requireCode(t, err, apperrors.CodeInternal)
	assert.ErrorContains(t, domainErr.Err, "connection reset")
	assert.Zero(t, f.store.TicketCount())
}

func TestListTicketsScopesExternalUsersToOwnTickets(t *testing.T) {
	f := newFixture(t)
	own := f.seed(f.requester, domain.TicketStatusOpen, nil)
	f.seed(f.other, domain.TicketStatusOpen, nil)
	f.seed(f.other, domain.TicketStatusInProgress, f.agent)

	filters := []service.TicketListFilter{
		{},
		{Status: statusPtr(domain.TicketStatusInProgress)},
		{ResponsibleID: strPtr(f.agent.ID)},
		{FormID: strPtr(f.form.ID)},
	}
	for _, filter := range filters {
		page, err := f.tickets.ListTickets(context.Background(), f.requester, filter)
		require.NoError(t, err)
		for _, ticket := range page.Tickets {
			assert.Equal(t, f.requester.ID, ticket.CreatorID)
		}
	}

	page, err := f.tickets.ListTickets(context.Background(), f.requester, service.TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Tickets, 1)
	assert.Equal(t, own.ID, page.Tickets[0].ID)

	page, err = f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestListTicketsOrderingAndFilters(t *testing.T) {
	f := newFixture(t)
	low := f.store.AddTicket(domain.Ticket{FormID: f.form.ID, CreatorID: f.requester.ID, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow})
	urgentOld := f.store.AddTicket(domain.Ticket{FormID: f.form.ID, CreatorID: f.requester.ID, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityUrgent})
	medium := f.store.AddTicket(domain.Ticket{FormID: f.form.ID, CreatorID: f.requester.ID, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityMedium})
	urgentNew := f.store.AddTicket(domain.Ticket{FormID: f.form.ID, CreatorID: f.requester.ID, Status: domain.TicketStatusInProgress, Priority: domain.TicketPriorityUrgent, ResponsibleID: strPtr(f.agent.ID)})

	page, err := f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{})
	require.NoError(t, err)
	var ids []string
	for _, ticket := range page.Tickets {
		ids = append(ids, ticket.ID)
	}
	assert.Equal(t, []string{urgentNew.ID, urgentOld.ID, medium.ID, low.ID}, ids)

	page, err = f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{
		Status:   statusPtr(domain.TicketStatusOpen),
		Priority: priorityPtr(domain.TicketPriorityUrgent),
	})
	require.NoError(t, err)
	require.Len(t, page.Tickets, 1, "filters combine")
	assert.Equal(t, urgentOld.ID, page.Tickets[0].ID)

	page, err = f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{ResponsibleID: strPtr(f.agent.ID)})
	require.NoError(t, err)
	require.Len(t, page.Tickets, 1)
	require.NotNil(t, page.Tickets[0].Responsible)
	assert.Equal(t, f.agent.Email, page.Tickets[0].Responsible.Email)
}

func TestListTicketsPagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.seed(f.requester, domain.TicketStatusOpen, nil)
	}

	page, err := f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Tickets, 3)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.Limit)

	page, err = f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{Page: 9, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, page.Tickets)
	assert.NotNil(t, page.Tickets)

	page, err = f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{Page: math.MaxInt, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, page.Tickets, "an unreachable page does not wrap to the first one")
	assert.NotNil(t, page.Tickets)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, math.MaxInt, page.Page)

	page, err = f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Limit, "limit is capped")
	assert.Equal(t, 1, page.Page)

	_, err = f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{Status: statusPtr("DONE")})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestGetTicketByID(t *testing.T) {
	f := newFixture(t)
	theirs := f.seed(f.other, domain.TicketStatusOpen, nil)
	mine := f.seed(f.requester, domain.TicketStatusOpen, nil)
	ctx := context.Background()

	_, err := f.tickets.GetTicketByID(ctx, f.requester, theirs.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.tickets.GetTicketByID(ctx, f.requester, "b3b0c4f2-0000-4000-8000-000000000000")
	requireCode(t, err, apperrors.CodeNotFound)

	got, err := f.tickets.GetTicketByID(ctx, f.requester, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	got, err = f.tickets.GetTicketByID(ctx, f.agent, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, theirs.ID, got.ID)

	require.NoError(t, f.tickets.DeleteTicket(ctx, f.agent, theirs.ID))
	_, err = f.tickets.GetTicketByID(ctx, f.requester, theirs.ID)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestUpdateTicketRequiresInternalRoleFirst(t *testing.T) {
	f := newFixture(t)
	mine := f.seed(f.requester, domain.TicketStatusOpen, nil)

	_, err := f.tickets.UpdateTicket(context.Background(), f.requester, "missing", service.TicketUpdateInput{})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.tickets.UpdateTicket(context.Background(), f.requester, mine.ID, service.TicketUpdateInput{
		Priority: priorityPtr(domain.TicketPriorityHigh),
	})
	requireCode(t, err, apperrors.CodeForbidden)
	assert.Equal(t, domain.TicketPriorityMedium, f.stored(t, mine.ID).Priority)
}

func TestUpdateTicketNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.tickets.UpdateTicket(context.Background(), f.agent, "missing", service.TicketUpdateInput{})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestUpdateTicketUnassignReturnsToOpen(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusInProgress, f.agent)

	updated, err := f.tickets.UpdateTicket(context.Background(), f.agent, ticket.ID, service.TicketUpdateInput{
		ResponsibleID: service.NullableID{Set: true},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Nil(t, updated.ResponsibleID)
	assert.Nil(t, updated.Responsible)

	stored := f.stored(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.ResponsibleID)
	assert.ElementsMatch(t, []events.EventType{events.EventTicketStatusChanged, events.EventTicketAssigned}, f.rec.types())
}

func TestUpdateTicketFields(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusOpen, nil)

	updated, err := f.tickets.UpdateTicket(context.Background(), f.agent, ticket.ID, service.TicketUpdateInput{
		Priority: priorityPtr(domain.TicketPriorityHigh),
		Notes:    strPtr("waiting on vendor"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "waiting on vendor", *updated.Notes)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Equal(t, []events.EventType{events.EventTicketUpdated}, f.rec.types())

	updated, err = f.tickets.UpdateTicket(context.Background(), f.agent, ticket.ID, service.TicketUpdateInput{Notes: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, updated.Notes, "empty notes clear the field")
}

func TestUpdateTicketStatusChanges(t *testing.T) {
	cases := []struct {
		name        string
		status      domain.TicketStatus
		responsible bool
		input       func(f *fixture) service.TicketUpdateInput
		wantCode    string
		wantStatus  domain.TicketStatus
	}{
		{
			name:   "open to in progress without responsible",
			status: domain.TicketStatusOpen,
			input: func(*fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusInProgress)}
			},
			wantCode: apperrors.CodeInvalidTransition,
		},
		{
			name:   "open to in progress assigning in the same update",
			status: domain.TicketStatusOpen,
			input: func(f *fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{
					Status:        statusPtr(domain.TicketStatusInProgress),
					ResponsibleID: service.NullableID{Set: true, Value: strPtr(f.agent2.ID)},
				}
			},
			wantStatus: domain.TicketStatusInProgress,
		},
		{
			name:   "open to closed",
			status: domain.TicketStatusOpen,
			input: func(*fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusClosed)}
			},
			wantCode: apperrors.CodeInvalidTransition,
		},
		{
			name:        "in progress to open keeping responsible",
			status:      domain.TicketStatusInProgress,
			responsible: true,
			input: func(*fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusOpen)}
			},
			wantCode: apperrors.CodeInvalidTransition,
		},
		{
			name:        "in progress to open clearing responsible",
			status:      domain.TicketStatusInProgress,
			responsible: true,
			input: func(*fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{
					Status:        statusPtr(domain.TicketStatusOpen),
					ResponsibleID: service.NullableID{Set: true},
				}
			},
			wantStatus: domain.TicketStatusOpen,
		},
		{
			name:        "in progress to closed",
			status:      domain.TicketStatusInProgress,
			responsible: true,
			input: func(*fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusClosed)}
			},
			wantStatus: domain.TicketStatusClosed,
		},
		{
			name:        "same status is a no-op",
			status:      domain.TicketStatusInProgress,
			responsible: true,
			input: func(*fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusInProgress)}
			},
			wantStatus: domain.TicketStatusInProgress,
		},
		{
			name:   "assigning without moving to in progress",
			status: domain.TicketStatusOpen,
			input: func(f *fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{ResponsibleID: service.NullableID{Set: true, Value: strPtr(f.agent.ID)}}
			},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:        "external responsible",
			status:      domain.TicketStatusInProgress,
			responsible: true,
			input: func(f *fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{ResponsibleID: service.NullableID{Set: true, Value: strPtr(f.requester.ID)}}
			},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:        "reassigning to another agent",
			status:      domain.TicketStatusInProgress,
			responsible: true,
			input: func(f *fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{ResponsibleID: service.NullableID{Set: true, Value: strPtr(f.agent2.ID)}}
			},
			wantStatus: domain.TicketStatusInProgress,
		},
		{
			name:   "unknown status",
			status: domain.TicketStatusOpen,
			input: func(*fixture) service.TicketUpdateInput {
				return service.TicketUpdateInput{Status: statusPtr("PAUSED")}
			},
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			var responsible *domain.User
			if tc.responsible {
				responsible = f.agent
			}
			ticket := f.seed(f.requester, tc.status, responsible)
			before := f.stored(t, ticket.ID)

			updated, err := f.tickets.UpdateTicket(context.Background(), f.agent, ticket.ID, tc.input(f))
			if tc.wantCode != "" {
				requireCode(t, err, tc.wantCode)
				assert.Equal(t, before, f.stored(t, ticket.ID), "failed updates leave the ticket unchanged")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, updated.Status)
			stored := f.stored(t, ticket.ID)
			assert.Equal(t, tc.wantStatus, stored.Status)
			requireAssignmentInvariant(t, stored)
		})
	}
}

func TestInvalidTransitionReportsAllowedStatuses(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusOpen, nil)

	_, err := f.tickets.UpdateTicket(context.Background(), f.agent, ticket.ID, service.TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusClosed),
	})
	domainErr := requireCode(t, err, apperrors.CodeInvalidTransition)
	assert.Equal(t, "OPEN", domainErr.Details["from"])
	assert.Equal(t, "CLOSED", domainErr.Details["to"])
	assert.Equal(t, []string{"IN_PROGRESS"}, domainErr.Details["allowed_transitions"])
}

func TestClosedTicketsRejectEveryUpdateAndDelete(t *testing.T) {
	inputs := map[string]func(f *fixture) service.TicketUpdateInput{
		"empty": func(*fixture) service.TicketUpdateInput { return service.TicketUpdateInput{} },
		"priority": func(*fixture) service.TicketUpdateInput {
			return service.TicketUpdateInput{Priority: priorityPtr(domain.TicketPriorityLow)}
		},
		"notes": func(*fixture) service.TicketUpdateInput {
			return service.TicketUpdateInput{Notes: strPtr("reopen please")}
		},
		"same status": func(*fixture) service.TicketUpdateInput {
			return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusClosed)}
		},
		"reopen": func(*fixture) service.TicketUpdateInput {
			return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusOpen)}
		},
		"in progress": func(*fixture) service.TicketUpdateInput {
			return service.TicketUpdateInput{Status: statusPtr(domain.TicketStatusInProgress)}
		},
		"unassign": func(*fixture) service.TicketUpdateInput {
			return service.TicketUpdateInput{ResponsibleID: service.NullableID{Set: true}}
		},
		"reassign": func(f *fixture) service.TicketUpdateInput {
			return service.TicketUpdateInput{ResponsibleID: service.NullableID{Set: true, Value: strPtr(f.agent2.ID)}}
		},
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ticket := f.seed(f.requester, domain.TicketStatusClosed, f.agent)
			before := f.stored(t, ticket.ID)

			_, err := f.tickets.UpdateTicket(context.Background(), f.agent, ticket.ID, input(f))
			requireCode(t, err, apperrors.CodeTicketClosed)
			assert.Equal(t, before, f.stored(t, ticket.ID))
		})
	}

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.seed(f.requester, domain.TicketStatusClosed, f.agent)
		err := f.tickets.DeleteTicket(context.Background(), f.agent, ticket.ID)
		requireCode(t, err, apperrors.CodeTicketClosed)
		assert.Nil(t, f.stored(t, ticket.ID).DeletedAt)
	})
}

func TestUpdateTicketRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusInProgress, f.agent)
	before := f.stored(t, ticket.ID)
	f.store.FailOn(memstore.OpTicketUpdate, errors.New("disk full"))

	_, err := f.tickets.UpdateTicket(context.Background(), f.agent, ticket.ID, service.TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusClosed),
	})
	requireCode(t, err, apperrors.CodeInternal)
	assert.Equal(t, before, f.stored(t, ticket.ID))
	assert.Empty(t, f.rec.types(), "no events for rolled back mutations")
}

func TestAssignToMe(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusOpen, nil)

	updated, err := f.tickets.AssignToMe(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	require.NotNil(t, updated.ResponsibleID)
	assert.Equal(t, f.agent.ID, *updated.ResponsibleID)
	require.NotNil(t, updated.Responsible)
	assert.Equal(t, f.agent.Email, updated.Responsible.Email)
	requireAssignmentInvariant(t, f.stored(t, ticket.ID))
	assert.ElementsMatch(t, []events.EventType{events.EventTicketStatusChanged, events.EventTicketAssigned}, f.rec.types())

	_, err = f.tickets.AssignToMe(context.Background(), f.agent2, ticket.ID)
	domainErr := requireCode(t, err, apperrors.CodeInvalidTransition)
	assert.Equal(t, []string{"CLOSED", "OPEN"}, domainErr.Details["allowed_transitions"])
	assert.Equal(t, f.agent.ID, *f.stored(t, ticket.ID).ResponsibleID)
}

func TestLifecycleActionsDenyExternalUsers(t *testing.T) {
	f := newFixture(t)
	open := f.seed(f.requester, domain.TicketStatusOpen, nil)
	active := f.seed(f.requester, domain.TicketStatusInProgress, f.agent)
	ctx := context.Background()

	_, err := f.tickets.AssignToMe(ctx, f.requester, open.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.ReturnToQueue(ctx, f.requester, active.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.Close(ctx, f.requester, active.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	err = f.tickets.DeleteTicket(ctx, f.requester, open.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	assert.Equal(t, domain.TicketStatusOpen, f.stored(t, open.ID).Status)
	assert.Nil(t, f.stored(t, open.ID).DeletedAt)
	assert.Equal(t, domain.TicketStatusInProgress, f.stored(t, active.ID).Status)
	assert.Empty(t, f.rec.types())
}

func TestCloseOpenTicketFails(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusOpen, nil)
	before := f.stored(t, ticket.ID)

	_, err := f.tickets.Close(context.Background(), f.agent, ticket.ID)
	domainErr := requireCode(t, err, apperrors.CodeInvalidTransition)
	assert.Equal(t, []string{"IN_PROGRESS"}, domainErr.Details["allowed_transitions"])
	assert.Equal(t, before, f.stored(t, ticket.ID))
}

func TestCloseKeepsResponsible(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusInProgress, f.agent)

	closed, err := f.tickets.Close(context.Background(), f.agent2, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ResponsibleID)
	assert.Equal(t, f.agent.ID, *closed.ResponsibleID)

	_, err = f.tickets.Close(context.Background(), f.agent, ticket.ID)
	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestReturnToQueue(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusInProgress, f.agent)

	returned, err := f.tickets.ReturnToQueue(context.Background(), f.agent, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, returned.Status)
	assert.Nil(t, returned.ResponsibleID)
	requireAssignmentInvariant(t, f.stored(t, ticket.ID))

	_, err = f.tickets.ReturnToQueue(context.Background(), f.agent, ticket.ID)
	requireCode(t, err, apperrors.CodeInvalidTransition)

	_, err = f.tickets.ReturnToQueue(context.Background(), f.agent, "missing")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestDeleteTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.seed(f.requester, domain.TicketStatusInProgress, f.agent)

	require.NoError(t, f.tickets.DeleteTicket(context.Background(), f.agent, ticket.ID))
	assert.NotNil(t, f.stored(t, ticket.ID).DeletedAt, "tickets are soft-deleted")
	assert.Equal(t, []events.EventType{events.EventTicketDeleted}, f.rec.types())

	err := f.tickets.DeleteTicket(context.Background(), f.agent, ticket.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	page, err := f.tickets.ListTickets(context.Background(), f.agent, service.TicketListFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestAssignmentInvariantAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.tickets.CreateTicket(ctx, f.requester, service.TicketCreateInput{FormID: f.form.ID})
	require.NoError(t, err)
	id := created.ID

	steps := []func() error{
		func() error { _, err := f.tickets.AssignToMe(ctx, f.agent, id); return err },
		func() error { _, err := f.tickets.ReturnToQueue(ctx, f.agent, id); return err },
		func() error {
			_, err := f.tickets.UpdateTicket(ctx, f.agent, id, service.TicketUpdateInput{
				Status:        statusPtr(domain.TicketStatusInProgress),
				ResponsibleID: service.NullableID{Set: true, Value: strPtr(f.agent2.ID)},
			})
			return err
		},
		func() error {
			_, err := f.tickets.UpdateTicket(ctx, f.agent, id, service.TicketUpdateInput{ResponsibleID: service.NullableID{Set: true}})
			return err
		},
		func() error { _, err := f.tickets.AssignToMe(ctx, f.agent2, id); return err },
		func() error { _, err := f.tickets.Close(ctx, f.agent2, id); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		requireAssignmentInvariant(t, f.stored(t, id))
	}
	assert.Equal(t, domain.TicketStatusClosed, f.stored(t, id).Status)
}
