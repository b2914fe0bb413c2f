// Package memstore is an in-memory repository.Store used by tests. It keeps
// the soft-delete, ordering and transaction semantics of the Postgres store:
// a failed WithinTx restores the snapshot taken when it began.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/repository"
)

// Operations that can be made to fail with FailOn.
const (
	OpTicketCreate  = "tickets.create"
	OpTicketUpdate  = "tickets.update"
	OpTicketDelete  = "tickets.delete"
	OpMessageCreate = "messages.create"
)

type data struct {
	users     map[string]domain.User
	forms     map[string]domain.Form
	responses map[string]domain.FormResponse
	tickets   map[string]domain.Ticket
	messages  map[string]domain.Message
}

type state struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data data

	clock  time.Time
	faults map[string]error
}

// Store implements repository.Store in memory.
type Store struct {
	st   *state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store whose clock starts at a fixed instant.
func New() *Store {
	return &Store{st: &state{
		data: data{
			users:     map[string]domain.User{},
			forms:     map[string]domain.Form{},
			responses: map[string]domain.FormResponse{},
			tickets:   map[string]domain.Ticket{},
			messages:  map[string]domain.Message{},
		},
		clock:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		faults: map[string]error{},
	}}
}

func (s *Store) Users() repository.UserRepository                 { return userRepo{s.st} }
func (s *Store) Forms() repository.FormRepository                 { return formRepo{s.st} }
func (s *Store) FormResponses() repository.FormResponseRepository { return responseRepo{s.st} }
func (s *Store) Tickets() repository.TicketRepository             { return ticketRepo{s.st} }
func (s *Store) Messages() repository.MessageRepository           { return messageRepo{s.st} }

// WithinTx serializes transactions and rolls back on error.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.Lock()
	snapshot := s.st.data.clone()
	s.st.mu.Unlock()

	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.mu.Lock()
		s.st.data = snapshot
		s.st.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes every later call of op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err == nil {
		delete(s.st.faults, op)
		return
	}
	s.st.faults[op] = err
}

// AddUser seeds a user and returns it with its generated id.
func (s *Store) AddUser(user domain.User) *domain.User {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt, user.UpdatedAt = s.st.tick(), s.st.clock
	s.st.data.users[user.ID] = user
	return &user
}

// AddForm seeds a form.
func (s *Store) AddForm(form domain.Form) *domain.Form {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if form.ID == "" {
		form.ID = uuid.NewString()
	}
	form.CreatedAt, form.UpdatedAt = s.st.tick(), s.st.clock
	s.st.data.forms[form.ID] = form
	return &form
}

// AddFormResponse seeds a form response.
func (s *Store) AddFormResponse(resp domain.FormResponse) *domain.FormResponse {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	resp.CreatedAt, resp.UpdatedAt = s.st.tick(), s.st.clock
	s.st.data.responses[resp.ID] = resp
	return &resp
}

// AddTicket seeds a ticket in any state, bypassing lifecycle rules.
func (s *Store) AddTicket(ticket domain.Ticket) *domain.Ticket {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	ticket.CreatedAt, ticket.UpdatedAt = s.st.tick(), s.st.clock
	stored := cloneTicket(ticket)
	s.st.data.tickets[ticket.ID] = stored
	out := cloneTicket(stored)
	return &out
}

// AddMessage seeds a message.
func (s *Store) AddMessage(msg domain.Message) *domain.Message {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt, msg.UpdatedAt = s.st.tick(), s.st.clock
	msg.Sender = nil
	s.st.data.messages[msg.ID] = msg
	return &msg
}

// RawTicket returns the stored ticket including soft-deleted rows.
func (s *Store) RawTicket(id string) (domain.Ticket, bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	t, ok := s.st.data.tickets[id]
	return cloneTicket(t), ok
}

// TicketCount returns the number of stored tickets including soft-deleted rows.
func (s *Store) TicketCount() int {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return len(s.st.data.tickets)
}

func (st *state) tick() time.Time {
	st.clock = st.clock.Add(time.Second)
	return st.clock
}

func (st *state) fault(op string) error {
	return st.faults[op]
}

func (d data) clone() data {
	out := data{
		users:     make(map[string]domain.User, len(d.users)),
		forms:     make(map[string]domain.Form, len(d.forms)),
		responses: make(map[string]domain.FormResponse, len(d.responses)),
		tickets:   make(map[string]domain.Ticket, len(d.tickets)),
		messages:  make(map[string]domain.Message, len(d.messages)),
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.forms {
		out.forms[k] = v
	}
	for k, v := range d.responses {
		out.responses[k] = v
	}
	for k, v := range d.tickets {
		out.tickets[k] = cloneTicket(v)
	}
	for k, v := range d.messages {
		out.messages[k] = v
	}
	return out
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.ResponseID = cloneString(t.ResponseID)
	t.ResponsibleID = cloneString(t.ResponsibleID)
	t.Notes = cloneString(t.Notes)
	if t.DeletedAt != nil {
		at := *t.DeletedAt
		t.DeletedAt = &at
	}
	t.Form, t.Creator, t.Responsible, t.Response = nil, nil, nil, nil
	return t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type userRepo struct{ st *state }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, existing := range r.st.data.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return &duplicateKeyError{constraint: "users_email_key"}
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.st.tick()
	user.UpdatedAt = user.CreatedAt
	r.st.data.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	user, ok := r.st.data.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, user := range r.st.data.users {
		if user.DeletedAt == nil && strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type formRepo struct{ st *state }

func (r formRepo) GetByID(_ context.Context, id string) (*domain.Form, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	form, ok := r.st.data.forms[id]
	if !ok || form.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	return &form, nil
}

type responseRepo struct{ st *state }

func (r responseRepo) GetByID(_ context.Context, id string) (*domain.FormResponse, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	resp, ok := r.st.data.responses[id]
	if !ok || resp.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	return &resp, nil
}

type ticketRepo struct{ st *state }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.fault(OpTicketCreate); err != nil {
		return err
	}
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = r.st.tick()
	ticket.UpdatedAt = ticket.CreatedAt
	r.st.data.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.fault(OpTicketUpdate); err != nil {
		return err
	}
	stored, ok := r.st.data.tickets[ticket.ID]
	if !ok || stored.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	stored.ResponsibleID = cloneString(ticket.ResponsibleID)
	stored.Status = ticket.Status
	stored.Priority = ticket.Priority
	stored.Notes = cloneString(ticket.Notes)
	stored.UpdatedAt = r.st.tick()
	ticket.UpdatedAt = stored.UpdatedAt
	r.st.data.tickets[ticket.ID] = stored
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	ticket, ok := r.st.data.tickets[id]
	if !ok || ticket.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	out := cloneTicket(ticket)
	return &out, nil
}

func (r ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) SoftDelete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.fault(OpTicketDelete); err != nil {
		return err
	}
	ticket, ok := r.st.data.tickets[id]
	if !ok || ticket.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	now := r.st.tick()
	ticket.DeletedAt = &now
	ticket.UpdatedAt = now
	r.st.data.tickets[id] = ticket
	return nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	matched := r.match(filter)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r ticketRepo) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return len(r.match(filter)), nil
}

func (r ticketRepo) match(filter repository.TicketFilter) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range r.st.data.tickets {
		if t.DeletedAt != nil {
			continue
		}
		if filter.CreatorID != nil && t.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.FormID != nil && t.FormID != *filter.FormID {
			continue
		}
		if filter.ResponsibleID != nil && (t.ResponsibleID == nil || *t.ResponsibleID != *filter.ResponsibleID) {
			continue
		}
		out = append(out, cloneTicket(t))
	}
	return out
}

type messageRepo struct{ st *state }

func (r messageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.fault(OpMessageCreate); err != nil {
		return err
	}
	if _, ok := r.st.data.tickets[msg.TicketID]; !ok {
		return &foreignKeyError{constraint: "messages_ticket_id_fkey"}
	}
	if _, ok := r.st.data.users[msg.SenderID]; !ok {
		return &foreignKeyError{constraint: "messages_sender_id_fkey"}
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = r.st.tick()
	msg.UpdatedAt = msg.CreatedAt
	stored := *msg
	stored.Sender = nil
	r.st.data.messages[msg.ID] = stored
	return nil
}

func (r messageRepo) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	msg, ok := r.st.data.messages[id]
	if !ok || msg.DeletedAt != nil || r.ticketGone(msg.TicketID) {
		return nil, pgx.ErrNoRows
	}
	msg.Sender = r.sender(msg.SenderID)
	return &msg, nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Message, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := []domain.Message{}
	for _, msg := range r.st.data.messages {
		if msg.TicketID != ticketID || msg.DeletedAt != nil {
			continue
		}
		if msg.IsInternal && !includeInternal {
			continue
		}
		msg.Sender = r.sender(msg.SenderID)
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ticketGone mirrors the cascade: messages of a soft-deleted ticket vanish with it.
func (r messageRepo) ticketGone(ticketID string) bool {
	t, ok := r.st.data.tickets[ticketID]
	return !ok || t.DeletedAt != nil
}

func (r messageRepo) sender(id string) *domain.UserSummary {
	user, ok := r.st.data.users[id]
	if !ok {
		return nil
	}
	return user.Summary()
}
