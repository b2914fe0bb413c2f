package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/deskline/helpdesk/internal/domain"
)

// NullableString tells an omitted field apart from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON only runs when the key is present in the payload.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	FormID     string                `json:"form_id"`
	ResponseID *string               `json:"response_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Notes      *string               `json:"notes"`
}

// UpdateTicketRequest payload. Absent fields are left untouched; a null
// responsible_id unassigns the ticket.
type UpdateTicketRequest struct {
	Status        *domain.TicketStatus   `json:"status"`
	Priority      *domain.TicketPriority `json:"priority"`
	Notes         *string                `json:"notes"`
	ResponsibleID NullableString         `json:"responsible_id"`
}

// TicketResponse is the ticket projection returned by every ticket endpoint.
type TicketResponse struct {
	ID            string                `json:"id"`
	FormID        string                `json:"form_id"`
	ResponseID    *string               `json:"response_id"`
	CreatorID     string                `json:"creator_id"`
	ResponsibleID *string               `json:"responsible_id"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
	Notes         *string               `json:"notes"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Form          *FormSummary          `json:"form"`
	Creator       *UserSummary          `json:"creator"`
	Responsible   *UserSummary          `json:"responsible"`
	Response      *FormResponseBody     `json:"response"`
}

// FormSummary is the embedded form projection.
type FormSummary struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Beneficiary string `json:"beneficiary"`
	Description string `json:"description"`
}

// FormResponseBody is the embedded form response.
type FormResponseBody struct {
	ID      string         `json:"id"`
	FormID  string         `json:"form_id"`
	Content map[string]any `json:"content"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:            t.ID,
		FormID:        t.FormID,
		ResponseID:    t.ResponseID,
		CreatorID:     t.CreatorID,
		ResponsibleID: t.ResponsibleID,
		Status:        t.Status,
		Priority:      t.Priority,
		Notes:         t.Notes,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Creator:       newUserSummary(t.Creator),
		Responsible:   newUserSummary(t.Responsible),
	}
	if t.Form != nil {
		resp.Form = &FormSummary{
			ID:          t.Form.ID,
			Subject:     t.Form.Subject,
			Beneficiary: t.Form.Beneficiary,
			Description: t.Form.Description,
		}
	}
	if t.Response != nil {
		resp.Response = &FormResponseBody{ID: t.Response.ID, FormID: t.Response.FormID, Content: t.Response.Content}
	}
	return resp
}

// NewTicketResponses maps a page of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}
