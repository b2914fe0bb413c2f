package dto_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk/internal/api/dto"
	"github.com/deskline/helpdesk/internal/domain"
)

func TestUpdateTicketRequestResponsibleID(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantSet bool
		wantVal *string
	}{
		{name: "absent", body: `{"priority":"HIGH"}`},
		{name: "null", body: `{"responsible_id":null}`, wantSet: true},
		{name: "value", body: `{"responsible_id":"u-1"}`, wantSet: true, wantVal: strPtr("u-1")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req dto.UpdateTicketRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.wantSet, req.ResponsibleID.Set)
			assert.Equal(t, tc.wantVal, req.ResponsibleID.Value)
		})
	}

	var req dto.UpdateTicketRequest
	assert.Error(t, json.Unmarshal([]byte(`{"responsible_id":42}`), &req))
}

func TestNewTicketResponseSerializesNullRelations(t *testing.T) {
	resp := dto.NewTicketResponse(&domain.Ticket{
		ID:       "t-1",
		Status:   domain.TicketStatusOpen,
		Priority: domain.TicketPriorityLow,
		Creator:  &domain.UserSummary{ID: "u-1", Email: "rui@example.com", Role: domain.RoleExternal},
	})
	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Nil(t, decoded["responsible_id"])
	assert.Contains(t, decoded, "responsible_id")
	assert.Nil(t, decoded["responsible"])
	assert.Equal(t, "rui@example.com", decoded["creator"].(map[string]any)["email"])
}

func strPtr(s string) *string { return &s }
