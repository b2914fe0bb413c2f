package domain

import "time"

// Form is the intake form a ticket is opened against.
type Form struct {
	ID          string
	Subject     string
	Beneficiary string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Summary returns the projection embedded in tickets.
func (f *Form) Summary() *FormSummary {
	if f == nil {
		return nil
	}
	return &FormSummary{ID: f.ID, Subject: f.Subject, Beneficiary: f.Beneficiary, Description: f.Description}
}

// FormSummary is the form projection attached to a ticket.
type FormSummary struct {
	ID          string
	Subject     string
	Beneficiary string
	Description string
}

// FormResponse is a submitted answer set for a Form.
type FormResponse struct {
	ID        string
	FormID    string
	Content   map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
