package domain

import "time"

// UserRole drives every authorization decision in the helpdesk.
type UserRole string

const (
	RoleInternal UserRole = "internal"
	RoleExternal UserRole = "external"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	return r == RoleInternal || r == RoleExternal
}

// User is either helpdesk staff (internal) or a requester (external).
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsInternal reports whether the user belongs to helpdesk staff.
func (u *User) IsInternal() bool {
	return u != nil && u.Role == RoleInternal
}

// Summary returns the public projection of the user.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Email: u.Email, Role: u.Role}
}

// UserSummary is the projection embedded in tickets and messages.
type UserSummary struct {
	ID    string
	Email string
	Role  UserRole
}
