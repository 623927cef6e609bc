package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role only affects read-side visibility, never allocation
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// User is a member of exactly one team
type User struct {
	ID        uuid.UUID
	TeamID    uuid.UUID
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Validate ensures the user adheres to domain rules
func (u *User) Validate() error {
	if u.Name == "" {
		return errors.New("user name cannot be empty")
	}

	if u.TeamID == uuid.Nil {
		return errors.New("user must belong to a team")
	}

	if u.Role != RoleMember && u.Role != RoleAdmin {
		return errors.New("user role must be MEMBER or ADMIN")
	}

	return nil
}

// BelongsTo reports whether the user is a member of teamID
func (u *User) BelongsTo(teamID uuid.UUID) bool {
	return u.TeamID == teamID
}

// IsAdmin reports whether the user may use the cross-team read paths
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
