package domain

import "time"

// StaffRole enumerates dashboard roles.
type StaffRole string

const (
	StaffRoleAdmin StaffRole = "admin"
	StaffRoleUser  StaffRole = "user"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	return r == StaffRoleAdmin || r == StaffRoleUser
}

// StaffMember models a support agent with dashboard access.
type StaffMember struct {
	ID                 int64
	Email              string
	Name               string
	PasswordHash       string
	Active             bool
	Role               StaffRole
	MustChangePassword bool
	CreatedAt          time.Time
	LastLoginAt        *time.Time
}

// Actor converts the staff member into an audit actor.
func (s *StaffMember) Actor(ip *string) Actor {
	return Actor{Email: s.Email, Name: s.Name, IP: ip}
}
