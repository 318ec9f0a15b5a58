package dto

import (
	"time"

	"github.com/spec-kit/account-requests/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expires_at"`
	MustChangePassword bool      `json:"must_change_password"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// StaffCreateRequest payload for admin account creation.
type StaffCreateRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// StaffRoleRequest payload.
type StaffRoleRequest struct {
	Role domain.StaffRole `json:"role"`
}

// StaffResponse is the public view of a staff account.
type StaffResponse struct {
	ID                 int64            `json:"id"`
	Email              string           `json:"email"`
	Name               string           `json:"name"`
	Role               domain.StaffRole `json:"role"`
	Active             bool             `json:"is_active"`
	MustChangePassword bool             `json:"must_change_password"`
	CreatedAt          time.Time        `json:"created_at"`
	LastLoginAt        *time.Time       `json:"last_login_at"`
}

// NewStaffResponse maps a staff member; the password hash never leaves.
func NewStaffResponse(staff *domain.StaffMember) StaffResponse {
	return StaffResponse{
		ID:                 staff.ID,
		Email:              staff.Email,
		Name:               staff.Name,
		Role:               staff.Role,
		Active:             staff.Active,
		MustChangePassword: staff.MustChangePassword,
		CreatedAt:          staff.CreatedAt,
		LastLoginAt:        staff.LastLoginAt,
	}
}
