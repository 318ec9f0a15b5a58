package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/audit"
	"github.com/spec-kit/account-requests/internal/auth"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/repository"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

// StaffDirectory answers identity questions about staff addresses.
type StaffDirectory interface {
	IsActiveStaff(ctx context.Context, email string) bool
	DisplayName(ctx context.Context, email string) (string, bool)
	Role(ctx context.Context, email string) (domain.StaffRole, bool)
}

// StaffService manages staff accounts and serves as the staff directory.
type StaffService struct {
	staff           repository.StaffRepository
	audit           *audit.Recorder
	logger          *zap.Logger
	bcryptCost      int
	defaultPassword string
}

// StaffDependencies bundles collaborators for the staff service.
type StaffDependencies struct {
	StaffRepo       repository.StaffRepository
	Audit           *audit.Recorder
	Logger          *zap.Logger
	BcryptCost      int
	DefaultPassword string
}

// SeedMember describes an account created on first start.
type SeedMember struct {
	Email string
	Name  string
	Role  domain.StaffRole
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		staff:           deps.StaffRepo,
		audit:           deps.Audit,
		logger:          logger,
		bcryptCost:      deps.BcryptCost,
		defaultPassword: deps.DefaultPassword,
	}
}

func (s *StaffService) lookup(ctx context.Context, email string) *domain.StaffMember {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	member, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("staff lookup failed", zap.String("email", email), zap.Error(err))
		}
		return nil
	}
	return member
}

// IsActiveStaff reports whether email belongs to an active staff account.
func (s *StaffService) IsActiveStaff(ctx context.Context, email string) bool {
	member := s.lookup(ctx, email)
	return member != nil && member.Active
}

// DisplayName returns the stored name of any staff account with this email,
// deactivated accounts included.
func (s *StaffService) DisplayName(ctx context.Context, email string) (string, bool) {
	member := s.lookup(ctx, email)
	if member == nil || member.Name == "" {
		return "", false
	}
	return member.Name, true
}

// Role returns the role of the staff account with this email.
func (s *StaffService) Role(ctx context.Context, email string) (domain.StaffRole, bool) {
	member := s.lookup(ctx, email)
	if member == nil {
		return "", false
	}
	return member.Role, true
}

// List returns every staff account ordered by name.
func (s *StaffService) List(ctx context.Context) ([]domain.StaffMember, error) {
	members, err := s.staff.List(ctx, repository.StaffFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return members, nil
}

// ListActive returns active accounts, used for assignee pickers.
func (s *StaffService) ListActive(ctx context.Context) ([]domain.StaffMember, error) {
	active := true
	members, err := s.staff.List(ctx, repository.StaffFilter{Active: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return members, nil
}

// Create adds a standard account with the default password.
func (s *StaffService) Create(ctx context.Context, actor domain.Actor, email, name string) (*domain.StaffMember, error) {
	email = domain.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return nil, apperrors.NewValidationError("email and name are required", nil)
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": email})
	}

	member, err := s.newMember(email, name, domain.StaffRoleUser)
	if err != nil {
		return nil, err
	}
	if err := s.staff.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("a user with this email already exists", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionUserCreate,
		TargetType: domain.TargetUser,
		TargetID:   email,
		Details:    map[string]any{"name": name},
	})
	return member, nil
}

// ToggleActive flips the active flag of another account.
func (s *StaffService) ToggleActive(ctx context.Context, actor domain.Actor, email string) (*domain.StaffMember, error) {
	email = domain.NormalizeEmail(email)
	if email == domain.NormalizeEmail(actor.Email) {
		return nil, apperrors.NewValidationError("you cannot deactivate yourself", nil)
	}
	member, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "staff user", map[string]any{"email": email})
	}
	member.Active = !member.Active
	if ok, err := s.staff.SetActive(ctx, email, member.Active); err != nil {
		return nil, apperrors.MapError(err)
	} else if !ok {
		return nil, apperrors.NewNotFound("staff user", map[string]any{"email": email})
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionUserToggle,
		TargetType: domain.TargetUser,
		TargetID:   email,
		Details:    map[string]any{"is_active": member.Active},
	})
	return member, nil
}

// SetRole changes the role of another account.
func (s *StaffService) SetRole(ctx context.Context, actor domain.Actor, email string, role domain.StaffRole) (*domain.StaffMember, error) {
	email = domain.NormalizeEmail(email)
	if email == domain.NormalizeEmail(actor.Email) {
		return nil, apperrors.NewValidationError("you cannot change your own role", nil)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	ok, err := s.staff.SetRole(ctx, email, role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, apperrors.NewNotFound("staff user", map[string]any{"email": email})
	}
	member, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "staff user", map[string]any{"email": email})
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionUserRoleChange,
		TargetType: domain.TargetUser,
		TargetID:   email,
		Details:    map[string]any{"new_role": role},
	})
	return member, nil
}

// Seed creates the given accounts when no staff exist yet. It returns the
// number of accounts created.
func (s *StaffService) Seed(ctx context.Context, members []SeedMember) (int, error) {
	count, err := s.staff.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	created := 0
	for _, m := range members {
		if strings.TrimSpace(m.Email) == "" {
			continue
		}
		role := m.Role
		if !role.Valid() {
			role = domain.StaffRoleUser
		}
		member, err := s.newMember(domain.NormalizeEmail(m.Email), strings.TrimSpace(m.Name), role)
		if err != nil {
			return created, err
		}
		if err := s.staff.Create(ctx, member); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return created, err
		}
		created++
		s.logger.Info("seeded staff account", zap.String("email", member.Email), zap.String("role", string(role)))
	}
	return created, nil
}

func (s *StaffService) newMember(email, name string, role domain.StaffRole) (*domain.StaffMember, error) {
	hash, err := auth.HashPassword(s.defaultPassword, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.StaffMember{
		Email:              email,
		Name:               name,
		PasswordHash:       hash,
		Active:             true,
		Role:               role,
		MustChangePassword: true,
	}, nil
}
