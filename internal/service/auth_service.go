package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/audit"
	"github.com/spec-kit/account-requests/internal/auth"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/repository"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

// AuthService coordinates staff login flows.
type AuthService struct {
	staff      repository.StaffRepository
	limiter    auth.LoginLimiter
	tokenMgr   *auth.TokenManager
	audit      *audit.Recorder
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	StaffRepo    repository.StaffRepository
	Limiter      auth.LoginLimiter
	TokenManager *auth.TokenManager
	Audit        *audit.Recorder
	Logger       *zap.Logger
	BcryptCost   int
	Now          func() time.Time
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token              string
	ExpiresAt          time.Time
	Staff              *domain.StaffMember
	MustChangePassword bool
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		staff:      deps.StaffRepo,
		limiter:    deps.Limiter,
		tokenMgr:   deps.TokenManager,
		audit:      deps.Audit,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
		now:        clockOrDefault(deps.Now),
	}
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid email or password")

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string, origin *string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)

	locked, err := s.limiter.Locked(ctx, email)
	if err != nil {
		s.logger.Warn("login limiter unavailable", zap.Error(err))
	}
	if locked {
		return nil, apperrors.NewTooManyRequests("too many failed attempts, try again later", nil)
	}

	member, err := s.staff.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}
	if member == nil {
		auth.DecoyCompare(password)
	}
	if member == nil || !member.Active || auth.ComparePassword(member.PasswordHash, password) != nil {
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.logger.Warn("record failed login", zap.Error(err))
		}
		actor := email
		if actor == "" {
			actor = domain.UnknownEmail
		}
		s.audit.Record(ctx, audit.Event{
			Actor:      domain.Actor{Email: actor, IP: origin},
			Action:     domain.ActionLoginFailed,
			TargetType: domain.TargetSystem,
			Details:    map[string]any{"attempted_email": email},
			Failed:     true,
		})
		return nil, errInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn("reset login attempts", zap.Error(err))
	}
	if err := s.staff.TouchLastLogin(ctx, email, s.now()); err != nil {
		s.logger.Warn("update last login", zap.Error(err))
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(member)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      member.Actor(origin),
		Action:     domain.ActionLoginSuccess,
		TargetType: domain.TargetSystem,
	})
	return &LoginResult{
		Token:              token,
		ExpiresAt:          expiresAt,
		Staff:              member,
		MustChangePassword: member.MustChangePassword,
	}, nil
}

// Logout records the end of a session. Tokens are stateless and simply
// expire.
func (s *AuthService) Logout(ctx context.Context, actor domain.Actor) {
	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionLogout,
		TargetType: domain.TargetSystem,
	})
}

// ChangePassword verifies current password before updating to new hash.
// A forced change after first login skips the current password check.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, currentPassword, newPassword string) error {
	member, err := s.staff.GetByEmail(ctx, actor.Email)
	if err != nil {
		return storeError(err, "staff user", nil)
	}
	forced := member.MustChangePassword
	if !forced {
		if err := auth.ComparePassword(member.PasswordHash, currentPassword); err != nil {
			return apperrors.NewValidationError("current password is incorrect", nil)
		}
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.NewValidationError("new password must be at least 8 characters", map[string]any{"min_length": auth.MinPasswordLength})
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	ok, err := s.staff.SetPassword(ctx, member.Email, hash)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !ok {
		return apperrors.NewNotFound("staff user", nil)
	}

	details := map[string]any{}
	if forced {
		details["forced"] = true
	}
	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionPasswordChange,
		TargetType: domain.TargetSystem,
		Details:    details,
	})
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
