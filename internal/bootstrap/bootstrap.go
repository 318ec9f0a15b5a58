// Package bootstrap wires storage, services and collaborators from config.
// The API server and the admin CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/audit"
	"github.com/spec-kit/account-requests/internal/auth"
	"github.com/spec-kit/account-requests/internal/config"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/events"
	"github.com/spec-kit/account-requests/internal/notify"
	"github.com/spec-kit/account-requests/internal/observability"
	"github.com/spec-kit/account-requests/internal/persistence"
	"github.com/spec-kit/account-requests/internal/repository"
	"github.com/spec-kit/account-requests/internal/repository/memory"
	"github.com/spec-kit/account-requests/internal/service"
)

// Repositories groups the storage backends in use.
type Repositories struct {
	Requests repository.RequestRepository
	Comments repository.CommentRepository
	Audit    repository.AuditRepository
	Staff    repository.StaffRepository
}

// Container holds every wired component.
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Postgres     *persistence.Postgres
	Redis        *persistence.Redis
	Repos        Repositories
	Metrics      *observability.Metrics
	Dispatcher   events.Dispatcher
	Recorder     *audit.Recorder
	Sender       notify.Sender
	Tokens       *auth.TokenManager
	Staff        *service.StaffService
	Auth         *service.AuthService
	Requests     *service.RequestService
	Intake       *service.IntakeService
	Notification *service.NotificationService
}

// New connects to storage and builds the services. Without a Postgres DSN
// the process runs on the in-memory store.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Dispatcher: events.NewInMemoryDispatcher(logger),
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg

	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Repos = Repositories{
			Requests: repository.NewRequestRepository(pool, cfg.Intake.KeyPrefix),
			Comments: repository.NewCommentRepository(pool),
			Audit:    repository.NewAuditRepository(pool),
			Staff:    repository.NewStaffRepository(pool),
		}
	} else {
		logger.Warn("using in-memory store; data is lost on exit")
		store := memory.NewStore(cfg.Intake.KeyPrefix)
		c.Repos = Repositories{
			Requests: store.Requests(),
			Comments: store.Comments(),
			Audit:    store.Audit(),
			Staff:    store.Staff(),
		}
	}

	c.Redis = persistence.NewRedis(cfg.Redis, logger)
	var limiter auth.LoginLimiter
	if c.Redis.Configured() {
		limiter = auth.NewRedisLimiter(c.Redis.Client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockout())
	} else {
		limiter = auth.NewMemoryLimiter(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockout())
	}

	if cfg.Notification.SMTPHost != "" {
		c.Sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Notification.SMTPHost,
			Port:     cfg.Notification.SMTPPort,
			User:     cfg.Notification.SMTPUser,
			Password: cfg.Notification.SMTPPassword,
			From:     cfg.Notification.EmailFrom,
		})
	} else {
		c.Sender = notify.NewLogSender(logger)
	}

	c.Recorder = audit.NewRecorder(c.Repos.Audit, logger, audit.WithMetrics(c.Metrics))
	c.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	c.Staff = service.NewStaffService(service.StaffDependencies{
		StaffRepo:       c.Repos.Staff,
		Audit:           c.Recorder,
		Logger:          logger,
		BcryptCost:      cfg.Auth.BcryptCost,
		DefaultPassword: cfg.Auth.DefaultPassword,
	})
	c.Auth = service.NewAuthService(service.AuthDependencies{
		StaffRepo:    c.Repos.Staff,
		Limiter:      limiter,
		TokenManager: c.Tokens,
		Audit:        c.Recorder,
		Logger:       logger,
		BcryptCost:   cfg.Auth.BcryptCost,
	})
	c.Requests = service.NewRequestService(service.RequestDependencies{
		RequestRepo: c.Repos.Requests,
		CommentRepo: c.Repos.Comments,
		Directory:   c.Staff,
		Sender:      c.Sender,
		Audit:       c.Recorder,
		Metrics:     c.Metrics,
		Logger:      logger,
		Dispatcher:  c.Dispatcher,
	})
	c.Intake = service.NewIntakeService(service.IntakeDependencies{
		RequestRepo: c.Repos.Requests,
		CommentRepo: c.Repos.Comments,
		Requests:    c.Requests,
		Directory:   c.Staff,
		Audit:       c.Recorder,
		Metrics:     c.Metrics,
		Logger:      logger,
		Dispatcher:  c.Dispatcher,
	})
	c.Notification = service.NewNotificationService(c.Dispatcher, c.Sender, logger, cfg.Notification)
	return c, nil
}

// SeedAdmin creates the configured admin account when no staff exist.
func (c *Container) SeedAdmin(ctx context.Context) error {
	if c.Config.Auth.SeedAdminEmail == "" {
		return nil
	}
	_, err := c.Staff.Seed(ctx, []service.SeedMember{{
		Email: c.Config.Auth.SeedAdminEmail,
		Name:  c.Config.Auth.SeedAdminName,
		Role:  domain.StaffRoleAdmin,
	}})
	return err
}

// Close releases storage connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
