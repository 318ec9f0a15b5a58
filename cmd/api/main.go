package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/account-requests/internal/api/http"
	"github.com/spec-kit/account-requests/internal/api/http/handlers"
	"github.com/spec-kit/account-requests/internal/auth"
	"github.com/spec-kit/account-requests/internal/bootstrap"
	"github.com/spec-kit/account-requests/internal/config"
	"github.com/spec-kit/account-requests/internal/observability"
	"github.com/spec-kit/account-requests/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise", zap.Error(err))
	}
	defer container.Close()

	if err := container.SeedAdmin(ctx); err != nil {
		logger.Fatal("failed to seed admin", zap.Error(err))
	}
	worker.StartNotificationWorker(container.Notification, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, container.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, handlers.StoreChecks(container.Postgres, container.Redis)...),
		Webhook:        handlers.NewWebhookHandler(container.Intake, cfg.Intake.WebhookAPIKey),
		Requests:       handlers.NewRequestsHandler(container.Requests, container.Intake),
		Audit:          handlers.NewAuditHandler(container.Recorder),
		Staff:          handlers.NewStaffHandler(container.Auth, container.Staff),
		AuthMiddleware: auth.NewAuthMiddleware(container.Tokens, container.Repos.Staff),
	})

	if cfg.Intake.WebhookAPIKey == "" {
		logger.Warn("WEBHOOK_API_KEY not set; webhook accepts unauthenticated posts")
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
