package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/account-requests/internal/api/http/handlers"
	"github.com/spec-kit/account-requests/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Webhook        *handlers.WebhookHandler
	Requests       *handlers.RequestsHandler
	Audit          *handlers.AuditHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/healthz", cfg.Health.Live)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/api/webhook/new-request", cfg.Webhook.NewRequest)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Staff.Login)

	staffOnly := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	staffOnly.Post("/logout", cfg.Staff.Logout)
	staffOnly.Post("/password/change", cfg.Staff.ChangePassword)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	api.Get("/requests", cfg.Requests.List)
	api.Get("/requests/counts", cfg.Requests.Counts)
	api.Post("/requests/import", cfg.Requests.Import)
	api.Get("/requests/:key", cfg.Requests.Get)
	api.Post("/requests/:key/status", cfg.Requests.UpdateStatus)
	api.Post("/requests/:key/assign", cfg.Requests.Assign)
	api.Post("/requests/:key/comments", cfg.Requests.AddComment)
	api.Post("/requests/:key/send-email", cfg.Requests.SendEmail)
	api.Get("/audit", cfg.Audit.List)

	admin := api.Group("/staff", auth.RequireAdmin())
	admin.Get("", cfg.Staff.ListStaff)
	admin.Post("", cfg.Staff.CreateStaff)
	admin.Post("/:email/toggle", cfg.Staff.ToggleStaff)
	admin.Post("/:email/role", cfg.Staff.SetStaffRole)
}
