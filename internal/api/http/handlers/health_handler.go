package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-requests/internal/persistence"
)

const readinessTimeout = 2 * time.Second

// DependencyCheck pings one backing service. A nil Ping marks the
// dependency as not in use and reports Idle instead.
type DependencyCheck struct {
	Name string
	Idle string
	Ping func(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness checks.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []DependencyCheck
}

// NewHealthHandler returns a handler that checks the given dependencies.
func NewHealthHandler(serviceName, version string, checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, checks: checks}
}

// StoreChecks describes the request store and the limiter backend. Without a
// pool the service runs on the in-memory store.
func StoreChecks(pg *persistence.Postgres, rdb *persistence.Redis) []DependencyCheck {
	postgres := DependencyCheck{Name: "postgres", Idle: "memory"}
	if pg.PoolHandle() != nil {
		postgres.Ping = pg.Ping
	}
	redis := DependencyCheck{Name: "redis", Idle: "disabled"}
	if rdb.Configured() {
		redis.Ping = rdb.Ping
	}
	return []DependencyCheck{postgres, redis}
}

// Live reports service liveness. It also serves /healthz.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready runs every dependency check and fails with 503 if any ping errors.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	deps := fiber.Map{}
	ready := true
	for _, check := range h.checks {
		switch {
		case check.Ping == nil:
			deps[check.Name] = check.Idle
		default:
			if err := check.Ping(ctx); err != nil {
				deps[check.Name] = err.Error()
				ready = false
				continue
			}
			deps[check.Name] = "ok"
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": deps,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ready",
		"service":      h.serviceName,
		"dependencies": deps,
	})
}
