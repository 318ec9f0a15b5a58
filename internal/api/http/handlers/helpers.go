package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-requests/internal/auth"
	"github.com/spec-kit/account-requests/internal/domain"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

// currentActor resolves the authenticated staff member as an audit actor.
func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(c.IP()), nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	return domain.OptionalString(c.Query(key))
}

func invalidPayload() error {
	return apperrors.NewValidationError("invalid payload", nil)
}
