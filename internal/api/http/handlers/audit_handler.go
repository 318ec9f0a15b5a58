package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-requests/internal/api/dto"
	"github.com/spec-kit/account-requests/internal/audit"
	"github.com/spec-kit/account-requests/internal/repository"
)

// AuditHandler exposes the audit trail viewer.
type AuditHandler struct {
	recorder *audit.Recorder
}

// NewAuditHandler constructs handler.
func NewAuditHandler(recorder *audit.Recorder) *AuditHandler {
	return &AuditHandler{recorder: recorder}
}

// List GET /api/audit.
func (h *AuditHandler) List(c *fiber.Ctx) error {
	entries, err := h.recorder.List(c.UserContext(), repository.AuditFilter{
		ActorEmail:   optionalQuery(c, "agent"),
		TargetID:     optionalQuery(c, "target"),
		ActionPrefix: optionalQuery(c, "action_prefix"),
		Limit:        parseIntQuery(c, "limit", repository.DefaultAuditLimit),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditResponses(entries)})
}
