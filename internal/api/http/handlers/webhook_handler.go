package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-requests/internal/api/dto"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/service"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

// APIKeyHeader carries the shared secret for the inbound webhook.
const APIKeyHeader = "X-API-Key"

// WebhookHandler accepts inbound emails from the mail relay.
type WebhookHandler struct {
	intake *service.IntakeService
	apiKey string
}

// NewWebhookHandler constructs handler. An empty apiKey disables the check.
func NewWebhookHandler(intake *service.IntakeService, apiKey string) *WebhookHandler {
	return &WebhookHandler{intake: intake, apiKey: apiKey}
}

// NewRequest handles POST /api/webhook/new-request.
func (h *WebhookHandler) NewRequest(c *fiber.Ctx) error {
	if h.apiKey != "" {
		got := c.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) != 1 {
			return apperrors.NewUnauthorized("invalid api key")
		}
	}

	var req dto.WebhookEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	result, err := h.intake.Ingest(c.UserContext(), req.InboundEmail(), domain.OptionalString(c.IP()))
	if err != nil {
		return err
	}
	return c.JSON(dto.WebhookResponse{
		Success:    true,
		Message:    result.Message,
		RequestKey: result.RequestKey,
		Action:     string(result.Action),
	})
}
