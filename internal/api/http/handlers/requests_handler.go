package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-requests/internal/api/dto"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/service"
)

// RequestsHandler serves the staff dashboard endpoints.
type RequestsHandler struct {
	requests *service.RequestService
	intake   *service.IntakeService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requests *service.RequestService, intake *service.IntakeService) *RequestsHandler {
	return &RequestsHandler{requests: requests, intake: intake}
}

// List GET /api/requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	filter := service.RequestListFilter{Search: optionalQuery(c, "search")}
	if status := c.Query("status"); status != "" {
		s := domain.RequestStatus(status)
		filter.Status = &s
	}
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	list, err := h.requests.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(list))
	for i := range list {
		items = append(items, dto.NewRequestSummary(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Counts GET /api/requests/counts.
func (h *RequestsHandler) Counts(c *fiber.Ctx) error {
	counts, err := h.requests.Counts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CountsResponse{
		Open:       counts.ByStatus[domain.RequestStatusOpen],
		InProgress: counts.ByStatus[domain.RequestStatusInProgress],
		Closed:     counts.ByStatus[domain.RequestStatusClosed],
		Total:      counts.Total,
	}})
}

// Get GET /api/requests/:key.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	detail, err := h.requests.Detail(c.UserContext(), actor, c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(detail.Request, detail.Comments, detail.Audit)})
}

// Import POST /api/requests/import.
func (h *RequestsHandler) Import(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	created, err := h.intake.Import(c.UserContext(), actor, req.Subject, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRequestSummary(created)})
}

// UpdateStatus POST /api/requests/:key/status.
func (h *RequestsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	updated, err := h.requests.UpdateStatus(c.UserContext(), actor, c.Params("key"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestSummary(updated)})
}

// Assign POST /api/requests/:key/assign.
func (h *RequestsHandler) Assign(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	updated, err := h.requests.Assign(c.UserContext(), actor, c.Params("key"), req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestSummary(updated)})
}

// AddComment POST /api/requests/:key/comments.
func (h *RequestsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	comment, err := h.requests.AddComment(c.UserContext(), actor, c.Params("key"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// SendEmail POST /api/requests/:key/send-email.
func (h *RequestsHandler) SendEmail(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.SendEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	comment, err := h.requests.SendEmail(c.UserContext(), actor, c.Params("key"), service.SendEmailInput{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}
