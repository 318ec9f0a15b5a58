package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-requests/internal/api/dto"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/service"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

// StaffHandler exposes staff auth and administration endpoints.
type StaffHandler struct {
	authService  *service.AuthService
	staffService *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService *service.AuthService, staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{authService: authService, staffService: staffService}
}

// Login handles POST /auth/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	result, err := h.authService.Login(c.UserContext(), req.Email, req.Password, domain.OptionalString(c.IP()))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"staff": dto.NewStaffResponse(result.Staff),
			"auth": dto.AuthResponse{
				Token:              result.Token,
				ExpiresAt:          result.ExpiresAt,
				MustChangePassword: result.MustChangePassword,
			},
		},
	})
}

// Logout handles POST /auth/logout.
func (h *StaffHandler) Logout(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	h.authService.Logout(c.UserContext(), actor)
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "logged_out"}})
}

// ChangePassword handles POST /auth/password/change.
func (h *StaffHandler) ChangePassword(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	if req.NewPassword == "" {
		return apperrors.NewValidationError("new password required", nil)
	}
	if err := h.authService.ChangePassword(c.UserContext(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_changed"}})
}

// ListStaff handles GET /api/staff.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	var (
		list []domain.StaffMember
		err  error
	)
	if c.QueryBool("active_only", false) {
		list, err = h.staffService.ListActive(c.UserContext())
	} else {
		list, err = h.staffService.List(c.UserContext())
	}
	if err != nil {
		return err
	}
	resp := make([]dto.StaffResponse, 0, len(list))
	for i := range list {
		resp = append(resp, dto.NewStaffResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateStaff handles POST /api/staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.StaffCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	member, err := h.staffService.Create(c.UserContext(), actor, req.Email, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewStaffResponse(member)})
}

// ToggleStaff handles POST /api/staff/:email/toggle.
func (h *StaffHandler) ToggleStaff(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	member, err := h.staffService.ToggleActive(c.UserContext(), actor, c.Params("email"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponse(member)})
}

// SetStaffRole handles POST /api/staff/:email/role.
func (h *StaffHandler) SetStaffRole(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.StaffRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	member, err := h.staffService.SetRole(c.UserContext(), actor, c.Params("email"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponse(member)})
}
