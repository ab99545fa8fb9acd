package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taxdesk/internal/api/dto"
	"github.com/spec-kit/taxdesk/internal/auth"
	"github.com/spec-kit/taxdesk/internal/service"
	apperrors "github.com/spec-kit/taxdesk/pkg/util"
)

// TaxHandler exposes the caller's tax profile.
type TaxHandler struct {
	profiles *service.TaxProfileService
}

// NewTaxHandler constructs handler.
func NewTaxHandler(profiles *service.TaxProfileService) *TaxHandler {
	return &TaxHandler{profiles: profiles}
}

// GetProfile handles GET /api/tax/profile. A caller who never saved a
// profile gets zeros.
func (h *TaxHandler) GetProfile(c *fiber.Ctx) error {
	identity, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	profile, err := h.profiles.Get(c.UserContext(), identity.ID)
	if apperrors.IsKind(err, apperrors.CodeNotFound) {
		return c.JSON(dto.NewTaxProfileResponse(nil))
	}
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTaxProfileResponse(profile))
}

// SaveProfile handles POST /api/tax/profile.
func (h *TaxHandler) SaveProfile(c *fiber.Ctx) error {
	identity, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	var req dto.TaxProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("income and deductions must be numbers", nil)
	}
	if req.Income == nil || req.Deductions == nil {
		return apperrors.NewValidationError("income and deductions required", nil)
	}
	income, err := req.Income.Cents()
	if err != nil {
		return apperrors.NewValidationError("income: "+err.Error(), map[string]any{"field": "income"})
	}
	deductions, err := req.Deductions.Cents()
	if err != nil {
		return apperrors.NewValidationError("deductions: "+err.Error(), map[string]any{"field": "deductions"})
	}

	profile, err := h.profiles.UpsertCents(c.UserContext(), identity.ID, income, deductions)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTaxProfileResponse(profile))
}
