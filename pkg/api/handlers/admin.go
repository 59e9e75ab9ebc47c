package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/rahulmehra/vyaparhub/pkg/api/errors"
	"github.com/rahulmehra/vyaparhub/pkg/billing"
	"github.com/rahulmehra/vyaparhub/pkg/logger"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// AdminHandler handles staff-only endpoints
type AdminHandler struct {
	billingService *billing.Service
	log            logger.Logger
	validator      *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(billingService *billing.Service, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		billingService: billingService,
		log:            log,
		validator:      validator.New(),
	}
}

// OverridePlan godoc
// @Summary Override a user's plan
// @Description Set a user's plan directly without a payment. Used for support escalations and comped accounts.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body models.PlanOverrideRequest true "Plan and optional duration in months"
// @Success 200 {object} models.Subscription "Updated subscription"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/users/{id}/plan [put]
func (h *AdminHandler) OverridePlan(c echo.Context) error {
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_user_id",
			Message: "User ID must be a positive integer",
		})
	}

	var req models.PlanOverrideRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	sub, err := h.billingService.Store().Override(c.Request().Context(), uint(targetID), req.Plan, req.DurationMonths)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	actorID, _ := userIDFromContext(c)
	h.log.Info("plan override applied",
		"actor_id", actorID,
		"user_id", targetID,
		"plan", req.Plan,
		"duration_months", req.DurationMonths,
	)

	return c.JSON(http.StatusOK, sub)
}
