package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/rahulmehra/vyaparhub/pkg/api/errors"
	"github.com/rahulmehra/vyaparhub/pkg/metrics"
	"github.com/rahulmehra/vyaparhub/pkg/models"
	"github.com/rahulmehra/vyaparhub/pkg/storefront"
)

// StorefrontHandler handles public storefront checkout endpoints.
// These routes are unauthenticated; the shop is addressed by slug.
type StorefrontHandler struct {
	storefrontService *storefront.Service
	metrics           *metrics.Metrics
	validator         *validator.Validate
}

// NewStorefrontHandler creates a new storefront handler
func NewStorefrontHandler(storefrontService *storefront.Service, m *metrics.Metrics) *StorefrontHandler {
	return &StorefrontHandler{
		storefrontService: storefrontService,
		metrics:           m,
		validator:         validator.New(),
	}
}

// CreateOrder godoc
// @Summary Open a payment order for a storefront purchase
// @Description Create a gateway order for a product in a public shop; price is taken from the live listing
// @Tags Storefront
// @Accept json
// @Produce json
// @Param request body models.CatalogOrderRequest true "Shop slug, product and quantity"
// @Success 200 {object} models.CreateOrderResponse "Order created"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 404 {object} models.ErrorResponse "Unknown shop or product"
// @Failure 503 {object} models.ErrorResponse "Gateway unavailable"
// @Router /catalog/order [post]
func (h *StorefrontHandler) CreateOrder(c echo.Context) error {
	var req models.CatalogOrderRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	order, err := h.storefrontService.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	h.metrics.OrdersCreated.WithLabelValues("catalog").Inc()
	return c.JSON(http.StatusOK, order)
}

// Verify godoc
// @Summary Verify a completed storefront payment
// @Description Check the gateway signature for a paid catalog order and mark it verified exactly once
// @Tags Storefront
// @Accept json
// @Produce json
// @Param request body models.CatalogVerifyRequest true "Order, payment and signature from the gateway callback"
// @Success 200 {object} models.VerifyResponse "Payment verified"
// @Failure 400 {object} models.ErrorResponse "Invalid request or verification failed"
// @Failure 404 {object} models.ErrorResponse "Unknown order"
// @Failure 409 {object} models.ErrorResponse "Order already consumed"
// @Router /catalog/verify [post]
func (h *StorefrontHandler) Verify(c echo.Context) error {
	var req models.CatalogVerifyRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	applied, err := h.storefrontService.Verify(c.Request().Context(), req)
	if err != nil {
		h.metrics.PaymentsVerified.WithLabelValues("catalog", "rejected").Inc()
		return errors.FromDomain(c, err)
	}

	h.metrics.PaymentsVerified.WithLabelValues("catalog", "applied").Inc()

	return c.JSON(http.StatusOK, models.VerifyResponse{Applied: applied})
}
