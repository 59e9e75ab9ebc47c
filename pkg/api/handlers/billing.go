package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/rahulmehra/vyaparhub/pkg/api/errors"
	"github.com/rahulmehra/vyaparhub/pkg/billing"
	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/entitlement"
	"github.com/rahulmehra/vyaparhub/pkg/gateway"
	"github.com/rahulmehra/vyaparhub/pkg/metrics"
	"github.com/rahulmehra/vyaparhub/pkg/models"
	"github.com/rahulmehra/vyaparhub/pkg/plans"
)

// BillingHandler handles billing endpoints
type BillingHandler struct {
	billingService     *billing.Service
	entitlementService *entitlement.Service
	metrics            *metrics.Metrics
	webhookSecret      string
	validator          *validator.Validate
}

// NewBillingHandler creates a new billing handler. webhookSecret authenticates
// gateway webhook deliveries; when empty the webhook endpoint rejects
// everything.
func NewBillingHandler(billingService *billing.Service, entitlementService *entitlement.Service, m *metrics.Metrics, webhookSecret string) *BillingHandler {
	return &BillingHandler{
		billingService:     billingService,
		entitlementService: entitlementService,
		metrics:            m,
		webhookSecret:      webhookSecret,
		validator:          validator.New(),
	}
}

func userIDFromContext(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok
}

// CreateOrder godoc
// @Summary Open a payment order for a plan purchase
// @Description Create a gateway order for the chosen plan and duration; the client completes payment and calls verify
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateOrderRequest true "Plan and duration"
// @Success 200 {object} models.CreateOrderResponse "Order created"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 503 {object} models.ErrorResponse "Gateway unavailable"
// @Router /billing/order [post]
func (h *BillingHandler) CreateOrder(c echo.Context) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "unauthorized",
		})
	}

	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	order, err := h.billingService.CreateSubscriptionOrder(c.Request().Context(), userID, req.Plan, req.DurationMonths)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	h.metrics.OrdersCreated.WithLabelValues("subscription").Inc()
	return c.JSON(http.StatusOK, order)
}

// Verify godoc
// @Summary Verify a completed payment
// @Description Check the gateway signature for a paid order and apply the purchased plan exactly once
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.VerifyRequest true "Order, payment and signature from the gateway callback"
// @Success 200 {object} models.VerifyResponse "Payment verified"
// @Failure 400 {object} models.ErrorResponse "Invalid request or verification failed"
// @Failure 404 {object} models.ErrorResponse "Unknown order"
// @Failure 409 {object} models.ErrorResponse "Order already consumed"
// @Router /billing/verify [post]
func (h *BillingHandler) Verify(c echo.Context) error {
	if _, ok := userIDFromContext(c); !ok {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "unauthorized",
		})
	}

	var req models.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	applied, err := h.billingService.Verify(c.Request().Context(), req)
	if err != nil {
		h.metrics.PaymentsVerified.WithLabelValues("subscription", "rejected").Inc()
		return errors.FromDomain(c, err)
	}

	h.metrics.PaymentsVerified.WithLabelValues("subscription", "applied").Inc()
	h.metrics.SubscriptionsApplied.WithLabelValues(req.Plan).Inc()

	return c.JSON(http.StatusOK, models.VerifyResponse{Applied: applied})
}

// Webhook godoc
// @Summary Consume gateway webhook events
// @Description Apply payment.captured events posted by the gateway; the request carries no user token, authenticity comes from the endpoint-secret signature over the raw body
// @Tags Billing
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC of the raw body under the endpoint secret"
// @Success 200 {object} models.SuccessResponse "Event processed or acknowledged"
// @Failure 400 {object} models.ErrorResponse "Invalid body or verification failed"
// @Router /billing/webhook [post]
func (h *BillingHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	signature := c.Request().Header.Get("X-Razorpay-Signature")
	if h.webhookSecret == "" || !gateway.VerifyWebhookSignature(h.webhookSecret, body, signature) {
		h.metrics.PaymentsVerified.WithLabelValues("subscription", "rejected").Inc()
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "verification_failed",
			Message: "Payment could not be verified",
		})
	}

	var event models.GatewayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return errors.ValidationError(c, err)
	}
	if event.Event != "payment.captured" {
		return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "ignored"})
	}

	entity := event.Payload.Payment.Entity
	if entity.ID == "" || entity.OrderID == "" {
		return errors.ValidationError(c, domain.NewValidationError("payment entity missing id or order_id"))
	}

	_, err = h.billingService.ApplyGatewayCapture(c.Request().Context(), entity.OrderID, entity.ID)
	if err != nil {
		// Acknowledge events for orders this service does not own, and
		// replays of already-settled ones, so the gateway stops
		// redelivering them.
		if domain.IsNotFound(err) || domain.IsAlreadyProcessed(err) {
			return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "ignored"})
		}
		h.metrics.PaymentsVerified.WithLabelValues("subscription", "rejected").Inc()
		return errors.FromDomain(c, err)
	}

	h.metrics.PaymentsVerified.WithLabelValues("subscription", "applied").Inc()
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "processed"})
}

// GetSubscription godoc
// @Summary Get the caller's subscription
// @Description Return the current subscription, synthesizing a free one for users who never paid
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Subscription "Current subscription"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /billing/subscription [get]
func (h *BillingHandler) GetSubscription(c echo.Context) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "unauthorized",
		})
	}

	sub, err := h.billingService.Store().Get(c.Request().Context(), userID)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// Sync godoc
// @Summary Refresh subscription state from the gateway
// @Description Pull the authoritative gateway state for recurring subscriptions; local state is kept when the gateway is unreachable
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Subscription "Subscription after sync"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 503 {object} models.ErrorResponse "Gateway unavailable"
// @Router /billing/sync [post]
func (h *BillingHandler) Sync(c echo.Context) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "unauthorized",
		})
	}

	sub, err := h.billingService.Sync(c.Request().Context(), userID)
	if err != nil {
		h.metrics.ReconciliationRuns.WithLabelValues("error").Inc()
		return errors.FromDomain(c, err)
	}

	h.metrics.ReconciliationRuns.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, sub)
}

// GetUsage godoc
// @Summary Get the caller's usage against plan limits
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UsageInfo "Usage counters and limits"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /billing/usage [get]
func (h *BillingHandler) GetUsage(c echo.Context) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "unauthorized",
		})
	}

	usage, err := h.entitlementService.Usage(c.Request().Context(), userID)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, usage)
}

// GetPricing godoc
// @Summary Get pricing tiers
// @Description Get all available plans with pricing, features, and limits
// @Tags Billing
// @Produce json
// @Success 200 {object} models.PricingResponse "Pricing information for all tiers"
// @Router /billing/pricing [get]
func (h *BillingHandler) GetPricing(c echo.Context) error {
	return c.JSON(http.StatusOK, plans.Pricing())
}
