package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/models"
	"github.com/rahulmehra/vyaparhub/pkg/plans"
)

// CreateSubscriptionOrder opens a gateway order for plan * durationMonths and
// anchors it locally before the checkout widget ever sees the order handle.
// A later callback referencing an unknown order id is rejected outright.
func (s *Service) CreateSubscriptionOrder(ctx context.Context, userID uint, planID string, durationMonths int) (*models.CreateOrderResponse, error) {
	if durationMonths < 1 {
		return nil, domain.NewValidationError("duration_months must be at least 1")
	}
	plan, err := plans.Get(planID)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid plan: %s", planID))
	}
	if plan.ID == plans.PlanFree {
		return nil, domain.NewValidationError("the free plan cannot be purchased")
	}

	// Major units -> gateway minor units (x100).
	amountMinor := int64(plan.Price) * int64(durationMonths) * 100
	receipt := uuid.NewString()

	orderID, err := s.gw.CreateOrder(ctx, amountMinor, DefaultCurrency, map[string]string{
		"receipt":         receipt,
		"user_id":         fmt.Sprintf("%d", userID),
		"plan":            plan.ID,
		"duration_months": fmt.Sprintf("%d", durationMonths),
	})
	if err != nil {
		return nil, err
	}

	pending := &models.PendingPaymentOrder{
		OrderID:                orderID,
		UserID:                 userID,
		IntendedPlan:           plan.ID,
		IntendedDurationMonths: durationMonths,
		AmountMinorUnits:       amountMinor,
		Currency:               DefaultCurrency,
		Status:                 models.OrderStatusCreated,
		Receipt:                receipt,
	}
	if err := s.db.WithContext(ctx).Create(pending).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.log.Info("subscription order created",
		"user_id", userID,
		"plan", plan.ID,
		"duration_months", durationMonths,
		"order_id", orderID,
		"amount_minor", amountMinor)

	return &models.CreateOrderResponse{
		OrderID:          orderID,
		AmountMinorUnits: amountMinor,
		Currency:         DefaultCurrency,
		GatewayPublicKey: s.gw.PublicKey(),
	}, nil
}
