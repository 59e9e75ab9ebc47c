package billing

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// Verify validates a completed-payment callback and applies the resulting
// subscription change exactly once. Replays with the same payment id are
// acknowledged without mutation; everything else is rejected.
func (s *Service) Verify(ctx context.Context, req models.VerifyRequest) (bool, error) {
	pending, err := s.loadPendingOrder(ctx, req.OrderID)
	if err != nil {
		return false, err
	}

	// Client-supplied plan/duration are advisory only; the pending order's
	// stored values are authoritative and any disagreement is rejected
	// before the signature is even checked.
	if req.Plan != "" && req.Plan != pending.IntendedPlan {
		return false, domain.NewValidationError("plan does not match the original order")
	}
	if req.DurationMonths != 0 && req.DurationMonths != pending.IntendedDurationMonths {
		return false, domain.NewValidationError("duration does not match the original order")
	}

	return s.settleOrder(ctx, pending, req.PaymentID, func(orderID string) error {
		if !s.gw.VerifySignature(orderID, req.PaymentID, req.Signature) {
			s.log.Warn("payment signature mismatch",
				"order_id", orderID,
				"user_id", pending.UserID)
			return domain.NewSignatureMismatchError()
		}
		return nil
	})
}

// ApplyGatewayCapture settles an order the gateway reported captured through
// a signed webhook. The webhook envelope was already authenticated against
// the endpoint secret, so no per-payment checkout signature exists or is
// checked here.
func (s *Service) ApplyGatewayCapture(ctx context.Context, orderID, paymentID string) (bool, error) {
	pending, err := s.loadPendingOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return s.settleOrder(ctx, pending, paymentID, nil)
}

func (s *Service) loadPendingOrder(ctx context.Context, orderID string) (*models.PendingPaymentOrder, error) {
	var pending models.PendingPaymentOrder
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&pending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("payment order")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &pending, nil
}

// settleOrder performs the exactly-once terminal transition for a captured
// payment. authenticate, when non-nil, runs after the replay check and must
// reject the attempt for the settlement to be aborted; webhook-sourced
// captures pass nil because their envelope was authenticated upstream.
func (s *Service) settleOrder(ctx context.Context, pending *models.PendingPaymentOrder, paymentID string, authenticate func(orderID string) error) (bool, error) {
	unlock := s.locks.lock(pending.UserID)
	defer unlock()

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reload inside the transaction. Exactly-once application does not
		// depend on a row lock: the terminal transition below only succeeds
		// while the status predicate still holds.
		var order models.PendingPaymentOrder
		if err := tx.Where("order_id = ?", pending.OrderID).First(&order).Error; err != nil {
			return err
		}

		switch order.Status {
		case models.OrderStatusVerified:
			if order.PaymentID != nil && *order.PaymentID == paymentID {
				// Idempotent replay: acknowledge, mutate nothing.
				applied = true
				return nil
			}
			return domain.NewAlreadyProcessedError(order.OrderID)
		case models.OrderStatusFailed:
			return domain.NewAlreadyProcessedError(order.OrderID)
		}

		if authenticate != nil {
			if err := authenticate(order.OrderID); err != nil {
				return err
			}
		}

		// Terminal transition guarded by the status predicate: under a
		// duplicate-callback race only one transaction flips the row.
		res := tx.Model(&models.PendingPaymentOrder{}).
			Where("order_id = ? AND status = ?", order.OrderID, models.OrderStatusCreated).
			Updates(map[string]interface{}{
				"status":     models.OrderStatusVerified,
				"payment_id": paymentID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NewAlreadyProcessedError(order.OrderID)
		}

		if err := s.applySubscriptionTx(tx, &order, paymentID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return false, err
		}
		return false, domain.NewInternalError(err)
	}

	if applied {
		s.store.invalidate(ctx, pending.UserID)
	}
	return applied, nil
}

// applySubscriptionTx writes the entitlement change for a verified order. A
// renewal purchased before expiry extends the existing period instead of
// restarting the clock.
func (s *Service) applySubscriptionTx(tx *gorm.DB, order *models.PendingPaymentOrder, paymentID string) error {
	now := s.now()

	return s.store.upsertTx(tx, order.UserID, func(sub *models.Subscription) {
		start := now
		if sub.Status == models.SubscriptionStatusActive && sub.CurrentPeriodEnd.After(now) {
			start = sub.CurrentPeriodEnd
		}

		orderID := order.OrderID
		sub.Plan = order.IntendedPlan
		sub.Status = models.SubscriptionStatusActive
		sub.BillingDurationMonths = order.IntendedDurationMonths
		sub.AmountPaid = float64(order.AmountMinorUnits) / 100
		sub.CurrentPeriodStart = start
		sub.CurrentPeriodEnd = start.AddDate(0, order.IntendedDurationMonths, 0)
		sub.CancelAtPeriodEnd = false
		sub.GatewayKind = models.GatewayKindOneTime
		sub.GatewayOrderID = &orderID
		sub.GatewayPaymentID = &paymentID
		sub.GatewaySubscriptionID = nil
		sub.NextDueDate = nil
	})
}
