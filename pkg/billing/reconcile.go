package billing

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/gateway"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// Sync pulls the authoritative subscription state from the gateway and
// repairs the local row after missed callbacks. Gateway failures never
// downgrade local state: the last-known-good row is kept and a transient
// error is surfaced.
func (s *Service) Sync(ctx context.Context, userID uint) (*models.Subscription, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Nothing stored: the implicit free default needs no repair.
		return s.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	ref, ok := gatewayRefFor(&sub)
	if !ok || ref.Kind != gateway.RefRecurring {
		// One-time purchases have no remote subscription resource; sync is
		// a re-read of the local row.
		return &sub, nil
	}

	remote, err := s.gw.FetchRecurringStatus(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrRecurringUnsupported) {
			return &sub, nil
		}
		s.log.Warn("reconciliation fetch failed, keeping local state",
			"user_id", userID,
			"subscription_id", ref.ID,
			"error", err)
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.store.upsertTx(tx, userID, func(local *models.Subscription) {
			local.Status = remote.Status
			if !remote.PeriodStart.IsZero() {
				local.CurrentPeriodStart = remote.PeriodStart
			}
			if !remote.PeriodEnd.IsZero() {
				local.CurrentPeriodEnd = remote.PeriodEnd
			}
			local.NextDueDate = remote.NextDueDate
		})
	})
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.store.invalidate(ctx, userID)
	s.log.Info("subscription reconciled",
		"user_id", userID,
		"status", remote.Status,
		"period_end", remote.PeriodEnd)

	return s.store.Get(ctx, userID)
}

// SyncAllRecurring reconciles every subscription that references a recurring
// gateway resource. Per-user failures are logged and skipped.
func (s *Service) SyncAllRecurring(ctx context.Context) (synced, failed int) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("gateway_kind = ? AND gateway_subscription_id IS NOT NULL", models.GatewayKindRecurring).
		Find(&subs).Error
	if err != nil {
		s.log.Error("reconciliation sweep query failed", "error", err)
		return 0, 0
	}

	for _, sub := range subs {
		if _, err := s.Sync(ctx, sub.UserID); err != nil {
			failed++
			continue
		}
		synced++
	}
	return synced, failed
}

// gatewayRefFor builds the tagged gateway reference for a stored row
func gatewayRefFor(sub *models.Subscription) (gateway.Ref, bool) {
	switch sub.GatewayKind {
	case models.GatewayKindRecurring:
		if sub.GatewaySubscriptionID == nil || *sub.GatewaySubscriptionID == "" {
			return gateway.Ref{}, false
		}
		return gateway.RecurringRef(*sub.GatewaySubscriptionID), true
	case models.GatewayKindOneTime:
		if sub.GatewayOrderID == nil || *sub.GatewayOrderID == "" {
			return gateway.Ref{}, false
		}
		return gateway.OneTimeRef(*sub.GatewayOrderID), true
	default:
		return gateway.Ref{}, false
	}
}
