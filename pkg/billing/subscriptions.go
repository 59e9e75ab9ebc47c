package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rahulmehra/vyaparhub/pkg/cache"
	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/models"
	"github.com/rahulmehra/vyaparhub/pkg/plans"
)

const (
	subscriptionCacheTTL = time.Minute
)

// Store is the durable record of each user's current plan. Writers are the
// payment verifier, the reconciliation sync, and staff overrides; everything
// else reads.
type Store struct {
	db    *gorm.DB
	cache *cache.Client
}

// NewStore creates a subscription store. cacheClient may be nil.
func NewStore(db *gorm.DB, cacheClient *cache.Client) *Store {
	return &Store{db: db, cache: cacheClient}
}

func subscriptionCacheKey(userID uint) string {
	return fmt.Sprintf("subscription:%d", userID)
}

// Get returns the user's subscription, synthesizing a free-tier default when
// no row exists. Callers cannot distinguish "never subscribed" from an
// explicit free plan.
func (st *Store) Get(ctx context.Context, userID uint) (*models.Subscription, error) {
	if st.cache != nil {
		if raw, err := st.cache.Get(ctx, subscriptionCacheKey(userID)); err == nil && raw != "" {
			var sub models.Subscription
			if err := json.Unmarshal([]byte(raw), &sub); err == nil {
				return &sub, nil
			}
		}
	}

	var sub models.Subscription
	err := st.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultSubscription(userID), nil
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	if st.cache != nil {
		if raw, err := json.Marshal(&sub); err == nil {
			_ = st.cache.Set(ctx, subscriptionCacheKey(userID), raw, subscriptionCacheTTL)
		}
	}
	return &sub, nil
}

// defaultSubscription is the implicit free tier for users with no row
func defaultSubscription(userID uint) *models.Subscription {
	return &models.Subscription{
		UserID:             userID,
		Plan:               plans.PlanFree,
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: time.Now(),
		CurrentPeriodEnd:   time.Now().AddDate(1, 0, 0),
		GatewayKind:        models.GatewayKindNone,
	}
}

// upsertTx writes subscription fields inside the caller's transaction,
// creating the row when absent.
func (st *Store) upsertTx(tx *gorm.DB, userID uint, apply func(*models.Subscription)) error {
	var sub models.Subscription
	err := tx.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = models.Subscription{UserID: userID}
		apply(&sub)
		return tx.Create(&sub).Error
	}
	if err != nil {
		return err
	}
	apply(&sub)
	return tx.Save(&sub).Error
}

// invalidate drops the cached snapshot after a write
func (st *Store) invalidate(ctx context.Context, userID uint) {
	if st.cache != nil {
		_ = st.cache.Delete(ctx, subscriptionCacheKey(userID))
	}
}

// Override applies a staff-initiated plan change. No gateway reference is
// recorded; reconciliation treats these rows as local-only.
func (st *Store) Override(ctx context.Context, userID uint, planID string, durationMonths int) (*models.Subscription, error) {
	plan, err := plans.Get(planID)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if durationMonths <= 0 {
		durationMonths = 1
	}

	now := time.Now()
	err = st.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return st.upsertTx(tx, userID, func(sub *models.Subscription) {
			sub.Plan = plan.ID
			sub.Status = models.SubscriptionStatusActive
			sub.BillingDurationMonths = durationMonths
			sub.AmountPaid = 0
			sub.CurrentPeriodStart = now
			sub.CurrentPeriodEnd = now.AddDate(0, durationMonths, 0)
			sub.CancelAtPeriodEnd = false
			sub.GatewayKind = models.GatewayKindNone
			sub.GatewaySubscriptionID = nil
			sub.GatewayOrderID = nil
			sub.GatewayPaymentID = nil
			sub.NextDueDate = nil
		})
	})
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	st.invalidate(ctx, userID)
	return st.Get(ctx, userID)
}
