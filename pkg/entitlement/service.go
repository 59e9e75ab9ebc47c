// Package entitlement enforces per-plan quotas on the record-creation paths.
// Checks are advisory: the check and the subsequent insert are not one
// transaction, so two concurrent requests can both pass at count = limit-1.
// That soft-limit guarantee is the documented contract.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/models"
	"github.com/rahulmehra/vyaparhub/pkg/plans"
)

// Service resolves a user's plan and meters their usage against it
type Service struct {
	db      *gorm.DB
	now     func() time.Time
	denials *prometheus.CounterVec
}

// NewService creates the entitlement service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// NewServiceWithClock creates the service with an injected clock (tests)
func NewServiceWithClock(db *gorm.DB, now func() time.Time) *Service {
	return &Service{db: db, now: now}
}

// SetDenialCounter attaches a counter (labelled by resource) that records
// every quota denial. A nil counter disables recording.
func (s *Service) SetDenialCounter(denials *prometheus.CounterVec) {
	s.denials = denials
}

func (s *Service) recordDenial(resource string) {
	if s.denials != nil {
		s.denials.WithLabelValues(resource).Inc()
	}
}

// CurrentPlan resolves the user's active plan, defaulting to free when no
// subscription row exists or the stored one is no longer active.
func (s *Service) CurrentPlan(ctx context.Context, userID uint) plans.Plan {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return plans.MustGet(plans.PlanFree)
	}
	if sub.Status != models.SubscriptionStatusActive || !plans.IsValid(sub.Plan) {
		return plans.MustGet(plans.PlanFree)
	}
	return plans.MustGet(sub.Plan)
}

// CanCreateCustomer allows the write iff the user is under their customer
// ceiling. Returns nil when allowed, a LIMIT_EXCEEDED domain error when not.
func (s *Service) CanCreateCustomer(ctx context.Context, userID uint) error {
	plan := s.CurrentPlan(ctx, userID)
	limit := plan.Limits.MaxCustomers
	if limit == plans.Unlimited {
		return nil
	}

	count, err := s.CountCustomers(ctx, userID)
	if err != nil {
		return domain.NewInternalError(err)
	}
	if !plans.WithinLimit(limit, count) {
		s.recordDenial("customer")
		return domain.NewLimitExceededError(fmt.Sprintf(
			"You have reached your limit of %d customers on the %s plan. Upgrade to add more.",
			limit, plan.ID))
	}
	return nil
}

// CanCreateInvoice allows the write iff the user is under their monthly
// invoice ceiling. The window is the calendar month of the server clock.
func (s *Service) CanCreateInvoice(ctx context.Context, userID uint) error {
	plan := s.CurrentPlan(ctx, userID)
	limit := plan.Limits.MaxInvoicesPerMonth
	if limit == plans.Unlimited {
		return nil
	}

	count, err := s.CountInvoicesThisMonth(ctx, userID)
	if err != nil {
		return domain.NewInternalError(err)
	}
	if !plans.WithinLimit(limit, count) {
		s.recordDenial("invoice")
		return domain.NewLimitExceededError(fmt.Sprintf(
			"You have reached your limit of %d invoices this month on the %s plan. Upgrade to create more.",
			limit, plan.ID))
	}
	return nil
}

// CountCustomers returns the number of customer rows owned by the user
func (s *Service) CountCustomers(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountInvoicesThisMonth counts invoices in [first instant of this month,
// first instant of next month). An invoice at 23:59:59 on the last day
// counts; one a second later starts the next window.
func (s *Service) CountInvoicesThisMonth(ctx context.Context, userID uint) (int64, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonthStart := monthStart.AddDate(0, 1, 0)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, monthStart, nextMonthStart).
		Count(&count).Error
	return count, err
}

// Usage reports current consumption against the plan's ceilings
func (s *Service) Usage(ctx context.Context, userID uint) (*models.UsageInfo, error) {
	plan := s.CurrentPlan(ctx, userID)

	customers, err := s.CountCustomers(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	invoices, err := s.CountInvoicesThisMonth(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	return &models.UsageInfo{
		Plan:              plan.ID,
		Customers:         customers,
		MaxCustomers:      plan.Limits.MaxCustomers,
		InvoicesThisMonth: invoices,
		MaxInvoicesMonth:  plan.Limits.MaxInvoicesPerMonth,
	}, nil
}
