package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rahulmehra/vyaparhub/pkg/billing"
	"github.com/rahulmehra/vyaparhub/pkg/logger"
	"github.com/rahulmehra/vyaparhub/pkg/metrics"
	"github.com/rahulmehra/vyaparhub/pkg/storefront"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron              *cron.Cron
	billingService    *billing.Service
	storefrontService *storefront.Service
	metrics           *metrics.Metrics
	orderRetention    time.Duration
	log               logger.Logger
}

// NewCronManager creates a new cron manager. orderRetentionDays bounds how
// long an unpaid gateway order stays open before the sweep marks it failed.
func NewCronManager(billingService *billing.Service, storefrontService *storefront.Service, m *metrics.Metrics, orderRetentionDays int, log logger.Logger) *CronManager {
	return &CronManager{
		cron:              cron.New(),
		billingService:    billingService,
		storefrontService: storefrontService,
		metrics:           m,
		orderRetention:    time.Duration(orderRetentionDays) * 24 * time.Hour,
		log:               log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	// Daily at 2 AM: mark abandoned payment orders as failed so their
	// gateway callbacks can no longer be replayed.
	_, err := cm.cron.AddFunc("0 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		cm.SweepStaleOrders(ctx)
	})
	if err != nil {
		return err
	}

	// Nightly at 3 AM: reconcile every recurring subscription against the
	// gateway. Failures leave local state untouched.
	_, err = cm.cron.AddFunc("0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		cm.ReconcileSubscriptions(ctx)
	})
	if err != nil {
		return err
	}

	return nil
}

// SweepStaleOrders runs the stale order sweep once, across both
// subscription and storefront orders
func (cm *CronManager) SweepStaleOrders(ctx context.Context) {
	swept, err := cm.billingService.MarkStaleOrdersFailed(ctx, cm.orderRetention)
	if err != nil {
		cm.log.Error("stale subscription order sweep failed", "error", err)
	} else if swept > 0 {
		cm.metrics.StaleOrdersSwept.Add(float64(swept))
		cm.log.Info("stale subscription orders swept", "count", swept)
	}

	swept, err = cm.storefrontService.MarkStaleOrdersFailed(ctx, cm.orderRetention)
	if err != nil {
		cm.log.Error("stale catalog order sweep failed", "error", err)
	} else if swept > 0 {
		cm.metrics.StaleOrdersSwept.Add(float64(swept))
		cm.log.Info("stale catalog orders swept", "count", swept)
	}
}

// ReconcileSubscriptions refreshes all recurring subscriptions from the gateway
func (cm *CronManager) ReconcileSubscriptions(ctx context.Context) {
	synced, failed := cm.billingService.SyncAllRecurring(ctx)
	cm.metrics.ReconciliationRuns.WithLabelValues("ok").Add(float64(synced))
	cm.metrics.ReconciliationRuns.WithLabelValues("error").Add(float64(failed))
	cm.log.Info("nightly subscription reconciliation finished", "synced", synced, "failed", failed)
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.cron.Start()
	cm.log.Info("cron jobs started")
}

// Stop stops the cron scheduler and waits for running jobs
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
	cm.log.Info("cron jobs stopped")
}
