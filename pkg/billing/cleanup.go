package billing

import (
	"context"
	"time"

	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// MarkStaleOrdersFailed sweeps pending orders abandoned at the checkout
// widget (still `created` after the retention window) into the failed
// terminal state. Late callbacks for swept orders are rejected by status.
func (s *Service) MarkStaleOrdersFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	res := s.db.WithContext(ctx).
		Model(&models.PendingPaymentOrder{}).
		Where("status = ? AND created_at < ?", models.OrderStatusCreated, cutoff).
		Update("status", models.OrderStatusFailed)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("stale pending orders swept", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
