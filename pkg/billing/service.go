// Package billing converts gateway payment confirmations into idempotent
// subscription changes. The only paths that mutate plan state are a
// signature-verified callback and an authoritative gateway sync.
package billing

import (
	"time"

	"gorm.io/gorm"

	"github.com/rahulmehra/vyaparhub/pkg/cache"
	"github.com/rahulmehra/vyaparhub/pkg/gateway"
	"github.com/rahulmehra/vyaparhub/pkg/logger"
)

// DefaultCurrency is the gateway settlement currency
const DefaultCurrency = "INR"

// Service owns pending payment orders and the subscription lifecycle
type Service struct {
	db    *gorm.DB
	gw    gateway.Adapter
	store *Store
	log   logger.Logger
	locks *userLocks
	now   func() time.Time
}

// NewService creates the billing service. cache may be nil (tests).
func NewService(db *gorm.DB, gw gateway.Adapter, cacheClient *cache.Client, log logger.Logger) *Service {
	return &Service{
		db:    db,
		gw:    gw,
		store: NewStore(db, cacheClient),
		log:   log,
		locks: newUserLocks(),
		now:   time.Now,
	}
}

// Store exposes the subscription store for collaborators that read plan
// state or perform staff overrides.
func (s *Service) Store() *Store {
	return s.store
}

// SetClock overrides the service clock (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
