// Package storefront handles public shop checkout. It shares the payment
// verification contract with billing but never touches subscription state.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nyaruka/phonenumbers"
	"gorm.io/gorm"

	"github.com/rahulmehra/vyaparhub/pkg/billing"
	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/gateway"
	"github.com/rahulmehra/vyaparhub/pkg/logger"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// defaultRegion is used when a contact number has no country prefix
const defaultRegion = "IN"

// Service creates and verifies catalog orders
type Service struct {
	db  *gorm.DB
	gw  gateway.Adapter
	log logger.Logger
}

// NewService creates the storefront service
func NewService(db *gorm.DB, gw gateway.Adapter, log logger.Logger) *Service {
	return &Service{db: db, gw: gw, log: log}
}

// CreateOrder resolves the product's live price for the shop behind slug,
// opens a gateway order, and anchors a CatalogOrder row before returning the
// handle to the widget.
func (s *Service) CreateOrder(ctx context.Context, req models.CatalogOrderRequest) (*models.CreateOrderResponse, error) {
	if req.Quantity < 1 {
		return nil, domain.NewValidationError("quantity must be at least 1")
	}

	contact, err := normalizeContact(req.CustomerContact)
	if err != nil {
		return nil, err
	}

	var shop models.Shop
	if err := s.db.WithContext(ctx).Where("slug = ?", req.Slug).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("shop")
		}
		return nil, domain.NewInternalError(err)
	}

	var product models.Product
	err = s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND active = ?", req.ProductID, shop.UserID, true).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("product")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	// Live price: catalog sale override wins over the base price.
	unitPrice := product.EffectivePrice()
	amountMinor := int64(unitPrice*100+0.5) * int64(req.Quantity)

	orderID, err := s.gw.CreateOrder(ctx, amountMinor, billing.DefaultCurrency, map[string]string{
		"shop_slug":  shop.Slug,
		"product_id": fmt.Sprintf("%d", product.ID),
		"quantity":   fmt.Sprintf("%d", req.Quantity),
	})
	if err != nil {
		return nil, err
	}

	order := &models.CatalogOrder{
		OrderID:          orderID,
		ShopSlug:         shop.Slug,
		ProductID:        product.ID,
		Quantity:         req.Quantity,
		UnitPrice:        unitPrice,
		AmountMinorUnits: amountMinor,
		Currency:         billing.DefaultCurrency,
		CustomerContact:  contact,
		Status:           models.OrderStatusCreated,
	}
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.log.Info("catalog order created",
		"shop", shop.Slug,
		"product_id", product.ID,
		"quantity", req.Quantity,
		"order_id", orderID,
		"amount_minor", amountMinor)

	return &models.CreateOrderResponse{
		OrderID:          orderID,
		AmountMinorUnits: amountMinor,
		Currency:         billing.DefaultCurrency,
		GatewayPublicKey: s.gw.PublicKey(),
	}, nil
}

// Verify finalizes a catalog order exactly once under the same signature
// contract as subscription payments. No subscription state is written.
func (s *Service) Verify(ctx context.Context, req models.CatalogVerifyRequest) (bool, error) {
	var order models.CatalogOrder
	err := s.db.WithContext(ctx).
		Where("id = ? AND order_id = ?", req.CatalogOrderID, req.OrderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, domain.NewNotFoundError("catalog order")
	}
	if err != nil {
		return false, domain.NewInternalError(err)
	}

	applied := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reload inside the transaction; the status-predicated update below
		// is what makes the terminal transition single-winner.
		var current models.CatalogOrder
		if err := tx.Where("id = ?", order.ID).First(&current).Error; err != nil {
			return err
		}

		switch current.Status {
		case models.OrderStatusVerified:
			if current.PaymentID != nil && *current.PaymentID == req.PaymentID {
				applied = true
				return nil
			}
			return domain.NewAlreadyProcessedError(current.OrderID)
		case models.OrderStatusFailed:
			return domain.NewAlreadyProcessedError(current.OrderID)
		}

		if !s.gw.VerifySignature(current.OrderID, req.PaymentID, req.Signature) {
			s.log.Warn("catalog payment signature mismatch",
				"order_id", current.OrderID,
				"shop", current.ShopSlug)
			return domain.NewSignatureMismatchError()
		}

		res := tx.Model(&models.CatalogOrder{}).
			Where("id = ? AND status = ?", current.ID, models.OrderStatusCreated).
			Updates(map[string]interface{}{
				"status":     models.OrderStatusVerified,
				"payment_id": req.PaymentID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NewAlreadyProcessedError(current.OrderID)
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

	return applied, nil
}

// MarkStaleOrdersFailed sweeps abandoned catalog checkouts, mirroring the
// billing sweep.
func (s *Service) MarkStaleOrdersFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.WithContext(ctx).
		Model(&models.CatalogOrder{}).
		Where("status = ? AND created_at < ?", models.OrderStatusCreated, cutoff).
		Update("status", models.OrderStatusFailed)
	return res.RowsAffected, res.Error
}

// normalizeContact validates the customer's phone contact and formats it as
// E.164.
func normalizeContact(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", domain.NewValidationError("customer_contact must be a valid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", domain.NewValidationError("customer_contact must be a valid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
