package storefront

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rahulmehra/vyaparhub/pkg/database"
	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/gateway"
	"github.com/rahulmehra/vyaparhub/pkg/logger"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

const fakeSecret = "storefront_secret"

type fakeGateway struct {
	created int
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency string, meta map[string]string) (string, error) {
	f.created++
	return fmt.Sprintf("order_shop_%03d", f.created), nil
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(fakeSecret, orderID, paymentID, signature)
}

func (f *fakeGateway) FetchRecurringStatus(ctx context.Context, subscriptionID string) (*gateway.RecurringStatus, error) {
	return nil, gateway.ErrRecurringUnsupported
}

func (f *fakeGateway) PublicKey() string { return "rzp_test_shop" }

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:storefront_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewService(db, &fakeGateway{}, logger.New("error")), db
}

func seedShop(t *testing.T, db *gorm.DB) models.Product {
	t.Helper()
	require.NoError(t, db.Create(&models.Shop{UserID: 1, Slug: "ram-kirana", Name: "Ram Kirana Store"}).Error)
	product := models.Product{UserID: 1, Name: "Basmati Rice 5kg", Price: 550, Active: true}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func signFor(orderID, paymentID string) string {
	return gateway.ComputeSignature(fakeSecret, orderID, paymentID)
}

func TestCreateOrderUsesLivePrice(t *testing.T) {
	svc, db := newTestService(t)
	product := seedShop(t, db)

	resp, err := svc.CreateOrder(context.Background(), models.CatalogOrderRequest{
		Slug:            "ram-kirana",
		ProductID:       product.ID,
		Quantity:        3,
		CustomerContact: "+919876543210",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(550*100*3), resp.AmountMinorUnits)
	assert.Equal(t, "INR", resp.Currency)

	var order models.CatalogOrder
	require.NoError(t, db.Where("order_id = ?", resp.OrderID).First(&order).Error)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.Equal(t, 550.0, order.UnitPrice)
	assert.Equal(t, "+919876543210", order.CustomerContact)
}

func TestCreateOrderSalePriceOverride(t *testing.T) {
	svc, db := newTestService(t)
	product := seedShop(t, db)

	sale := 499.0
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("sale_price", sale).Error)

	resp, err := svc.CreateOrder(context.Background(), models.CatalogOrderRequest{
		Slug:            "ram-kirana",
		ProductID:       product.ID,
		Quantity:        2,
		CustomerContact: "+919876543210",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(499*100*2), resp.AmountMinorUnits)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, db := newTestService(t)
	product := seedShop(t, db)

	tests := []struct {
		name string
		req  models.CatalogOrderRequest
	}{
		{"zero quantity", models.CatalogOrderRequest{Slug: "ram-kirana", ProductID: product.ID, Quantity: 0, CustomerContact: "+919876543210"}},
		{"bad contact", models.CatalogOrderRequest{Slug: "ram-kirana", ProductID: product.ID, Quantity: 1, CustomerContact: "not-a-phone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tt.req)
			assert.True(t, domain.IsValidation(err))
		})
	}

	_, err := svc.CreateOrder(context.Background(), models.CatalogOrderRequest{
		Slug: "no-such-shop", ProductID: product.ID, Quantity: 1, CustomerContact: "+919876543210",
	})
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.CreateOrder(context.Background(), models.CatalogOrderRequest{
		Slug: "ram-kirana", ProductID: 9999, Quantity: 1, CustomerContact: "+919876543210",
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestVerifyIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	product := seedShop(t, db)

	resp, err := svc.CreateOrder(context.Background(), models.CatalogOrderRequest{
		Slug: "ram-kirana", ProductID: product.ID, Quantity: 1, CustomerContact: "+919876543210",
	})
	require.NoError(t, err)

	var order models.CatalogOrder
	require.NoError(t, db.Where("order_id = ?", resp.OrderID).First(&order).Error)

	req := models.CatalogVerifyRequest{
		CatalogOrderID: order.ID,
		OrderID:        resp.OrderID,
		PaymentID:      "pay_shop_1",
		Signature:      signFor(resp.OrderID, "pay_shop_1"),
	}

	applied, err := svc.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = svc.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, applied)

	// Different payment id against the finalized order is id confusion.
	applied, err = svc.Verify(context.Background(), models.CatalogVerifyRequest{
		CatalogOrderID: order.ID,
		OrderID:        resp.OrderID,
		PaymentID:      "pay_shop_2",
		Signature:      signFor(resp.OrderID, "pay_shop_2"),
	})
	assert.False(t, applied)
	assert.True(t, domain.IsAlreadyProcessed(err))
}

func TestVerifyTamperedSignature(t *testing.T) {
	svc, db := newTestService(t)
	product := seedShop(t, db)

	resp, err := svc.CreateOrder(context.Background(), models.CatalogOrderRequest{
		Slug: "ram-kirana", ProductID: product.ID, Quantity: 1, CustomerContact: "+919876543210",
	})
	require.NoError(t, err)

	var order models.CatalogOrder
	require.NoError(t, db.Where("order_id = ?", resp.OrderID).First(&order).Error)

	applied, err := svc.Verify(context.Background(), models.CatalogVerifyRequest{
		CatalogOrderID: order.ID,
		OrderID:        resp.OrderID,
		PaymentID:      "pay_shop_1",
		Signature:      "deadbeef",
	})
	assert.False(t, applied)
	assert.True(t, domain.IsSignatureMismatch(err))

	require.NoError(t, db.Where("order_id = ?", resp.OrderID).First(&order).Error)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.Nil(t, order.PaymentID)
}

func TestVerifyNeverTouchesSubscriptions(t *testing.T) {
	svc, db := newTestService(t)
	product := seedShop(t, db)

	resp, err := svc.CreateOrder(context.Background(), models.CatalogOrderRequest{
		Slug: "ram-kirana", ProductID: product.ID, Quantity: 1, CustomerContact: "+919876543210",
	})
	require.NoError(t, err)

	var order models.CatalogOrder
	require.NoError(t, db.Where("order_id = ?", resp.OrderID).First(&order).Error)

	_, err = svc.Verify(context.Background(), models.CatalogVerifyRequest{
		CatalogOrderID: order.ID,
		OrderID:        resp.OrderID,
		PaymentID:      "pay_shop_1",
		Signature:      signFor(resp.OrderID, "pay_shop_1"),
	})
	require.NoError(t, err)

	var subs int64
	db.Model(&models.Subscription{}).Count(&subs)
	assert.Zero(t, subs)
}

func TestNormalizeContact(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+919876543210", "+919876543210", false},
		{"9876543210", "+919876543210", false},
		{"98765", "", true},
		{"hello", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeContact(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
