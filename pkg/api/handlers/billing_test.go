package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rahulmehra/vyaparhub/pkg/billing"
	"github.com/rahulmehra/vyaparhub/pkg/database"
	"github.com/rahulmehra/vyaparhub/pkg/entitlement"
	"github.com/rahulmehra/vyaparhub/pkg/gateway"
	"github.com/rahulmehra/vyaparhub/pkg/logger"
	"github.com/rahulmehra/vyaparhub/pkg/metrics"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

const (
	fakeSecret        = "fake_secret"
	fakeWebhookSecret = "fake_webhook_secret"
)

// fakeGateway implements gateway.Adapter in memory
type fakeGateway struct {
	created int
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency string, meta map[string]string) (string, error) {
	f.created++
	return fmt.Sprintf("order_fake_%03d", f.created), nil
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.VerifySignature(fakeSecret, orderID, paymentID, signature)
}

func (f *fakeGateway) FetchRecurringStatus(ctx context.Context, subscriptionID string) (*gateway.RecurringStatus, error) {
	return nil, gateway.ErrRecurringUnsupported
}

func (f *fakeGateway) PublicKey() string {
	return "rzp_test_fake"
}

var testMetrics = metrics.New()

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupBillingHandler(t *testing.T) (*BillingHandler, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	gw := &fakeGateway{}
	log := logger.New("error")
	billingService := billing.NewService(db, gw, nil, log)
	entitlementService := entitlement.NewService(db)
	return NewBillingHandler(billingService, entitlementService, testMetrics, fakeWebhookSecret), db
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestCreateOrderHandler(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"pro","duration_months":3}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(1))

	err := h.CreateOrder(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order_fake_001", resp.OrderID)
	assert.Equal(t, int64(149700), resp.AmountMinorUnits)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_fake", resp.GatewayPublicKey)
}

func TestCreateOrderHandler_Unauthorized(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"pro","duration_months":1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateOrder(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderHandler_InvalidPlan(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"platinum","duration_months":1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(1))

	err := h.CreateOrder(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyHandler_AppliesPlan(t *testing.T) {
	h, db := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"starter","duration_months":1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(7))
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var order models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	sig := gateway.ComputeSignature(fakeSecret, order.OrderID, "pay_001")
	body := fmt.Sprintf(`{"order_id":%q,"payment_id":"pay_001","signature":%q}`, order.OrderID, sig)
	req = jsonRequest(http.MethodPost, "/api/v1/billing/verify", body)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set("user_id", uint(7))

	err := h.Verify(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Applied)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", 7).First(&sub).Error)
	assert.Equal(t, "starter", sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestVerifyHandler_BadSignature(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"starter","duration_months":1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(8))
	require.NoError(t, h.CreateOrder(c))

	var order models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	body := fmt.Sprintf(`{"order_id":%q,"payment_id":"pay_002","signature":"deadbeef"}`, order.OrderID)
	req = jsonRequest(http.MethodPost, "/api/v1/billing/verify", body)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set("user_id", uint(8))

	err := h.Verify(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The rejection reason stays generic
	assert.Contains(t, rec.Body.String(), "verification_failed")
	assert.NotContains(t, rec.Body.String(), "signature")
}

func TestVerifyHandler_UnknownOrder(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	body := `{"order_id":"order_missing","payment_id":"pay_x","signature":"abc"}`
	req := jsonRequest(http.MethodPost, "/api/v1/billing/verify", body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(9))

	err := h.Verify(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func webhookRequest(body string) *http.Request {
	req := jsonRequest(http.MethodPost, "/api/v1/billing/webhook", body)
	req.Header.Set("X-Razorpay-Signature", gateway.ComputeWebhookSignature(fakeWebhookSecret, []byte(body)))
	return req
}

func capturedEventBody(orderID, paymentID string) string {
	return fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`, paymentID, orderID)
}

func TestWebhookHandler_AppliesCapturedPayment(t *testing.T) {
	h, db := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"starter","duration_months":1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(21))
	require.NoError(t, h.CreateOrder(c))

	var order models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	// No user token on the request: the body signature alone authenticates it.
	rec = httptest.NewRecorder()
	c = e.NewContext(webhookRequest(capturedEventBody(order.OrderID, "pay_wh_001")), rec)

	err := h.Webhook(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", 21).First(&sub).Error)
	assert.Equal(t, "starter", sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

	var row models.PendingPaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&row).Error)
	assert.Equal(t, models.OrderStatusVerified, row.Status)
}

func TestWebhookHandler_TamperedSignature(t *testing.T) {
	h, db := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"starter","duration_months":1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(22))
	require.NoError(t, h.CreateOrder(c))

	var order models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	req = jsonRequest(http.MethodPost, "/api/v1/billing/webhook", capturedEventBody(order.OrderID, "pay_wh_002"))
	req.Header.Set("X-Razorpay-Signature", "deadbeef")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)

	err := h.Webhook(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "verification_failed")

	var row models.PendingPaymentOrder
	require.NoError(t, db.Where("order_id = ?", order.OrderID).First(&row).Error)
	assert.Equal(t, models.OrderStatusCreated, row.Status)
}

func TestWebhookHandler_RedeliveryAcknowledged(t *testing.T) {
	h, db := setupBillingHandler(t)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/api/v1/billing/order", `{"plan":"pro","duration_months":1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(23))
	require.NoError(t, h.CreateOrder(c))

	var order models.CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	body := capturedEventBody(order.OrderID, "pay_wh_003")
	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		c = e.NewContext(webhookRequest(body), rec)
		require.NoError(t, h.Webhook(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", 23).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhookHandler_IgnoresOtherEvents(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	body := `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_wh_004","order_id":"order_fake_001","status":"failed"}}}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(webhookRequest(body), rec)

	err := h.Webhook(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestWebhookHandler_UnknownOrderAcknowledged(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(webhookRequest(capturedEventBody("order_not_ours", "pay_wh_005")), rec)

	err := h.Webhook(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestGetSubscriptionHandler_DefaultFree(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(42))

	err := h.GetSubscription(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "free", sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestGetUsageHandler(t *testing.T) {
	h, db := setupBillingHandler(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Customer{UserID: 5, Name: fmt.Sprintf("c%d", i)}).Error)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/usage", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint(5))

	err := h.GetUsage(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var usage models.UsageInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, "free", usage.Plan)
	assert.Equal(t, int64(3), usage.Customers)
	assert.Equal(t, 50, usage.MaxCustomers)
}

func TestGetPricingHandler(t *testing.T) {
	h, _ := setupBillingHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/pricing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GetPricing(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var pricing models.PricingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pricing))
	require.Len(t, pricing.Tiers, 4)
	assert.Equal(t, "free", pricing.Tiers[0].Name)
	assert.Equal(t, 0, pricing.Tiers[0].Price)
	assert.Equal(t, "business", pricing.Tiers[3].Name)
	assert.Equal(t, 999, pricing.Tiers[3].Price)
}
