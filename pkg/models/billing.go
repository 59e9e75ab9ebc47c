package models

import "time"

// Subscription statuses
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusFree     = "free"
)

// Gateway kinds
const (
	GatewayKindNone      = "none"
	GatewayKindRecurring = "recurring"
	GatewayKindOneTime   = "one_time"
)

// Order statuses shared by PendingPaymentOrder and CatalogOrder
const (
	OrderStatusCreated  = "created"
	OrderStatusVerified = "verified"
	OrderStatusFailed   = "failed"
)

// Subscription is the durable record of a user's current plan. One logical
// row per user; written only by the payment verifier and the reconciliation
// sync.
type Subscription struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Plan                  string     `gorm:"type:varchar(20);not null;default:free" json:"plan"`
	Status                string     `gorm:"type:varchar(20);not null;default:active" json:"status"`
	CurrentPeriodStart    time.Time  `json:"current_period_start"`
	CurrentPeriodEnd      time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd     bool       `gorm:"default:false" json:"cancel_at_period_end"`
	BillingDurationMonths int        `gorm:"default:0" json:"billing_duration_months"`
	AmountPaid            float64    `gorm:"default:0" json:"amount_paid"`
	GatewayKind           string     `gorm:"type:varchar(20);not null;default:none" json:"gateway_kind"`
	GatewaySubscriptionID *string    `gorm:"type:varchar(100)" json:"gateway_subscription_id,omitempty"`
	GatewayOrderID        *string    `gorm:"type:varchar(100)" json:"gateway_order_id,omitempty"`
	GatewayPaymentID      *string    `gorm:"type:varchar(100)" json:"gateway_payment_id,omitempty"`
	NextDueDate           *time.Time `json:"next_due_date,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PendingPaymentOrder anchors a subscription checkout before the gateway
// widget opens. A verify callback referencing an order id that has no row
// here is rejected outright.
type PendingPaymentOrder struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	OrderID                string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_id"`
	UserID                 uint      `gorm:"not null;index" json:"user_id"`
	IntendedPlan           string    `gorm:"type:varchar(20);not null" json:"intended_plan"`
	IntendedDurationMonths int       `gorm:"not null" json:"intended_duration_months"`
	AmountMinorUnits       int64     `gorm:"not null" json:"amount_minor_units"`
	Currency               string    `gorm:"type:varchar(10);not null" json:"currency"`
	Status                 string    `gorm:"type:varchar(20);not null;default:created;index" json:"status"`
	PaymentID              *string   `gorm:"type:varchar(100)" json:"payment_id,omitempty"`
	Receipt                string    `gorm:"type:varchar(64)" json:"receipt"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CatalogOrder is a storefront checkout, independent of Subscription. Same
// verification contract as PendingPaymentOrder but never touches plan state.
type CatalogOrder struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrderID          string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_id"`
	ShopSlug         string    `gorm:"type:varchar(100);not null;index" json:"shop_slug"`
	ProductID        uint      `gorm:"not null" json:"product_id"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	UnitPrice        float64   `gorm:"not null" json:"unit_price"`
	AmountMinorUnits int64     `gorm:"not null" json:"amount_minor_units"`
	Currency         string    `gorm:"type:varchar(10);not null" json:"currency"`
	CustomerContact  string    `gorm:"type:varchar(100)" json:"customer_contact"`
	Status           string    `gorm:"type:varchar(20);not null;default:created;index" json:"status"`
	PaymentID        *string   `gorm:"type:varchar(100)" json:"payment_id,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreateOrderRequest opens a subscription checkout
type CreateOrderRequest struct {
	Plan           string `json:"plan" validate:"required,oneof=starter pro business"`
	DurationMonths int    `json:"duration_months" validate:"required,min=1,max=36"`
}

// CreateOrderResponse is returned to the checkout widget
type CreateOrderResponse struct {
	OrderID          string `json:"order_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	GatewayPublicKey string `json:"gateway_public_key,omitempty"`
}

// VerifyRequest carries a completed-payment callback
type VerifyRequest struct {
	OrderID        string `json:"order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
	Plan           string `json:"plan,omitempty"`
	DurationMonths int    `json:"duration_months,omitempty"`
}

// VerifyResponse reports whether the payment was applied
type VerifyResponse struct {
	Applied bool `json:"applied"`
}

// GatewayWebhookEvent is the envelope the gateway posts to the webhook
// endpoint. Only payment events are decoded; other event types keep the
// same outer shape and are acknowledged untouched.
type GatewayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// CatalogOrderRequest opens a storefront checkout
type CatalogOrderRequest struct {
	Slug            string `json:"slug" validate:"required"`
	ProductID       uint   `json:"product_id" validate:"required"`
	Quantity        int    `json:"quantity" validate:"required,min=1"`
	CustomerContact string `json:"customer_contact" validate:"required"`
}

// CatalogVerifyRequest verifies a storefront payment callback
type CatalogVerifyRequest struct {
	CatalogOrderID uint   `json:"catalog_order_id" validate:"required"`
	OrderID        string `json:"order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

// PlanOverrideRequest is the staff-only plan override payload
type PlanOverrideRequest struct {
	Plan           string `json:"plan" validate:"required,oneof=free starter pro business"`
	DurationMonths int    `json:"duration_months" validate:"min=0,max=36"`
}

// UsageInfo reports quota consumption against the current plan
type UsageInfo struct {
	Plan              string `json:"plan"`
	Customers         int64  `json:"customers"`
	MaxCustomers      int    `json:"max_customers"`
	InvoicesThisMonth int64  `json:"invoices_this_month"`
	MaxInvoicesMonth  int    `json:"max_invoices_per_month"`
}

// PricingTier describes one plan for the pricing page
type PricingTier struct {
	Name                string   `json:"name"`
	Price               int      `json:"price"`
	MaxCustomers        int      `json:"max_customers"`
	MaxInvoicesPerMonth int      `json:"max_invoices_per_month"`
	Features            []string `json:"features"`
}

// PricingResponse lists all tiers
type PricingResponse struct {
	Tiers []PricingTier `json:"tiers"`
}
