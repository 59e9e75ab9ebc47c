// Package gateway isolates payment-provider specifics (signature and field
// formats) behind a small polymorphic interface. Billing code never branches
// on provider identity.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrRecurringUnsupported is returned by one-time-only providers when asked
// for a remote subscription resource.
var ErrRecurringUnsupported = errors.New("provider does not support recurring subscriptions")

// RefKind tags a gateway reference
type RefKind string

// Gateway reference kinds
const (
	RefRecurring RefKind = "recurring"
	RefOneTime   RefKind = "one_time"
)

// Ref is an explicit tagged reference to a gateway-side resource, replacing
// the string-prefix sniffing the legacy system used to tell subscription ids
// from order ids.
type Ref struct {
	Kind RefKind
	ID   string
}

// RecurringRef builds a reference to a gateway-managed subscription
func RecurringRef(subscriptionID string) Ref {
	return Ref{Kind: RefRecurring, ID: subscriptionID}
}

// OneTimeRef builds a reference to a one-time gateway order
func OneTimeRef(orderID string) Ref {
	return Ref{Kind: RefOneTime, ID: orderID}
}

// RecurringStatus is the authoritative state of a gateway-managed
// subscription.
type RecurringStatus struct {
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	NextDueDate *time.Time
}

// Adapter abstracts one concrete payment provider
type Adapter interface {
	// CreateOrder opens a gateway order for the given amount in minor
	// currency units and returns the gateway-issued order id.
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency string, meta map[string]string) (string, error)

	// VerifySignature recomputes the provider's payment signature for
	// (orderID, paymentID) and compares it against the supplied value in
	// constant time.
	VerifySignature(orderID, paymentID, signature string) bool

	// FetchRecurringStatus returns the authoritative status of a recurring
	// subscription. One-time-only providers return ErrRecurringUnsupported.
	FetchRecurringStatus(ctx context.Context, subscriptionID string) (*RecurringStatus, error)

	// PublicKey is the publishable key the checkout widget needs
	PublicKey() string
}
