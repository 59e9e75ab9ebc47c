package gateway

import (
	"context"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/rahulmehra/vyaparhub/pkg/domain"
)

// Config holds the credentials shared by the Razorpay-backed adapters
type Config struct {
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// RazorpayOrders is a one-time-only provider: it opens gateway orders and
// verifies their payment signatures but manages no remote subscription
// resource.
type RazorpayOrders struct {
	client  *razorpay.Client
	keyID   string
	secret  string
	timeout time.Duration
}

// NewRazorpayOrders creates the one-time order adapter
func NewRazorpayOrders(cfg Config) *RazorpayOrders {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayOrders{
		client:  razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
		timeout: timeout,
	}
}

// CreateOrder opens a Razorpay order and returns its id
func (r *RazorpayOrders) CreateOrder(ctx context.Context, amountMinorUnits int64, currency string, meta map[string]string) (string, error) {
	data := map[string]interface{}{
		"amount":   amountMinorUnits,
		"currency": currency,
	}
	if receipt, ok := meta["receipt"]; ok {
		data["receipt"] = receipt
	}
	notes := map[string]interface{}{}
	for k, v := range meta {
		if k != "receipt" {
			notes[k] = v
		}
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := callWithTimeout(ctx, r.timeout, func() (map[string]interface{}, error) {
		return r.client.Order.Create(data, nil)
	})
	if err != nil {
		return "", err
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", domain.NewGatewayUnavailableError(fmt.Errorf("gateway order response missing id"))
	}
	return orderID, nil
}

// VerifySignature checks the checkout callback signature
func (r *RazorpayOrders) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(r.secret, orderID, paymentID, signature)
}

// FetchRecurringStatus is unsupported for one-time orders
func (r *RazorpayOrders) FetchRecurringStatus(ctx context.Context, subscriptionID string) (*RecurringStatus, error) {
	return nil, ErrRecurringUnsupported
}

// PublicKey returns the publishable key id
func (r *RazorpayOrders) PublicKey() string {
	return r.keyID
}

// RazorpaySubscriptions is the recurring-capable provider. Order creation and
// signature verification behave like the one-time adapter; in addition it can
// fetch the authoritative state of a gateway-managed subscription.
type RazorpaySubscriptions struct {
	RazorpayOrders
}

// NewRazorpaySubscriptions creates the recurring-capable adapter
func NewRazorpaySubscriptions(cfg Config) *RazorpaySubscriptions {
	return &RazorpaySubscriptions{RazorpayOrders: *NewRazorpayOrders(cfg)}
}

// FetchRecurringStatus pulls the subscription resource from the gateway
func (r *RazorpaySubscriptions) FetchRecurringStatus(ctx context.Context, subscriptionID string) (*RecurringStatus, error) {
	body, err := callWithTimeout(ctx, r.timeout, func() (map[string]interface{}, error) {
		return r.client.Subscription.Fetch(subscriptionID, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	status := &RecurringStatus{
		Status:      mapRecurringStatus(stringField(body, "status")),
		PeriodStart: unixField(body, "current_start"),
		PeriodEnd:   unixField(body, "current_end"),
	}
	if chargeAt := unixField(body, "charge_at"); !chargeAt.IsZero() {
		status.NextDueDate = &chargeAt
	}
	return status, nil
}

// mapRecurringStatus translates Razorpay subscription states to local ones
func mapRecurringStatus(s string) string {
	switch s {
	case "active", "authenticated", "resumed":
		return "active"
	case "pending", "halted":
		return "past_due"
	case "cancelled", "completed", "expired":
		return "canceled"
	default:
		return "active"
	}
}

func stringField(body map[string]interface{}, key string) string {
	v, _ := body[key].(string)
	return v
}

func unixField(body map[string]interface{}, key string) time.Time {
	v, ok := body[key].(float64)
	if !ok || v == 0 {
		return time.Time{}
	}
	return time.Unix(int64(v), 0)
}

// callWithTimeout runs a gateway call with a bounded deadline. The SDK takes
// no context, so the call runs in its own goroutine; on timeout the result is
// abandoned and the caller gets a transient gateway error.
func callWithTimeout(ctx context.Context, timeout time.Duration, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		body map[string]interface{}
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		body, err := fn()
		ch <- result{body, err}
	}()

	select {
	case <-ctx.Done():
		return nil, domain.NewGatewayUnavailableError(ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, domain.NewGatewayUnavailableError(res.err)
		}
		return res.body, nil
	}
}
