package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// ComputeSignature returns the hex HMAC-SHA256 of "orderID|paymentID" under
// the given secret. This is the payload format Razorpay signs for checkout
// callbacks.
func ComputeSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the expected signature for (orderID, paymentID)
// against the supplied value in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := ComputeSignature(secret, orderID, paymentID)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ComputeWebhookSignature returns the hex HMAC-SHA256 of a raw webhook body
// under the endpoint secret. Webhook events are signed over the exact bytes
// delivered, so callers must pass the body unmodified.
func ComputeWebhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature compares the expected body signature against the
// supplied value in constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	expected := ComputeWebhookSignature(secret, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
