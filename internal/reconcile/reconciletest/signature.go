package reconciletest

import (
	"time"

	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
)

// SignatureHeader builds a Stripe-Signature header value for payload signed
// at the given unix timestamp.
func SignatureHeader(secret string, payload []byte, timestamp int64) string {
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Unix(timestamp, 0),
	})
	return signed.Header
}
