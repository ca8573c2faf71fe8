package domain

import "errors"

var (
	ErrMissingSignature     = errors.New("missing stripe signature header")
	ErrMissingWebhookSecret = errors.New("stripe webhook secret is not configured")
	ErrInvalidSignature     = errors.New("invalid stripe signature")
	ErrInvalidPayload       = errors.New("invalid event payload")
	ErrMalformedEvent       = errors.New("malformed event object")
)

// IsVerificationError reports errors raised before an event is trusted.
// They are answered with a 4xx and never retried or dead-lettered.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrMissingWebhookSecret) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrInvalidPayload)
}
