package webhook

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
)

// DefaultTolerance is how far a signature timestamp may drift from now.
const DefaultTolerance = 5 * time.Minute

// Verifier authenticates provider callbacks against the shared webhook secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(cfg config.Config) *Verifier {
	tolerance := cfg.Stripe.WebhookTolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		secret:    strings.TrimSpace(cfg.Stripe.WebhookSecret),
		tolerance: tolerance,
	}
}

// Verify checks the signature over the exact request body and returns the
// event it carries. The body is kept verbatim as the event payload.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (domain.IncomingEvent, error) {
	if v.secret == "" {
		return domain.IncomingEvent{}, domain.ErrMissingWebhookSecret
	}
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" {
		return domain.IncomingEvent{}, domain.ErrMissingSignature
	}

	event, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, stripewebhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.IncomingEvent{}, classifyVerifyError(err)
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(string(event.Type)) == "" {
		return domain.IncomingEvent{}, fmt.Errorf("%w: event id and type are required", domain.ErrInvalidPayload)
	}

	in := domain.IncomingEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Payload: append([]byte(nil), payload...),
	}
	if event.Created > 0 {
		in.Created = time.Unix(event.Created, 0).UTC()
	}
	if event.Data != nil {
		in.Object = event.Data.Raw
	}
	return in, nil
}

func classifyVerifyError(err error) error {
	switch {
	case errors.Is(err, stripewebhook.ErrNotSigned):
		return domain.ErrMissingSignature
	case errors.Is(err, stripewebhook.ErrInvalidHeader),
		errors.Is(err, stripewebhook.ErrNoValidSignature),
		errors.Is(err, stripewebhook.ErrTooOld):
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
}
