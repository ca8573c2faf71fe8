package domain

import (
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v81"
)

const (
	EventTypePaymentSucceeded = "payment_intent.succeeded"
	EventTypePaymentCanceled  = "payment_intent.canceled"
	EventTypePaymentFailed    = "payment_intent.payment_failed"
	EventTypeChargeRefunded   = "charge.refunded"
	EventTypeAccountUpdated   = "account.updated"
	EventTypePayoutPaid       = "payout.paid"
	EventTypePayoutFailed     = "payout.failed"
)

// KnownEventTypes lists every provider event type with an adapter.
var KnownEventTypes = []string{
	EventTypePaymentSucceeded,
	EventTypePaymentCanceled,
	EventTypePaymentFailed,
	EventTypeChargeRefunded,
	EventTypeAccountUpdated,
	EventTypePayoutPaid,
	EventTypePayoutFailed,
}

// IncomingEvent is a verified provider callback. It is never mutated after
// verification; Payload is the request body byte for byte.
type IncomingEvent struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
	Payload json.RawMessage
}

// DispatchResult is what the ingress endpoint reports back to the provider.
type DispatchResult struct {
	Handled bool   `json:"handled"`
	Type    string `json:"type"`
}

// Event is the closed set of event kinds the dispatcher understands.
// Only types in this package can implement it.
type Event interface {
	Incoming() IncomingEvent
	sealed()
}

type envelope struct {
	incoming IncomingEvent
}

func (e envelope) Incoming() IncomingEvent { return e.incoming }
func (envelope) sealed()                   {}

type PaymentSucceeded struct {
	envelope
	Intent stripe.PaymentIntent
}

type PaymentCanceled struct {
	envelope
	Intent stripe.PaymentIntent
}

type PaymentFailed struct {
	envelope
	Intent stripe.PaymentIntent
}

type ChargeRefunded struct {
	envelope
	Charge stripe.Charge
}

type AccountUpdated struct {
	envelope
	Account stripe.Account
}

type PayoutPaid struct {
	envelope
	Payout stripe.Payout
}

type PayoutFailed struct {
	envelope
	Payout stripe.Payout
}

// Unknown carries any event type without an adapter.
type Unknown struct {
	envelope
}

// Decode maps the event's type string onto its variant and parses the
// provider object for it. Unrecognized types decode to Unknown without error.
func Decode(in IncomingEvent) (Event, error) {
	env := envelope{incoming: in}
	switch in.Type {
	case EventTypePaymentSucceeded, EventTypePaymentCanceled, EventTypePaymentFailed:
		intent, err := decodeObject(in, func(pi *stripe.PaymentIntent) string { return pi.ID })
		if err != nil {
			return nil, err
		}
		switch in.Type {
		case EventTypePaymentSucceeded:
			return PaymentSucceeded{envelope: env, Intent: intent}, nil
		case EventTypePaymentCanceled:
			return PaymentCanceled{envelope: env, Intent: intent}, nil
		default:
			return PaymentFailed{envelope: env, Intent: intent}, nil
		}
	case EventTypeChargeRefunded:
		charge, err := decodeObject(in, func(ch *stripe.Charge) string { return ch.ID })
		if err != nil {
			return nil, err
		}
		return ChargeRefunded{envelope: env, Charge: charge}, nil
	case EventTypeAccountUpdated:
		account, err := decodeObject(in, func(acct *stripe.Account) string { return acct.ID })
		if err != nil {
			return nil, err
		}
		return AccountUpdated{envelope: env, Account: account}, nil
	case EventTypePayoutPaid, EventTypePayoutFailed:
		payout, err := decodeObject(in, func(po *stripe.Payout) string { return po.ID })
		if err != nil {
			return nil, err
		}
		if in.Type == EventTypePayoutPaid {
			return PayoutPaid{envelope: env, Payout: payout}, nil
		}
		return PayoutFailed{envelope: env, Payout: payout}, nil
	default:
		return Unknown{envelope: env}, nil
	}
}

func decodeObject[T any](in IncomingEvent, idOf func(*T) string) (T, error) {
	var obj T
	if len(in.Object) == 0 {
		return obj, fmt.Errorf("%w: %s has no data.object", ErrMalformedEvent, in.Type)
	}
	if err := json.Unmarshal(in.Object, &obj); err != nil {
		return obj, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, in.Type, err)
	}
	if idOf(&obj) == "" {
		return obj, fmt.Errorf("%w: %s object has no id", ErrMalformedEvent, in.Type)
	}
	return obj, nil
}
