package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func incoming(eventType, object string) IncomingEvent {
	return IncomingEvent{ID: "evt_1", Type: eventType, Object: json.RawMessage(object)}
}

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		eventType string
		object    string
		check     func(t *testing.T, ev Event)
	}{
		{EventTypePaymentSucceeded, `{"id":"pi_1","amount":5000,"amount_received":4500}`, func(t *testing.T, ev Event) {
			got, ok := ev.(PaymentSucceeded)
			require.True(t, ok)
			assert.Equal(t, "pi_1", got.Intent.ID)
			assert.Equal(t, int64(4500), got.Intent.AmountReceived)
		}},
		{EventTypePaymentCanceled, `{"id":"pi_2"}`, func(t *testing.T, ev Event) {
			assert.IsType(t, PaymentCanceled{}, ev)
		}},
		{EventTypePaymentFailed, `{"id":"pi_3"}`, func(t *testing.T, ev Event) {
			assert.IsType(t, PaymentFailed{}, ev)
		}},
		{EventTypeChargeRefunded, `{"id":"ch_1","amount_refunded":700}`, func(t *testing.T, ev Event) {
			got, ok := ev.(ChargeRefunded)
			require.True(t, ok)
			assert.Equal(t, int64(700), got.Charge.AmountRefunded)
		}},
		{EventTypeAccountUpdated, `{"id":"acct_1","payouts_enabled":true}`, func(t *testing.T, ev Event) {
			got, ok := ev.(AccountUpdated)
			require.True(t, ok)
			assert.True(t, got.Account.PayoutsEnabled)
		}},
		{EventTypePayoutPaid, `{"id":"po_1","amount":9000,"currency":"usd"}`, func(t *testing.T, ev Event) {
			got, ok := ev.(PayoutPaid)
			require.True(t, ok)
			assert.Equal(t, int64(9000), got.Payout.Amount)
		}},
		{EventTypePayoutFailed, `{"id":"po_2"}`, func(t *testing.T, ev Event) {
			assert.IsType(t, PayoutFailed{}, ev)
		}},
	}

	require.Len(t, cases, len(KnownEventTypes))
	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			in := incoming(tc.eventType, tc.object)
			ev, err := Decode(in)
			require.NoError(t, err)
			assert.Equal(t, in.ID, ev.Incoming().ID)
			tc.check(t, ev)
		})
	}
}

func TestDecodeUnknownTypeKeepsEvent(t *testing.T) {
	ev, err := Decode(incoming("customer.created", `not json at all`))
	require.NoError(t, err)

	got, ok := ev.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "customer.created", got.Incoming().Type)
}

func TestDecodeRejectsMalformedObjects(t *testing.T) {
	cases := map[string]IncomingEvent{
		"missing object": incoming(EventTypePaymentSucceeded, ""),
		"not json":       incoming(EventTypeChargeRefunded, `{"id":`),
		"missing id":     incoming(EventTypePayoutPaid, `{"amount":100}`),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestIsVerificationError(t *testing.T) {
	for _, err := range []error{ErrMissingSignature, ErrMissingWebhookSecret, ErrInvalidSignature, ErrInvalidPayload} {
		assert.True(t, IsVerificationError(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
	assert.False(t, IsVerificationError(ErrMalformedEvent))
}
