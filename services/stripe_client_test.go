package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v80"
)

func TestSettlementIdempotencyKey_Deterministic(t *testing.T) {
	// The key depends only on the request id, so a record revisited after a
	// notify or commit failure resubmits the same key and Stripe replays the
	// original intent instead of charging again.
	assert.Equal(t, settlementIdempotencyKey("req-1"), settlementIdempotencyKey("req-1"))
	assert.Equal(t, "settle-req-1", settlementIdempotencyKey("req-1"))
	assert.NotEqual(t, settlementIdempotencyKey("req-1"), settlementIdempotencyKey("req-2"))
}

func TestClassifyStripeError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"card declined", &stripe.Error{Code: stripe.ErrorCodeCardDeclined}, ChargeKindCardDeclined},
		{"card error type", &stripe.Error{Type: stripe.ErrorTypeCard}, ChargeKindCardDeclined},
		{"invalid request", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest}, ChargeKindInvalidRequest},
		{"api error", &stripe.Error{Type: stripe.ErrorTypeAPI}, ChargeKindNetwork},
		{"plain network error", errors.New("connection reset"), ChargeKindNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyStripeError(tc.err))
		})
	}
}

func TestChargeErrorKind(t *testing.T) {
	declined := &ChargeError{Kind: ChargeKindCardDeclined, Err: errors.New("declined")}
	assert.Equal(t, ChargeKindCardDeclined, ChargeErrorKind(declined))
	assert.Equal(t, ChargeKindOther, ChargeErrorKind(errors.New("something else")))
}
