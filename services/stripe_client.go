package services

import (
	"context"
	"errors"
	"fmt"

	"settlement-service/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/customer"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/setupintent"
)

// Charge failure kinds, mapped from Stripe error codes. A declined card is an
// expected business outcome, not a system fault.
const (
	ChargeKindCardDeclined   = "card_declined"
	ChargeKindInvalidRequest = "invalid_request"
	ChargeKindNetwork        = "network"
	ChargeKindOther          = "other"
)

// ChargeError carries the failure classification alongside the gateway error.
type ChargeError struct {
	Kind string
	Err  error
}

func (e *ChargeError) Error() string {
	return fmt.Sprintf("charge failed (%s): %v", e.Kind, e.Err)
}

func (e *ChargeError) Unwrap() error { return e.Err }

// ChargeErrorKind extracts the classification from an error chain, defaulting
// to "other" for anything that is not a ChargeError.
func ChargeErrorKind(err error) string {
	var ce *ChargeError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ChargeKindOther
}

type StripeService struct {
	SecretKey string
}

func NewStripeService(secretKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey}
}

// settlementIdempotencyKey derives a stable key from the request id so that a
// resubmitted settlement (notify or commit failed last cycle) cannot charge
// the card twice. Stripe replays the original PaymentIntent for a repeated key.
func settlementIdempotencyKey(requestID string) string {
	return "settle-" + requestID
}

// CreateOffSessionCharge confirms a one-time charge against a saved payment
// method with the platform fee retained and the remainder transferred to the
// payee's connected account.
func (s *StripeService) CreateOffSessionCharge(ctx context.Context, p models.ChargeParams) (*models.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(p.AmountMinor),
		Currency:             stripe.String(string(stripe.CurrencyUSD)),
		Customer:             stripe.String(p.CustomerID),
		PaymentMethod:        stripe.String(p.PaymentMethodID),
		Confirm:              stripe.Bool(true),
		OffSession:           stripe.Bool(true),
		ApplicationFeeAmount: stripe.Int64(p.FeeMinor),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(p.Destination),
		},
	}
	params.Context = ctx
	params.AddMetadata("request_id", p.RequestID)
	key := p.IdempotencyKey
	if key == "" {
		key = settlementIdempotencyKey(p.RequestID)
	}
	params.SetIdempotencyKey(key)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, &ChargeError{Kind: classifyStripeError(err), Err: err}
	}

	return &models.ChargeResult{ChargeID: pi.ID, Status: string(pi.Status)}, nil
}

// CreateSettlementCustomer creates the Stripe customer a requester's card is
// saved against. Email is optional.
func (s *StripeService) CreateSettlementCustomer(ctx context.Context, email, requestID, songName, timestamp string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("request_id", requestID)
	params.AddMetadata("song_name", songName)
	params.AddMetadata("timestamp", timestamp)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCardSetupIntent opens a SetupIntent so the requester's payment method
// can be collected for later off-session use.
func (s *StripeService) CreateCardSetupIntent(ctx context.Context, customerID string) (string, error) {
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "cashapp"}),
	}
	params.Context = ctx

	si, err := setupintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create setup intent: %w", err)
	}
	return si.ClientSecret, nil
}

// CreateRequestFeeIntent charges the flat request fee up front, with the same
// 20% platform split as the settlement charge.
func (s *StripeService) CreateRequestFeeIntent(ctx context.Context, customerID string, feeCents int64, destination string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(feeCents),
		Currency:             stripe.String(string(stripe.CurrencyUSD)),
		Customer:             stripe.String(customerID),
		PaymentMethodTypes:   stripe.StringSlice([]string{"card", "cashapp"}),
		ApplicationFeeAmount: stripe.Int64(PlatformFee(feeCents)),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(destination),
		},
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create fee intent: %w", err)
	}
	return pi.ClientSecret, nil
}

func classifyStripeError(err error) string {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return ChargeKindNetwork
	}
	switch {
	case stripeErr.Code == stripe.ErrorCodeCardDeclined:
		return ChargeKindCardDeclined
	case stripeErr.Type == stripe.ErrorTypeCard:
		return ChargeKindCardDeclined
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
		return ChargeKindInvalidRequest
	case stripeErr.Type == stripe.ErrorTypeAPI:
		return ChargeKindNetwork
	default:
		return ChargeKindOther
	}
}
