// Package payment wraps the Stripe PaymentIntent flow for order checkout.
package payment

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"sitesmith/api/internal/checkout"
)

// Intent is what the browser needs to collect payment.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

var (
	ErrNotSucceeded   = errors.New("payment has not succeeded")
	ErrAmountMismatch = errors.New("paid amount does not match order")
	ErrOrderMismatch  = errors.New("payment does not belong to this order")
)

type StripeGateway struct {
	configured bool
}

func NewStripeGateway(apiKey string) *StripeGateway {
	if apiKey == "" {
		return &StripeGateway{}
	}
	stripe.Key = apiKey
	return &StripeGateway{configured: true}
}

func (g *StripeGateway) IsConfigured() bool {
	return g.configured
}

// CreateIntent opens a PaymentIntent for a checkout handoff. The order id
// rides along as metadata so Verify can tie the payment back.
func (g *StripeGateway) CreateIntent(_ context.Context, handoff checkout.Handoff) (Intent, error) {
	if !g.configured {
		return Intent{}, errors.New("payment gateway not configured")
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(handoff.Amount),
		Currency:     stripe.String(handoff.Currency),
		ReceiptEmail: stripe.String(handoff.Contact.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", handoff.OrderID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("payment: create intent: %w", err)
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// Verify confirms a reported payment against Stripe's record: the intent
// must have succeeded, for the right amount, for the right order.
func (g *StripeGateway) Verify(_ context.Context, intentID, orderID string, amount int64) error {
	if !g.configured {
		return errors.New("payment gateway not configured")
	}

	pi, err := paymentintent.Get(intentID, nil)
	if err != nil {
		return fmt.Errorf("payment: fetch intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return ErrNotSucceeded
	}
	if pi.Amount != amount {
		return ErrAmountMismatch
	}
	if pi.Metadata["order_id"] != orderID {
		return ErrOrderMismatch
	}
	return nil
}
