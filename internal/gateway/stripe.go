package gateway

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
)

// StripeProvider : l'ordre est un PaymentIntent, la « signature » renvoyée par le
// navigateur est son client_secret. La vérification relit l'intent chez Stripe.
type StripeProvider struct{}

// NewStripeProvider initialise la clé globale Stripe.
func NewStripeProvider(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateOrder(_ context.Context, in CreateOrderInput) (Order, error) {
	metadata := map[string]string{"receipt": in.Receipt}
	for k, v := range in.Notes {
		metadata[k] = v
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: metadata,
	}
	params.SetIdempotencyKey("receipt-" + in.Receipt)

	intent, err := paymentintent.New(params)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return Order{
		ID:       intent.ID,
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
		Receipt:  in.Receipt,
		Status:   string(intent.Status),
	}, nil
}

func (p *StripeProvider) VerifyPayment(_ context.Context, in VerifyInput) (bool, error) {
	intent, err := paymentintent.Get(in.OrderID, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if subtle.ConstantTimeCompare([]byte(intent.ClientSecret), []byte(in.Signature)) != 1 {
		return false, nil
	}
	if in.PaymentID != intent.ID && (intent.LatestCharge == nil || intent.LatestCharge.ID != in.PaymentID) {
		return false, nil
	}
	return intent.Status == stripe.PaymentIntentStatusSucceeded, nil
}
