package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayProvider crée les ordres via l'API Razorpay et vérifie la signature
// HMAC du triplet order_id|payment_id.
type RazorpayProvider struct {
	client *razorpay.Client
	secret string
}

func NewRazorpayProvider(keyID, keySecret string) *RazorpayProvider {
	return &RazorpayProvider{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
	}
}

func (p *RazorpayProvider) Name() string { return "razorpay" }

func (p *RazorpayProvider) CreateOrder(_ context.Context, in CreateOrderInput) (Order, error) {
	notes := make(map[string]interface{}, len(in.Notes))
	for k, v := range in.Notes {
		notes[k] = v
	}

	body, err := p.client.Order.Create(map[string]interface{}{
		"amount":   in.Amount,
		"currency": in.Currency,
		"receipt":  in.Receipt,
		"notes":    notes,
	}, nil)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return Order{}, fmt.Errorf("%w: réponse sans id", ErrProviderUnavailable)
	}

	order := Order{ID: id, Amount: in.Amount, Currency: in.Currency, Receipt: in.Receipt}
	if amount, ok := body["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	if status, ok := body["status"].(string); ok {
		order.Status = status
	}
	return order, nil
}

func (p *RazorpayProvider) VerifyPayment(_ context.Context, in VerifyInput) (bool, error) {
	params := map[string]interface{}{
		"razorpay_order_id":   in.OrderID,
		"razorpay_payment_id": in.PaymentID,
	}
	return utils.VerifyPaymentSignature(params, in.Signature, p.secret), nil
}
