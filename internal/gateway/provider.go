package gateway

import (
	"context"
	"errors"
)

var ErrProviderUnavailable = errors.New("prestataire de paiement indisponible")

type CreateOrderInput struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order est l'ordre de paiement tel que renvoyé au navigateur.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type VerifyInput struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// Provider est le prestataire qui encaisse réellement.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error)
	// VerifyPayment retourne false si la signature ne correspond pas ; une erreur
	// signifie que la vérification n'a pas pu avoir lieu.
	VerifyPayment(ctx context.Context, in VerifyInput) (bool, error)
}
