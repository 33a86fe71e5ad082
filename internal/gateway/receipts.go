package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ReceiptTTL = 24 * time.Hour

// ErrReceiptConflict : le reçu a déjà servi pour un autre montant.
var ErrReceiptConflict = errors.New("reçu déjà utilisé pour un autre montant")

// ReceiptCache mémorise le premier ordre créé pour chaque reçu (numéro de commande) :
// une nouvelle tentative reçoit le même ordre au lieu d'en créer un second.
type ReceiptCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReceiptCache(client *redis.Client) *ReceiptCache {
	return &ReceiptCache{client: client, ttl: ReceiptTTL}
}

func receiptKey(receipt string) string {
	return "gateway:receipt:" + receipt
}

// Lookup retourne l'ordre déjà créé pour ce reçu, ou nil.
func (r *ReceiptCache) Lookup(ctx context.Context, receipt string, amount int64) (*Order, error) {
	data, err := r.client.Get(ctx, receiptKey(receipt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lecture reçu %s: %w", receipt, err)
	}

	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		// Entrée corrompue : on la traite comme absente
		return nil, nil
	}
	if order.Amount != amount {
		return nil, fmt.Errorf("%w: %s (%d != %d)", ErrReceiptConflict, receipt, order.Amount, amount)
	}
	return &order, nil
}

// Remember enregistre l'ordre si aucun n'existe encore ; sinon retourne celui déjà stocké.
func (r *ReceiptCache) Remember(ctx context.Context, order Order) (Order, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return Order{}, err
	}

	stored, err := r.client.SetNX(ctx, receiptKey(order.Receipt), data, r.ttl).Result()
	if err != nil {
		return Order{}, fmt.Errorf("écriture reçu %s: %w", order.Receipt, err)
	}
	if stored {
		return order, nil
	}

	existing, err := r.Lookup(ctx, order.Receipt, order.Amount)
	if err != nil {
		return Order{}, err
	}
	if existing == nil {
		return order, nil
	}
	return *existing, nil
}
