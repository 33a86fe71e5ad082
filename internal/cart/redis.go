package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const CartTTL = 30 * 24 * time.Hour // 30 jours

// Messages publiés sur le canal cart:<identité> après chaque écriture.
const (
	EventUpdated = "updated"
	EventCleared = "cleared"
)

// RedisPersistence stocke le panier en JSON et notifie les abonnés (websocket).
type RedisPersistence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPersistence(client *redis.Client) *RedisPersistence {
	return &RedisPersistence{client: client, ttl: CartTTL}
}

func (r *RedisPersistence) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisPersistence) Save(ctx context.Context, key string, data []byte) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, r.ttl)
	pipe.Publish(ctx, key, EventUpdated)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisPersistence) Delete(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Publish(ctx, key, EventCleared)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Subscribe s'abonne aux notifications du panier d'une identité.
func (r *RedisPersistence) Subscribe(ctx context.Context, identityID string) *redis.PubSub {
	return r.client.Subscribe(ctx, Key(identityID))
}

// Registry distribue un Store unique par identité pour tout le processus.
type Registry struct {
	mu      sync.Mutex
	persist Persistence
	stores  map[string]*Store
}

func NewRegistry(persist Persistence) *Registry {
	return &Registry{persist: persist, stores: make(map[string]*Store)}
}

// For retourne le panier de l'identité, hydraté au premier accès.
func (r *Registry) For(ctx context.Context, identityID string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[identityID]; ok {
		return s, nil
	}
	s, err := Open(ctx, r.persist, identityID)
	if err != nil {
		return nil, err
	}
	r.stores[identityID] = s
	return s, nil
}
