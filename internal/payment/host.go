package payment

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Release défait tout ce qui a été mis en place pour afficher la fenêtre de paiement.
// Les appels suivants le premier sont sans effet.
type Release func()

// HostEnvironment prépare l'environnement d'accueil de la fenêtre de paiement.
type HostEnvironment interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// HostKey retourne la clé du verrou de fenêtre de paiement d'une identité.
func HostKey(identityID string) string {
	return "checkout:widget:" + identityID
}

// Supprime le verrou seulement s'il nous appartient encore.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisHost pose un verrou par identité : une seule fenêtre de paiement ouverte à la fois.
type RedisHost struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHost(client *redis.Client, ttl time.Duration) *RedisHost {
	return &RedisHost{client: client, ttl: ttl}
}

func (h *RedisHost) Acquire(ctx context.Context, identityID string) (Release, error) {
	key := HostKey(identityID)
	token := uuid.NewString()

	ok, err := h.client.SetNX(ctx, key, token, h.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("verrou fenêtre de paiement: %w", err)
	}
	if !ok {
		return nil, ErrHostBusy
	}

	return once(func() {
		// Le contexte de l'appel peut déjà être annulé à la libération
		if err := releaseScript.Run(context.Background(), h.client, []string{key}, token).Err(); err != nil {
			log.Printf("⚠️ Libération du verrou %s impossible: %v", key, err)
		}
	}), nil
}

// LocalHost est l'équivalent en mémoire, pour un seul processus.
type LocalHost struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalHost() *LocalHost {
	return &LocalHost{held: make(map[string]bool)}
}

func (h *LocalHost) Acquire(_ context.Context, identityID string) (Release, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.held[identityID] {
		return nil, ErrHostBusy
	}
	h.held[identityID] = true

	return once(func() {
		h.mu.Lock()
		delete(h.held, identityID)
		h.mu.Unlock()
	}), nil
}

func once(fn func()) Release {
	var o sync.Once
	return func() { o.Do(fn) }
}
