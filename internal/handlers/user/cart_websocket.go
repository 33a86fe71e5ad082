package user

import (
	"context"
	"log"
	"net/http"
	"time"

	"cedra_storefront/internal/cart"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Subscriber fournit les notifications publiées après chaque écriture du panier.
type Subscriber interface {
	Subscribe(ctx context.Context, identityID string) *redis.PubSub
}

const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Les origines sont filtrées par le middleware CORS
		return true
	},
}

// 🔌 GET /api/cart/ws : synchronisation temps réel du panier entre onglets
func (h *CartHandler) CartWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non authentifié"})
		return
	}
	if h.subscriber == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Synchronisation indisponible"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Erreur upgrade WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.subscriber.Subscribe(ctx, userID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	// Fermeture côté client : on arrête la boucle
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(gin.H{"type": "connected", "message": "Synchronisation panier activée"}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload != cart.EventUpdated && msg.Payload != cart.EventCleared {
				continue
			}
			if err := conn.WriteJSON(h.snapshot(ctx, userID)); err != nil {
				log.Printf("❌ Erreur envoi WebSocket: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// snapshot renvoie l'état courant du panier au format du websocket.
func (h *CartHandler) snapshot(ctx context.Context, userID string) gin.H {
	s, err := h.carts.For(ctx, userID)
	if err != nil {
		log.Printf("⚠️ Lecture du panier %s pour le websocket: %v", userID, err)
		return gin.H{"type": "cart_updated", "items": []cart.Item{}, "total": 0, "count": 0}
	}
	body := cartBody(s)
	body["type"] = "cart_updated"
	return body
}
