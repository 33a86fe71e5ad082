package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// Soumissions de paiement par identité et par minute
	PaymentMaxAttempts = 5
	PaymentWindow      = 1 * time.Minute

	// Requêtes générales par IP et par minute
	APIMaxRequests = 100
	APIWindow      = 1 * time.Minute

	// Appels aux endpoints de la passerelle par identité et par minute
	GatewayMaxRequests = 30
	GatewayWindow      = 1 * time.Minute
)

// PaymentRateLimit limite les soumissions de paiement par identité (anti double-clic).
func PaymentRateLimit(client *redis.Client) gin.HandlerFunc {
	return limit(client, PaymentMaxAttempts, PaymentWindow, func(c *gin.Context) string {
		userID := c.GetString("user_id")
		if userID == "" {
			return ""
		}
		return "checkout_pay:" + userID
	}, "Trop de tentatives de paiement. Réessayez dans 1 minute")
}

// GatewayRateLimit limite les appels aux endpoints de confiance par identité.
// Le tunnel les appelle depuis le serveur lui-même : une limite par IP les bloquerait pour tout le monde.
func GatewayRateLimit(client *redis.Client) gin.HandlerFunc {
	return limit(client, GatewayMaxRequests, GatewayWindow, func(c *gin.Context) string {
		userID := c.GetString("user_id")
		if userID == "" {
			return ""
		}
		return "gateway_requests:" + userID
	}, "Trop de requêtes de paiement. Réessayez dans 1 minute")
}

// APIRateLimit limite le nombre de requêtes par IP (général)
func APIRateLimit(client *redis.Client) gin.HandlerFunc {
	return limit(client, APIMaxRequests, APIWindow, func(c *gin.Context) string {
		return "api_requests:" + c.ClientIP()
	}, "Trop de requêtes. Réessayez dans 1 minute")
}

func limit(client *redis.Client, max int, window time.Duration, keyOf func(*gin.Context) string, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyOf(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		requests, _ := client.Get(ctx, key).Int()
		if requests >= max {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       message,
				"code":        "rate_limited",
				"retry_after": int(window.Seconds()),
			})
			c.Abort()
			return
		}

		pipe := client.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Redis indisponible : on laisse passer
			log.Printf("⚠️ Rate limit %s: %v", key, err)
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", max))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", max-requests-1))
		c.Next()
	}
}
