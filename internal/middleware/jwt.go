package middleware

import (
	"log"
	"net/http"
	"strings"

	"cedra_storefront/internal/auth"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthRequired vérifie le JWT Bearer émis par le service d'authentification et
// place l'identité dans le contexte Gin.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token manquant", "code": "not_authenticated"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("❌ Format Authorization invalide: %v parties", len(parts))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Format Authorization invalide", "code": "not_authenticated"})
			c.Abort()
			return
		}

		identity, err := auth.ParseToken(secret, parts[1])
		if err != nil {
			log.Printf("❌ Erreur parsing JWT: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token invalide", "code": "not_authenticated"})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Set("user_id", identity.ID)
		c.Set("email", identity.Email)
		c.Set("role", identity.Role)
		c.Set("token", parts[1])
		c.Next()
	}
}

// CurrentIdentity retourne l'identité posée par AuthRequired, ou nil.
func CurrentIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

// BearerToken retourne le jeton de la requête authentifiée.
func BearerToken(c *gin.Context) string {
	return c.GetString("token")
}
