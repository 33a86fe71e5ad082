package user

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"cedra_storefront/internal/middleware"
	"cedra_storefront/internal/orders"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orders *orders.Repository
}

func NewOrderHandler(repo *orders.Repository) *OrderHandler {
	return &OrderHandler{orders: repo}
}

// ✅ GET /api/orders/mine : commandes de l'utilisateur connecté, les plus récentes d'abord
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if !identity.Valid() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	list, err := h.orders.FindByEmail(c.Request.Context(), identity.Email)
	if err != nil {
		log.Println("❌ Erreur récupération commandes:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commandes"})
		return
	}
	if list == nil {
		list = []orders.Order{}
	}

	log.Printf("✅ %d commandes trouvées pour user %s", len(list), identity.ID)
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// ✅ GET /api/orders/:number
func (h *OrderHandler) GetOrderByNumber(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if !identity.Valid() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	order, err := h.orders.FindByNumber(c.Request.Context(), c.Param("number"))
	if errors.Is(err, orders.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if err != nil {
		log.Println("❌ Erreur lecture commande:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commande"})
		return
	}

	// Sécurité : la commande doit appartenir à l'utilisateur (réponse identique à une commande absente)
	if !ownsOrder(identity.ID, identity.Email, order) && !identity.IsAdmin() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func ownsOrder(identityID, email string, o orders.Order) bool {
	if o.IdentityID != "" && o.IdentityID == identityID {
		return true
	}
	return email != "" && strings.EqualFold(o.ContactEmail(), email)
}
