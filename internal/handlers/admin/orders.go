package admin

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"cedra_storefront/internal/middleware"
	"cedra_storefront/internal/orders"

	"github.com/gin-gonic/gin"
)

const defaultOrdersLimit = 100

// StatusNotifier prévient le client après un changement de statut.
type StatusNotifier interface {
	OrderStatusChanged(ctx context.Context, o orders.Order)
}

// OrdersHandler : back-office des commandes (rôle admin requis).
type OrdersHandler struct {
	orders   *orders.Repository
	notifier StatusNotifier
}

// NewOrdersHandler ; notifier peut être nil.
func NewOrdersHandler(repo *orders.Repository, notifier StatusNotifier) *OrdersHandler {
	return &OrdersHandler{orders: repo, notifier: notifier}
}

// 📋 GET /api/admin/orders?limit=100
func (h *OrdersHandler) ListOrders(c *gin.Context) {
	limit := defaultOrdersLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre limit invalide"})
			return
		}
		limit = n
	}

	list, err := h.orders.ListAll(c.Request.Context(), limit)
	if err != nil {
		log.Printf("❌ Liste des commandes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commandes"})
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

// 🚚 PATCH /api/admin/orders/:id/status
func (h *OrdersHandler) UpdateOrderStatus(c *gin.Context) {
	var input struct {
		Status         string `json:"status" binding:"required"`
		TrackingNumber string `json:"tracking_number"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut requis"})
		return
	}

	status, ok := orders.ParseStatus(input.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut inconnu: " + input.Status})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), status, input.TrackingNumber)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	case errors.Is(err, orders.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, orders.ErrTrackingRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Printf("❌ Mise à jour du statut de %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour commande"})
		return
	}

	admin := middleware.CurrentIdentity(c)
	if admin != nil {
		log.Printf("✅ Commande %s passée à %s par %s", order.OrderNumber, order.Status, admin.ID)
	}
	if h.notifier != nil {
		h.notifier.OrderStatusChanged(c.Request.Context(), order)
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
