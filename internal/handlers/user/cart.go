package user

import (
	"errors"
	"log"
	"net/http"

	"cedra_storefront/internal/cart"

	"github.com/gin-gonic/gin"
)

// CartHandler expose le panier de l'utilisateur connecté.
type CartHandler struct {
	carts      *cart.Registry
	subscriber Subscriber
}

// NewCartHandler ; subscriber peut être nil (pas de synchronisation websocket).
func NewCartHandler(carts *cart.Registry, subscriber Subscriber) *CartHandler {
	return &CartHandler{carts: carts, subscriber: subscriber}
}

func (h *CartHandler) store(c *gin.Context) (*cart.Store, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "non authentifié"})
		return nil, false
	}

	s, err := h.carts.For(c.Request.Context(), userID)
	if err != nil {
		log.Printf("❌ Chargement du panier de %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur chargement panier"})
		return nil, false
	}
	return s, true
}

func cartBody(s *cart.Store) gin.H {
	return gin.H{
		"items": s.Items(),
		"count": s.TotalItems(),
		"total": s.TotalPrice(),
	}
}

// 🟢 GET /api/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cartBody(s))
}

// 🟢 POST /api/cart/add
func (h *CartHandler) AddToCart(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}

	var input cart.Item
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	input.ID = ""

	item, err := s.Add(c.Request.Context(), input)
	if errors.Is(err, cart.ErrInvalidItem) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Article invalide"})
		return
	}
	if err != nil {
		log.Printf("❌ Ajout au panier: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour panier"})
		return
	}

	body := cartBody(s)
	body["item"] = item
	c.JSON(http.StatusOK, body)
}

// 🟡 PATCH /api/cart/items/:id
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}

	var input struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	if _, err := s.SetQuantity(c.Request.Context(), c.Param("id"), input.Quantity); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartBody(s))
}

// 🗑️ DELETE /api/cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	if err := s.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartBody(s))
}

// 🗑️ DELETE /api/cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	s, ok := h.store(c)
	if !ok {
		return
	}
	if err := s.Clear(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartBody(s))
}

func (h *CartHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, cart.ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article introuvable dans le panier"})
		return
	}
	log.Printf("❌ Mise à jour du panier: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour panier"})
}
