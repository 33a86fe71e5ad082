package gateway

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"cedra_storefront/internal/middleware"
	"cedra_storefront/internal/repository"

	"github.com/gin-gonic/gin"
)

// Handler sert les deux endpoints de confiance appelés pendant le paiement.
type Handler struct {
	provider Provider
	receipts *ReceiptCache
	ledger   *Ledger
	currency string
}

func NewHandler(provider Provider, receipts *ReceiptCache, ledger *Ledger, currency string) *Handler {
	return &Handler{provider: provider, receipts: receipts, ledger: ledger, currency: currency}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

// CreateOrder : POST /api/create-razorpay-order
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide: le montant doit être un entier en paise"})
		return
	}
	req.Receipt = strings.TrimSpace(req.Receipt)

	switch {
	case req.Amount <= 0:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Montant invalide"})
		return
	case req.Currency != h.currency:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Devise non supportée: " + req.Currency})
		return
	case req.Receipt == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reçu manquant"})
		return
	}

	ctx := c.Request.Context()
	identity := middleware.CurrentIdentity(c)

	cached, err := h.receipts.Lookup(ctx, req.Receipt, req.Amount)
	if errors.Is(err, ErrReceiptConflict) {
		log.Printf("⚠️ %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": "Ce numéro de commande a déjà été utilisé pour un autre montant"})
		return
	}
	if err != nil {
		log.Printf("❌ Cache des reçus: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	if cached != nil {
		log.Printf("ℹ️ Reçu %s déjà associé à l'ordre %s, réutilisé", req.Receipt, cached.ID)
		c.JSON(http.StatusOK, gin.H{"order": cached})
		return
	}

	notes := req.Notes
	if notes == nil {
		notes = map[string]string{}
	}
	if identity != nil {
		notes["identity_id"] = identity.ID
	}

	order, err := h.provider.CreateOrder(ctx, CreateOrderInput{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    notes,
	})
	if err != nil {
		log.Printf("❌ Erreur %s: %v", h.provider.Name(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Impossible de créer le paiement"})
		return
	}

	order, err = h.receipts.Remember(ctx, order)
	if err != nil {
		log.Printf("⚠️ Reçu %s non mémorisé: %v", req.Receipt, err)
	}

	attempt := Attempt{
		ID:       order.ID,
		Receipt:  order.Receipt,
		Amount:   order.Amount,
		Currency: order.Currency,
		Provider: h.provider.Name(),
	}
	if identity != nil {
		attempt.IdentityID = identity.ID
	}
	if err := h.ledger.Record(ctx, attempt); err != nil {
		log.Printf("⚠️ Tentative %s non tracée: %v", order.ID, err)
	}

	log.Printf("💳 Ordre %s créé : %d %s pour le reçu %s", order.ID, order.Amount, order.Currency, order.Receipt)
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// VerifySignature : POST /api/verify-razorpay-signature
func (h *Handler) VerifySignature(c *gin.Context) {
	var req VerifyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "razorpay_order_id, razorpay_payment_id et razorpay_signature requis"})
		return
	}

	ctx := c.Request.Context()
	identity := middleware.CurrentIdentity(c)

	attempt, err := h.ledger.Get(ctx, req.OrderID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		log.Printf("⚠️ Vérification d'un ordre inconnu du registre: %s", req.OrderID)
	case err != nil:
		log.Printf("⚠️ Lecture tentative %s: %v", req.OrderID, err)
	case identity != nil && attempt.IdentityID != "" && attempt.IdentityID != identity.ID:
		log.Printf("🚨 Ordre %s vérifié par %s au lieu de %s", req.OrderID, identity.ID, attempt.IdentityID)
		h.mark(c, req, AttemptVerificationFailed)
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	valid, err := h.provider.VerifyPayment(ctx, req)
	if err != nil {
		log.Printf("❌ Vérification %s impossible: %v", req.OrderID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Vérification impossible"})
		return
	}

	if valid {
		h.mark(c, req, AttemptVerified)
		log.Printf("✅ Signature valide pour %s (payment_id=%s)", req.OrderID, req.PaymentID)
	} else {
		h.mark(c, req, AttemptVerificationFailed)
		log.Printf("🚨 Signature invalide pour %s (payment_id=%s)", req.OrderID, req.PaymentID)
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// PendingAttempts : GET /api/admin/payment-attempts : tentatives jamais vérifiées.
func (h *Handler) PendingAttempts(c *gin.Context) {
	attempts, err := h.ledger.Pending(c.Request.Context(), time.Now().Add(-15*time.Minute))
	if err != nil {
		log.Printf("❌ Lecture des tentatives: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (h *Handler) mark(c *gin.Context, req VerifyInput, status AttemptStatus) {
	if err := h.ledger.Mark(c.Request.Context(), req.OrderID, status, req.PaymentID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("⚠️ Tentative %s non mise à jour: %v", req.OrderID, err)
	}
}
