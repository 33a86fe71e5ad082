package payement

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"cedra_storefront/internal/cart"
	"cedra_storefront/internal/checkout"
	"cedra_storefront/internal/middleware"
	"cedra_storefront/internal/orders"
	"cedra_storefront/internal/payment"

	"github.com/gin-gonic/gin"
)

const (
	// Durée maximale d'affichage de la fenêtre de paiement
	DefaultWidgetTimeout = 10 * time.Minute
	// Attente du résultat après le callback (vérification + écriture)
	callbackWait = 30 * time.Second
)

type payOutcome struct {
	order orders.Order
	err   error
}

// CheckoutHandler expose le tunnel de commande d'une identité.
// Le paiement tourne en arrière-plan : POST /pay renvoie la session de la fenêtre,
// le navigateur renvoie son issue sur POST /pay/callback.
type CheckoutHandler struct {
	sessions      *checkout.Sessions
	broker        *payment.Broker
	widgetTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan payOutcome
}

func NewCheckoutHandler(sessions *checkout.Sessions, broker *payment.Broker, widgetTimeout time.Duration) *CheckoutHandler {
	if widgetTimeout <= 0 {
		widgetTimeout = DefaultWidgetTimeout
	}
	return &CheckoutHandler{
		sessions:      sessions,
		broker:        broker,
		widgetTimeout: widgetTimeout,
		pending:       make(map[string]chan payOutcome),
	}
}

// machine retourne le tunnel de l'utilisateur connecté, ou répond 401/500.
func (h *CheckoutHandler) machine(c *gin.Context) (*checkout.Machine, bool) {
	identity := middleware.CurrentIdentity(c)
	if !identity.Valid() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": checkout.ErrNotAuthenticated.Error(), "code": "not_authenticated"})
		return nil, false
	}

	m, err := h.sessions.For(c.Request.Context(), identity.ID)
	if err != nil {
		log.Printf("❌ Ouverture du tunnel pour %s: %v", identity.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur chargement du panier"})
		return nil, false
	}
	return m, true
}

// 🟢 GET /api/checkout
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": m.View()})
}

// 🟢 POST /api/checkout/identify
func (h *CheckoutHandler) Identify(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.Identify(c.Request.Context(), middleware.CurrentIdentity(c)); err != nil {
		respondError(c, m, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": m.View()})
}

// 🟢 POST /api/checkout/shipping
func (h *CheckoutHandler) SubmitShipping(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}

	var input checkout.ShippingDetails
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	if err := m.SubmitShipping(c.Request.Context(), input); err != nil {
		respondError(c, m, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": m.View()})
}

// 🟢 POST /api/checkout/shipping/edit
func (h *CheckoutHandler) EditShipping(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.EditShipping(); err != nil {
		respondError(c, m, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": m.View()})
}

// 🟢 POST /api/checkout/buy-now
func (h *CheckoutHandler) BuyNow(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}

	var item cart.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	if err := m.BuyNow(item); err != nil {
		respondError(c, m, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": m.View()})
}

// 💳 POST /api/checkout/pay
// Lance le paiement et répond dès que la fenêtre doit s'ouvrir (202), ou
// directement avec l'issue si le paiement s'arrête avant (erreur, écriture rejouée).
func (h *CheckoutHandler) Pay(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	identity := middleware.CurrentIdentity(c)

	widget := payment.NewRemoteWidget(h.widgetTimeout)
	unregister, err := h.broker.Register(identity.ID, widget)
	if err != nil {
		respondError(c, m, checkout.ErrPaymentInProgress)
		return
	}

	done := make(chan payOutcome, 1)
	h.mu.Lock()
	h.pending[identity.ID] = done
	h.mu.Unlock()

	// Détaché de la requête : le paiement continue pendant que la fenêtre est ouverte
	ctx := payment.WithBearerToken(context.Background(), middleware.BearerToken(c))
	go func() {
		order, err := m.Pay(ctx, widget)
		// Retirée avant de publier l'issue : une nouvelle tentative peut suivre immédiatement
		unregister()
		done <- payOutcome{order: order, err: err}
	}()

	select {
	case session := <-widget.Sessions():
		log.Printf("💳 Fenêtre de paiement ouverte pour %s (ordre %s)", identity.ID, session.GatewayOrderID)
		c.JSON(http.StatusAccepted, gin.H{
			"status":   "awaiting_payment",
			"widget":   session,
			"checkout": m.View(),
		})
	case out := <-done:
		h.forget(identity.ID, done)
		h.respondOutcome(c, m, out)
	case <-c.Request.Context().Done():
	}
}

// 💳 POST /api/checkout/pay/callback
// Reçoit l'issue de la fenêtre (succès, abandon, échec) et attend la fin du paiement.
func (h *CheckoutHandler) PayCallback(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	identity := middleware.CurrentIdentity(c)

	var result payment.WidgetResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	switch result.Outcome {
	case payment.OutcomeSuccess, payment.OutcomeDismissed, payment.OutcomeFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Issue de paiement inconnue"})
		return
	}

	h.mu.Lock()
	done := h.pending[identity.ID]
	h.mu.Unlock()

	if err := h.broker.Deliver(identity.ID, result); err != nil {
		log.Printf("⚠️ Callback de paiement sans fenêtre en attente pour %s: %v", identity.ID, err)
		c.JSON(http.StatusConflict, gin.H{"error": "Aucun paiement en attente", "code": "no_pending_payment", "checkout": m.View()})
		return
	}
	if done == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "processing", "checkout": m.View()})
		return
	}

	timer := time.NewTimer(callbackWait)
	defer timer.Stop()

	select {
	case out := <-done:
		h.forget(identity.ID, done)
		h.respondOutcome(c, m, out)
	case <-timer.C:
		c.JSON(http.StatusAccepted, gin.H{"status": "processing", "checkout": m.View()})
	case <-c.Request.Context().Done():
	}
}

// 🟢 POST /api/checkout/continue
func (h *CheckoutHandler) ContinueShopping(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	if err := m.ContinueShopping(); err != nil {
		respondError(c, m, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": m.View()})
}

// 🗑️ DELETE /api/checkout
func (h *CheckoutHandler) Reset(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if !identity.Valid() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": checkout.ErrNotAuthenticated.Error(), "code": "not_authenticated"})
		return
	}

	if err := h.sessions.Drop(identity.ID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "payment_in_progress"})
		return
	}
	log.Printf("ℹ️ Tunnel de %s réinitialisé", identity.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Tunnel réinitialisé"})
}

func (h *CheckoutHandler) forget(identityID string, done chan payOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending[identityID] == done {
		delete(h.pending, identityID)
	}
}

func (h *CheckoutHandler) respondOutcome(c *gin.Context, m *checkout.Machine, out payOutcome) {
	if out.err != nil {
		respondError(c, m, out.err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "confirmed",
		"order":    out.order,
		"checkout": m.View(),
	})
}

// respondError traduit les erreurs du tunnel en réponses JSON ; l'état du tunnel
// est toujours joint pour que le client reste sur la bonne étape.
func respondError(c *gin.Context, m *checkout.Machine, err error) {
	view := m.View()

	var (
		validation  checkout.ValidationErrors
		intentErr   *payment.IntentCreationError
		failed      *payment.PaymentFailedError
		unverified  *payment.VerificationError
		persistence *checkout.PersistenceError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "invalid_shipping", "fields": validation, "checkout": view})
	case errors.Is(err, checkout.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "not_authenticated", "checkout": view})
	case errors.Is(err, checkout.ErrPaymentInProgress), errors.Is(err, payment.ErrHostBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "payment_in_progress", "checkout": view})
	case errors.Is(err, checkout.ErrWrongStep):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "wrong_step", "checkout": view})
	case errors.Is(err, checkout.ErrEmptyOrder), errors.Is(err, checkout.ErrNonPositiveTotal):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "invalid_order", "checkout": view})
	case errors.Is(err, cart.ErrInvalidItem):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_item", "checkout": view})
	case errors.Is(err, payment.ErrCancelledByUser):
		c.JSON(http.StatusOK, gin.H{"status": "cancelled", "message": err.Error(), "checkout": view})
	case errors.Is(err, payment.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": payment.ErrGatewayUnavailable.Error(), "code": "gateway_unavailable", "checkout": view})
	case errors.As(err, &intentErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Impossible de créer le paiement, réessayez", "code": "intent_creation_failed", "checkout": view})
	case errors.As(err, &unverified):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":             err.Error(),
			"code":              "verification_failed",
			"payment_reference": unverified.PaymentID,
			"checkout":          view,
		})
	case errors.As(err, &failed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error(), "code": "payment_failed", "reason": failed.Reason, "checkout": view})
	case errors.As(err, &persistence):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             err.Error(),
			"code":              "order_not_saved",
			"order_number":      persistence.OrderNumber,
			"payment_reference": persistence.PaymentReference,
			"checkout":          view,
		})
	default:
		log.Printf("❌ Erreur tunnel: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur", "checkout": view})
	}
}
