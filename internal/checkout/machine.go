package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"cedra_storefront/internal/auth"
	"cedra_storefront/internal/cart"
	"cedra_storefront/internal/orders"
	"cedra_storefront/internal/payment"
	"cedra_storefront/internal/profile"

	"github.com/google/uuid"
)

type Step string

const (
	StepIdentify        Step = "identify"
	StepShippingDetails Step = "shipping_details"
	StepPayment         Step = "payment"
	StepConfirmed       Step = "confirmed"
)

// Cart est le panier lu (et vidé) par le tunnel.
type Cart interface {
	Items() []cart.Item
	Clear(ctx context.Context) error
}

type Payer interface {
	Pay(ctx context.Context, req payment.Request, widget payment.Widget) (*payment.Confirmation, error)
}

type OrderCreator interface {
	Create(ctx context.Context, o orders.Order) (orders.Order, error)
}

type Profiles interface {
	Autofill(ctx context.Context, id *auth.Identity) (ShippingDetails, profile.Source)
	Save(ctx context.Context, id *auth.Identity, s ShippingDetails) (profile.Profile, error)
}

// Notifier est prévenu d'une commande confirmée (e-mail de confirmation).
type Notifier interface {
	OrderConfirmed(ctx context.Context, o orders.Order)
}

type Deps struct {
	Cart           Cart
	Payments       Payer
	Orders         OrderCreator
	Profiles       Profiles
	Notifier       Notifier
	Shipping       ShippingPolicy
	Currency       string
	PaymentMethod  string
	NewOrderNumber func() string
}

// NewOrderNumber : ORD-AAAAMMJJ-XXXXXXXX
func NewOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

type snapshot struct {
	step     Step
	shipping ShippingDetails
}

// Machine est le tunnel de commande d'une identité :
// Identify → ShippingDetails → Payment → Confirmed.
// Les erreurs laissent l'état en place ; seule l'annulation du paiement restaure
// l'instantané pris avant l'ouverture de la fenêtre.
type Machine struct {
	mu   sync.Mutex
	deps Deps

	step        Step
	identity    *auth.Identity
	shipping    ShippingDetails
	source      profile.Source
	buyNow      *cart.Item
	orderNumber string
	// montant et lignes liés au reçu orderNumber chez la passerelle
	receiptTotal int64
	receiptItems []orders.Item
	paying       bool
	paid         *payment.Confirmation
	paidItems    []orders.Item
	paidFromCart bool
	confirmed    *orders.Order
}

func New(deps Deps) *Machine {
	if deps.NewOrderNumber == nil {
		deps.NewOrderNumber = NewOrderNumber
	}
	if deps.Currency == "" {
		deps.Currency = "INR"
	}
	if deps.PaymentMethod == "" {
		deps.PaymentMethod = "razorpay"
	}
	return &Machine{deps: deps, step: StepIdentify}
}

// Identify exige une identité connectée puis pré-remplit le formulaire de livraison.
func (m *Machine) Identify(ctx context.Context, id *auth.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paying {
		return ErrPaymentInProgress
	}
	if m.step != StepIdentify {
		if m.identity != nil && id != nil && m.identity.ID == id.ID {
			return nil
		}
		return ErrWrongStep
	}
	if !id.Valid() {
		return ErrNotAuthenticated
	}

	m.identity = id
	m.shipping, m.source = m.deps.Profiles.Autofill(ctx, id)
	m.step = StepShippingDetails
	log.Printf("🛒 Tunnel ouvert pour %s (pré-remplissage: %s)", id.ID, m.source)
	return nil
}

// SubmitShipping valide le formulaire ; aucun passage à l'étape suivante tant
// qu'un champ est invalide.
func (m *Machine) SubmitShipping(ctx context.Context, s ShippingDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paying || m.paid != nil {
		return ErrPaymentInProgress
	}
	if m.step != StepShippingDetails && m.step != StepPayment {
		return ErrWrongStep
	}

	s = Normalize(s)
	m.shipping = s
	if errs := ValidateShipping(s); errs != nil {
		m.step = StepShippingDetails
		return errs
	}

	m.step = StepPayment
	if _, err := m.deps.Profiles.Save(ctx, m.identity, s); err != nil {
		log.Printf("⚠️ Profil de %s non sauvegardé: %v", m.identity.ID, err)
	}
	return nil
}

// EditShipping revient au formulaire depuis l'étape de paiement.
func (m *Machine) EditShipping() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paying || m.paid != nil {
		return ErrPaymentInProgress
	}
	if m.step != StepPayment {
		return ErrWrongStep
	}
	m.step = StepShippingDetails
	return nil
}

// BuyNow remplace le panier par un article unique pour cette commande ;
// le panier n'est ni lu ni vidé.
func (m *Machine) BuyNow(item cart.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paying || m.paid != nil {
		return ErrPaymentInProgress
	}
	if m.step == StepConfirmed {
		return ErrWrongStep
	}
	if item.ProductID == "" || item.Quantity < 1 || item.UnitPrice < 0 {
		return cart.ErrInvalidItem
	}
	if item.StockLimit != nil && *item.StockLimit < 1 {
		return cart.ErrInvalidItem
	}
	if item.StockLimit != nil && item.Quantity > *item.StockLimit {
		item.Quantity = *item.StockLimit
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	m.buyNow = &item
	return nil
}

// Pay vérifie une dernière fois le formulaire et le montant, puis enchaîne
// ordre de paiement → fenêtre → vérification → création de la commande.
func (m *Machine) Pay(ctx context.Context, widget payment.Widget) (orders.Order, error) {
	m.mu.Lock()
	if m.paying {
		m.mu.Unlock()
		return orders.Order{}, ErrPaymentInProgress
	}
	if m.step != StepPayment {
		m.mu.Unlock()
		return orders.Order{}, ErrWrongStep
	}

	// Paiement déjà vérifié lors d'une tentative précédente : seule l'écriture est rejouée
	if m.paid != nil {
		defer m.mu.Unlock()
		return m.completeLocked(ctx, *m.paid, m.paidItems, m.paidFromCart)
	}

	items := m.lineItemsLocked()
	if errs := ValidateShipping(m.shipping); errs != nil {
		m.step = StepShippingDetails
		m.mu.Unlock()
		return orders.Order{}, errs
	}
	if len(items) == 0 {
		m.step = StepShippingDetails
		m.mu.Unlock()
		return orders.Order{}, ErrEmptyOrder
	}
	subtotal := orders.SumItems(items)
	total := subtotal + m.deps.Shipping.Cost(subtotal)
	if total <= 0 {
		m.step = StepShippingDetails
		m.mu.Unlock()
		return orders.Order{}, ErrNonPositiveTotal
	}

	// Un reçu déjà envoyé à la passerelle reste lié à son montant : nouveau reçu si le contenu a changé
	if m.orderNumber == "" || m.receiptTotal != total || !slices.Equal(m.receiptItems, items) {
		if m.orderNumber != "" {
			log.Printf("🔁 Contenu modifié depuis la tentative %s : nouveau numéro de commande", m.orderNumber)
		}
		m.orderNumber = m.deps.NewOrderNumber()
		m.receiptTotal = total
		m.receiptItems = items
	}
	fromCart := m.buyNow == nil
	saved := snapshot{step: m.step, shipping: m.shipping}
	req := payment.Request{
		IdentityID: m.identity.ID,
		Amount:     total,
		Currency:   m.deps.Currency,
		Receipt:    m.orderNumber,
		Notes:      map[string]string{"order_number": m.orderNumber, "email": m.shipping.Email},
		Prefill: payment.Prefill{
			Name:    m.shipping.FullName,
			Email:   m.shipping.Email,
			Contact: m.shipping.Phone,
		},
	}
	m.paying = true
	m.mu.Unlock()

	conf, err := m.deps.Payments.Pay(ctx, req, widget)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.paying = false

	if errors.Is(err, payment.ErrCancelledByUser) {
		m.step = saved.step
		m.shipping = saved.shipping
		return orders.Order{}, err
	}
	if err != nil {
		return orders.Order{}, err
	}

	m.paid = conf
	m.paidItems = items
	m.paidFromCart = fromCart
	return m.completeLocked(ctx, *conf, items, fromCart)
}

// completeLocked écrit la commande une fois le paiement vérifié, avec les lignes
// figées au lancement du paiement.
func (m *Machine) completeLocked(ctx context.Context, conf payment.Confirmation, items []orders.Item, fromCart bool) (orders.Order, error) {
	order := orders.NewOrder(orders.Draft{
		OrderNumber:      m.orderNumber,
		IdentityID:       m.identity.ID,
		Email:            m.contactEmailLocked(),
		Items:            items,
		ShippingAddress:  m.shipping,
		ShippingCost:     m.deps.Shipping.Cost(orders.SumItems(items)),
		Currency:         m.deps.Currency,
		PaymentMethod:    m.deps.PaymentMethod,
		PaymentReference: conf.PaymentID,
		GatewayOrderID:   conf.GatewayOrderID,
	})
	if order.Total != conf.Amount {
		log.Printf("🚨 Panier modifié après paiement %s: total %d, payé %d", conf.PaymentID, order.Total, conf.Amount)
		return orders.Order{}, &PersistenceError{
			OrderNumber:      m.orderNumber,
			PaymentReference: conf.PaymentID,
			Err:              fmt.Errorf("total %d différent du montant payé %d", order.Total, conf.Amount),
		}
	}

	created, err := m.deps.Orders.Create(ctx, order)
	if err != nil {
		log.Printf("🚨 Commande %s payée (payment_id=%s) mais non enregistrée: %v", m.orderNumber, conf.PaymentID, err)
		return orders.Order{}, &PersistenceError{OrderNumber: m.orderNumber, PaymentReference: conf.PaymentID, Err: err}
	}

	if fromCart {
		if err := m.deps.Cart.Clear(ctx); err != nil {
			log.Printf("⚠️ Panier de %s non vidé après la commande %s: %v", m.identity.ID, created.OrderNumber, err)
		}
	}
	if _, err := m.deps.Profiles.Save(ctx, m.identity, m.shipping); err != nil {
		log.Printf("⚠️ Profil de %s non sauvegardé: %v", m.identity.ID, err)
	}
	if m.deps.Notifier != nil {
		m.deps.Notifier.OrderConfirmed(ctx, created)
	}

	m.step = StepConfirmed
	m.confirmed = &created
	m.paid = nil
	m.paidItems = nil
	m.paidFromCart = false
	m.buyNow = nil
	return created, nil
}

// ContinueShopping ramène le tunnel au début après une commande confirmée.
func (m *Machine) ContinueShopping() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != StepConfirmed {
		return ErrWrongStep
	}
	m.resetLocked()
	return nil
}

// Reset abandonne le tunnel quelle que soit l'étape, sauf pendant un paiement.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paying {
		return ErrPaymentInProgress
	}
	if m.paid != nil {
		log.Printf("🚨 Tunnel abandonné avec un paiement vérifié non enregistré (payment_id=%s, commande %s)", m.paid.PaymentID, m.orderNumber)
	}
	m.resetLocked()
	return nil
}

func (m *Machine) resetLocked() {
	m.step = StepIdentify
	m.identity = nil
	m.shipping = ShippingDetails{}
	m.source = ""
	m.buyNow = nil
	m.orderNumber = ""
	m.receiptTotal = 0
	m.receiptItems = nil
	m.paid = nil
	m.paidItems = nil
	m.paidFromCart = false
	m.confirmed = nil
}

// View est l'état exposé au client.
type View struct {
	Step                  Step            `json:"step"`
	Shipping              ShippingDetails `json:"shipping"`
	AutofillSource        profile.Source  `json:"autofill_source,omitempty"`
	BuyNow                bool            `json:"buy_now"`
	Items                 []orders.Item   `json:"items"`
	Subtotal              int64           `json:"subtotal"`
	ShippingCost          int64           `json:"shipping_cost"`
	Total                 int64           `json:"total"`
	OrderNumber           string          `json:"order_number,omitempty"`
	Paying                bool            `json:"paying"`
	AwaitingOrderCreation bool            `json:"awaiting_order_creation"`
	Order                 *orders.Order   `json:"order,omitempty"`
}

func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.lineItemsLocked()
	subtotal := orders.SumItems(items)
	cost := m.deps.Shipping.Cost(subtotal)
	if len(items) == 0 {
		cost = 0
	}

	return View{
		Step:                  m.step,
		Shipping:              m.shipping,
		AutofillSource:        m.source,
		BuyNow:                m.buyNow != nil,
		Items:                 items,
		Subtotal:              subtotal,
		ShippingCost:          cost,
		Total:                 subtotal + cost,
		OrderNumber:           m.orderNumber,
		Paying:                m.paying,
		AwaitingOrderCreation: m.paid != nil,
		Order:                 m.confirmed,
	}
}

func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// lineItemsLocked fige les lignes : l'article « acheter maintenant » ou le panier.
func (m *Machine) lineItemsLocked() []orders.Item {
	var source []cart.Item
	switch {
	case m.buyNow != nil:
		source = []cart.Item{*m.buyNow}
	case m.step == StepConfirmed:
		return []orders.Item{}
	case m.deps.Cart != nil:
		source = m.deps.Cart.Items()
	}

	items := make([]orders.Item, 0, len(source))
	for _, it := range source {
		items = append(items, orders.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Color:     it.Color,
			Size:      it.Size,
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}
	return items
}

func (m *Machine) contactEmailLocked() string {
	if m.identity != nil && m.identity.Email != "" {
		return m.identity.Email
	}
	return m.shipping.Email
}
