package orders

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Item est une copie figée de la ligne de panier au moment de l'achat.
// Nom et prix ne sont jamais relus depuis le catalogue.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

func (i Item) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

type ShippingAddress struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	Pincode     string `json:"pincode"`
	Landmark    string `json:"landmark,omitempty"`
}

type Order struct {
	ID               string          `json:"id,omitempty"`
	OrderNumber      string          `json:"order_number"`
	IdentityID       string          `json:"identity_id"`
	UserEmail        string          `json:"user_email"`
	Items            []Item          `json:"items"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	Subtotal         int64           `json:"subtotal"`
	ShippingCost     int64           `json:"shipping_cost"`
	Total            int64           `json:"total"`
	Currency         string          `json:"currency"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	Status           Status          `json:"status"`
	TrackingNumber   string          `json:"tracking_number,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Anciennes commandes : l'e-mail était stocké sous customer_email
	LegacyCustomerEmail string `json:"customer_email,omitempty"`
}

// ContactEmail retourne l'e-mail de contact, quel que soit le schéma du document.
func (o Order) ContactEmail() string {
	if o.UserEmail != "" {
		return o.UserEmail
	}
	return o.LegacyCustomerEmail
}

// Draft regroupe ce qui est connu au moment de la validation du paiement.
type Draft struct {
	OrderNumber      string
	IdentityID       string
	Email            string
	Items            []Item
	ShippingAddress  ShippingAddress
	ShippingCost     int64
	Currency         string
	PaymentMethod    string
	PaymentReference string
	GatewayOrderID   string
}

// SumItems additionne les sous-totaux des lignes figées.
func SumItems(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}

// NewOrder construit la commande complète ; le total est calculé une seule fois ici.
func NewOrder(d Draft) Order {
	items := make([]Item, len(d.Items))
	copy(items, d.Items)

	subtotal := SumItems(items)
	return Order{
		OrderNumber:      d.OrderNumber,
		IdentityID:       d.IdentityID,
		UserEmail:        d.Email,
		Items:            items,
		ShippingAddress:  d.ShippingAddress,
		Subtotal:         subtotal,
		ShippingCost:     d.ShippingCost,
		Total:            subtotal + d.ShippingCost,
		Currency:         d.Currency,
		PaymentMethod:    d.PaymentMethod,
		PaymentReference: d.PaymentReference,
		GatewayOrderID:   d.GatewayOrderID,
		PaymentStatus:    PaymentCompleted,
		Status:           StatusConfirmed,
	}
}

// Validate vérifie qu'une commande est complète avant insertion.
func (o Order) Validate() error {
	for _, it := range o.Items {
		if it.Quantity < 1 || it.UnitPrice < 0 {
			return fmt.Errorf("article %s invalide: quantité %d, prix %d", it.ProductID, it.Quantity, it.UnitPrice)
		}
	}
	switch {
	case o.OrderNumber == "":
		return fmt.Errorf("numéro de commande manquant")
	case len(o.Items) == 0:
		return fmt.Errorf("commande sans article")
	case o.PaymentReference == "":
		return fmt.Errorf("référence de paiement manquante")
	case o.ShippingCost < 0:
		return fmt.Errorf("frais de livraison négatifs: %d", o.ShippingCost)
	case o.Subtotal != SumItems(o.Items):
		return fmt.Errorf("sous-total incohérent: %d != %d", o.Subtotal, SumItems(o.Items))
	case o.Total != o.Subtotal+o.ShippingCost:
		return fmt.Errorf("total incohérent: %d != %d", o.Total, o.Subtotal+o.ShippingCost)
	}
	return nil
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
}

// CanTransition indique si le back-office peut passer de from à to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ParseStatus valide une valeur de statut reçue du back-office.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return st, true
	}
	return "", false
}
