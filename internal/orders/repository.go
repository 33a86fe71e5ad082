package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cedra_storefront/internal/repository"
)

const Collection = "orders"

var (
	ErrOrderNotFound     = errors.New("commande introuvable")
	ErrDuplicateOrder    = errors.New("numéro de commande déjà utilisé")
	ErrInvalidTransition = errors.New("transition de statut interdite")
	ErrTrackingRequired  = errors.New("numéro de suivi requis pour l'expédition")
)

// Champs e-mail essayés dans l'ordre : schéma courant puis ancien schéma.
var emailFields = []string{"user_email", "customer_email"}

// Repository est le système de référence des commandes.
type Repository struct {
	docs *repository.Repository
}

func NewRepository(docs *repository.Repository) *Repository {
	return &Repository{docs: docs}
}

// Create insère la commande complète en une seule écriture.
// Le numéro de commande est unique : un doublon échoue avec ErrDuplicateOrder.
func (r *Repository) Create(ctx context.Context, o Order) (Order, error) {
	if err := o.Validate(); err != nil {
		return Order{}, fmt.Errorf("commande invalide: %w", err)
	}
	o.UserEmail = normalizeEmail(o.UserEmail)
	o.ID = ""

	doc, err := repository.Encode(o)
	if err != nil {
		return Order{}, err
	}
	delete(doc, repository.FieldID)
	delete(doc, repository.FieldCreatedAt)
	delete(doc, repository.FieldUpdatedAt)

	stored, err := r.docs.Add(ctx, Collection, doc, repository.WithUniqueField("order_number"))
	if errors.Is(err, repository.ErrDuplicate) {
		return Order{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, o.OrderNumber)
	}
	if err != nil {
		return Order{}, err
	}

	log.Printf("✅ Commande %s enregistrée (id=%s, total=%d)", o.OrderNumber, stored.ID(), o.Total)
	return decode(stored)
}

// FindByEmail liste les commandes d'un e-mail, les plus récentes d'abord.
// Si le champ courant ne donne rien, l'ancien champ customer_email est consulté.
func (r *Repository) FindByEmail(ctx context.Context, email string) ([]Order, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	for _, field := range emailFields {
		docs, err := r.docs.Find(ctx, Collection, repository.Query{
			Conditions: []repository.Condition{{Field: field, Operator: repository.OpEqualFold, Value: email}},
			OrderBy:    repository.FieldCreatedAt,
			Descending: true,
		})
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			continue
		}
		return decodeAll(docs)
	}
	return []Order{}, nil
}

// LatestForEmail retourne la commande la plus récente d'un e-mail.
func (r *Repository) LatestForEmail(ctx context.Context, email string) (Order, error) {
	list, err := r.FindByEmail(ctx, email)
	if err != nil {
		return Order{}, err
	}
	if len(list) == 0 {
		return Order{}, ErrOrderNotFound
	}
	return list[0], nil
}

func (r *Repository) FindByNumber(ctx context.Context, number string) (Order, error) {
	docs, err := r.docs.GetWhere(ctx, Collection, []repository.Condition{repository.Where("order_number", number)})
	if err != nil {
		return Order{}, err
	}
	if len(docs) == 0 {
		return Order{}, ErrOrderNotFound
	}
	return decode(docs[0])
}

func (r *Repository) FindByID(ctx context.Context, id string) (Order, error) {
	doc, err := r.docs.GetByID(ctx, Collection, id)
	if errors.Is(err, repository.ErrNotFound) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return decode(doc)
}

// ListAll sert le back-office : toutes les commandes, les plus récentes d'abord.
func (r *Repository) ListAll(ctx context.Context, limit int) ([]Order, error) {
	docs, err := r.docs.Find(ctx, Collection, repository.Query{
		OrderBy:    repository.FieldCreatedAt,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs)
}

// UpdateStatus applique une transition du back-office. Le tunnel de commande
// n'appelle jamais cette méthode.
func (r *Repository) UpdateStatus(ctx context.Context, id string, to Status, tracking string) (Order, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(current.Status, to) {
		return Order{}, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current.Status, to)
	}

	patch := repository.Document{"status": string(to)}
	if to == StatusShipped {
		if strings.TrimSpace(tracking) == "" && current.TrackingNumber == "" {
			return Order{}, ErrTrackingRequired
		}
	}
	if tracking != "" {
		patch["tracking_number"] = strings.TrimSpace(tracking)
	}
	if to == StatusRefunded {
		patch["payment_status"] = string(PaymentRefunded)
	}

	doc, err := r.docs.Update(ctx, Collection, id, patch)
	if err != nil {
		return Order{}, err
	}
	log.Printf("✅ Commande %s mise à jour: %s → %s", current.OrderNumber, current.Status, to)
	return decode(doc)
}

func decode(doc repository.Document) (Order, error) {
	var o Order
	if err := repository.Decode(doc, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func decodeAll(docs []repository.Document) ([]Order, error) {
	out := make([]Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decode(doc)
		if err != nil {
			log.Printf("⚠️ Commande illisible ignorée (%s): %v", doc.ID(), err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
