package profile

import (
	"context"
	"errors"
	"log"
	"strings"

	"cedra_storefront/internal/auth"
	"cedra_storefront/internal/orders"
)

// Source indique quelle stratégie a fourni le pré-remplissage.
type Source string

const (
	SourceSavedProfile   Source = "saved_profile"
	SourcePastOrders     Source = "past_orders"
	SourceIdentityFields Source = "identity_fields"
)

// Strategy est une façon de retrouver un profil. ErrNoProfile passe à la suivante.
type Strategy interface {
	Name() Source
	Lookup(ctx context.Context, id *auth.Identity) (Profile, error)
}

// SavedProfile lit le profil enregistré de l'identité.
type SavedProfile struct {
	Store *Store
}

func (SavedProfile) Name() Source { return SourceSavedProfile }

func (s SavedProfile) Lookup(ctx context.Context, id *auth.Identity) (Profile, error) {
	return s.Store.Get(ctx, id.ID)
}

// OrderFinder est la partie du dépôt de commandes utilisée pour le rattrapage.
type OrderFinder interface {
	LatestForEmail(ctx context.Context, email string) (orders.Order, error)
}

// PastOrders reprend l'adresse de la dernière commande passée avec l'e-mail de
// l'identité et la recopie dans user_profiles.
type PastOrders struct {
	Orders OrderFinder
	Store  *Store
}

func (PastOrders) Name() Source { return SourcePastOrders }

func (s PastOrders) Lookup(ctx context.Context, id *auth.Identity) (Profile, error) {
	if strings.TrimSpace(id.Email) == "" {
		return Profile{}, ErrNoProfile
	}

	latest, err := s.Orders.LatestForEmail(ctx, id.Email)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return Profile{}, ErrNoProfile
	}
	if err != nil {
		return Profile{}, err
	}

	addr := latest.ShippingAddress
	if addr.AddressLine == "" && addr.Pincode == "" {
		return Profile{}, ErrNoProfile
	}
	if addr.Email == "" {
		addr.Email = latest.ContactEmail()
	}

	p := FromShipping(id.ID, addr)
	if s.Store != nil {
		if saved, err := s.Store.Upsert(ctx, p); err != nil {
			log.Printf("⚠️ Rattrapage du profil %s impossible: %v", id.ID, err)
		} else {
			log.Printf("✅ Profil %s reconstruit depuis la commande %s", id.ID, latest.OrderNumber)
			p = saved
		}
	}
	return p, nil
}

// IdentityFields ne fait que reprendre nom et e-mail de l'identité ; elle n'échoue jamais.
type IdentityFields struct{}

func (IdentityFields) Name() Source { return SourceIdentityFields }

func (IdentityFields) Lookup(_ context.Context, id *auth.Identity) (Profile, error) {
	return Profile{IdentityID: id.ID, Name: id.Name, Email: id.Email}, nil
}

// Service pré-remplit et enregistre les coordonnées de livraison.
type Service struct {
	strategies []Strategy
	store      *Store
}

// NewService essaie les stratégies dans l'ordre ; IdentityFields sert de dernier recours.
func NewService(store *Store, strategies ...Strategy) *Service {
	return &Service{strategies: strategies, store: store}
}

// NewDefaultService : profil enregistré, puis commandes passées, puis identité.
func NewDefaultService(store *Store, finder OrderFinder) *Service {
	return NewService(store,
		SavedProfile{Store: store},
		PastOrders{Orders: finder, Store: store},
		IdentityFields{},
	)
}

// Autofill retourne les coordonnées pré-remplies et la stratégie qui les a fournies.
// Les erreurs d'une stratégie sont journalisées puis la suivante est essayée.
func (s *Service) Autofill(ctx context.Context, id *auth.Identity) (orders.ShippingAddress, Source) {
	for _, strategy := range s.strategies {
		p, err := strategy.Lookup(ctx, id)
		if errors.Is(err, ErrNoProfile) {
			continue
		}
		if err != nil {
			log.Printf("⚠️ Pré-remplissage %s en échec pour %s: %v", strategy.Name(), id.ID, err)
			continue
		}

		shipping := p.Shipping()
		if shipping.Email == "" {
			shipping.Email = id.Email
		}
		if shipping.FullName == "" {
			shipping.FullName = id.Name
		}
		return shipping, strategy.Name()
	}

	return orders.ShippingAddress{FullName: id.Name, Email: id.Email}, SourceIdentityFields
}

// Save enregistre les coordonnées validées comme profil de l'identité.
func (s *Service) Save(ctx context.Context, id *auth.Identity, shipping orders.ShippingAddress) (Profile, error) {
	return s.store.Upsert(ctx, FromShipping(id.ID, shipping))
}

// Get retourne le profil enregistré, ou ErrNoProfile.
func (s *Service) Get(ctx context.Context, id *auth.Identity) (Profile, error) {
	return s.store.Get(ctx, id.ID)
}
