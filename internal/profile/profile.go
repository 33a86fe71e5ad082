package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cedra_storefront/internal/orders"
	"cedra_storefront/internal/repository"
)

const Collection = "user_profiles"

// ErrNoProfile signifie « rien trouvé, essayer la stratégie suivante ».
var ErrNoProfile = errors.New("aucun profil")

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Profile est le carnet d'adresses d'une identité (un seul document par identité).
type Profile struct {
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Address    Address   `json:"address"`
	Landmark   string    `json:"landmark,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FromShipping construit un profil à partir des coordonnées de livraison.
func FromShipping(identityID string, s orders.ShippingAddress) Profile {
	return Profile{
		IdentityID: identityID,
		Name:       s.FullName,
		Email:      s.Email,
		Phone:      s.Phone,
		Address: Address{
			Street:  s.AddressLine,
			City:    s.City,
			State:   s.State,
			Pincode: s.Pincode,
		},
		Landmark: s.Landmark,
	}
}

// Shipping retourne le profil sous forme de coordonnées de livraison pré-remplies.
func (p Profile) Shipping() orders.ShippingAddress {
	return orders.ShippingAddress{
		FullName:    p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		AddressLine: p.Address.Street,
		City:        p.Address.City,
		State:       p.Address.State,
		Pincode:     p.Address.Pincode,
		Landmark:    p.Landmark,
	}
}

// Store lit et écrit la collection user_profiles ; l'identifiant du document est celui de l'identité.
type Store struct {
	docs *repository.Repository
}

func NewStore(docs *repository.Repository) *Store {
	return &Store{docs: docs}
}

func (s *Store) Get(ctx context.Context, identityID string) (Profile, error) {
	resp := s.docs.From(Collection).Eq(repository.FieldID, identityID).Single(ctx)
	if errors.Is(resp.Error, repository.ErrNotFound) {
		return Profile{}, ErrNoProfile
	}
	if resp.Error != nil {
		return Profile{}, resp.Error
	}

	var p Profile
	if err := repository.Decode(resp.Data.(repository.Document), &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Upsert crée ou remplace le profil de l'identité, sans jamais le dupliquer.
func (s *Store) Upsert(ctx context.Context, p Profile) (Profile, error) {
	if p.IdentityID == "" {
		return Profile{}, fmt.Errorf("profil sans identité")
	}

	doc, err := repository.Encode(p)
	if err != nil {
		return Profile{}, err
	}
	delete(doc, repository.FieldUpdatedAt)

	stored, err := s.docs.Set(ctx, Collection, p.IdentityID, doc)
	if err != nil {
		return Profile{}, fmt.Errorf("sauvegarde profil %s: %w", p.IdentityID, err)
	}

	var out Profile
	if err := repository.Decode(stored, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}
