package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrItemNotFound = errors.New("article introuvable dans le panier")
	ErrInvalidItem  = errors.New("article invalide")
)

// Item est une ligne du panier. Prix en unités mineures (paise).
type Item struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Color      string `json:"color"`
	Size       string `json:"size"`
	Quantity   int    `json:"quantity"`
	Image      string `json:"image,omitempty"`
	StockLimit *int   `json:"stock_limit,omitempty"`
}

// Subtotal = prix unitaire × quantité.
func (i Item) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

func (i Item) sameLine(o Item) bool {
	return i.ProductID == o.ProductID && i.Color == o.Color && i.Size == o.Size
}

func (i Item) clamp(n int) int {
	if i.StockLimit != nil && n > *i.StockLimit {
		return *i.StockLimit
	}
	return n
}

// Persistence est le stockage durable du panier (clé → JSON).
type Persistence interface {
	// Load retourne nil, nil si la clé n'existe pas.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Key retourne la clé de stockage du panier d'une identité.
func Key(identityID string) string {
	return "cart:" + identityID
}

// Store est le panier d'une identité. Chaque mutation est persistée avant de rendre la main.
type Store struct {
	mu      sync.Mutex
	key     string
	items   []Item
	persist Persistence
	newID   func() string
}

// Open hydrate le panier depuis le stockage. Les données mal formées sont ignorées.
func Open(ctx context.Context, persist Persistence, identityID string) (*Store, error) {
	s := &Store{
		key:     Key(identityID),
		persist: persist,
		newID:   uuid.NewString,
	}

	data, err := persist.Load(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("lecture panier: %w", err)
	}
	s.items = hydrate(data)
	return s, nil
}

func hydrate(data []byte) []Item {
	if len(data) == 0 {
		return nil
	}

	var raw []Item
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("⚠️ Panier illisible ignoré: %v", err)
		return nil
	}

	items := make([]Item, 0, len(raw))
	for _, it := range raw {
		if it.ProductID == "" || it.Quantity < 1 || it.UnitPrice < 0 {
			continue
		}
		if it.StockLimit != nil && *it.StockLimit < 1 {
			continue
		}
		it.Quantity = it.clamp(it.Quantity)
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		items = append(items, it)
	}
	return items
}

// Add fusionne l'article avec une ligne existante (produit, couleur, taille) en
// additionnant les quantités, sinon crée une nouvelle ligne.
func (s *Store) Add(ctx context.Context, item Item) (Item, error) {
	if item.ProductID == "" || item.Quantity < 1 || item.UnitPrice < 0 {
		return Item{}, ErrInvalidItem
	}
	if item.StockLimit != nil && *item.StockLimit < 1 {
		return Item{}, ErrInvalidItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneItems(s.items)
	idx := -1
	for i := range next {
		if next[i].sameLine(item) {
			idx = i
			break
		}
	}

	if idx >= 0 {
		if item.StockLimit != nil {
			next[idx].StockLimit = item.StockLimit
		}
		next[idx].Quantity = next[idx].clamp(next[idx].Quantity + item.Quantity)
	} else {
		item.ID = s.newID()
		item.Quantity = item.clamp(item.Quantity)
		next = append(next, item)
		idx = len(next) - 1
	}

	if err := s.commit(ctx, next); err != nil {
		return Item{}, err
	}
	return next[idx], nil
}

// Remove supprime une ligne.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, id)
}

func (s *Store) removeLocked(ctx context.Context, id string) error {
	next := make([]Item, 0, len(s.items))
	found := false
	for _, it := range s.items {
		if it.ID == id {
			found = true
			continue
		}
		next = append(next, it)
	}
	if !found {
		return ErrItemNotFound
	}
	return s.commit(ctx, next)
}

// SetQuantity remplace la quantité. n <= 0 supprime la ligne ; au-delà du stock,
// la quantité est ramenée silencieusement à la limite.
func (s *Store) SetQuantity(ctx context.Context, id string, n int) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return Item{}, s.removeLocked(ctx, id)
	}

	next := cloneItems(s.items)
	for i := range next {
		if next[i].ID == id {
			q := next[i].clamp(n)
			if q < 1 {
				return Item{}, s.removeLocked(ctx, id)
			}
			next[i].Quantity = q
			if err := s.commit(ctx, next); err != nil {
				return Item{}, err
			}
			return next[i], nil
		}
	}
	return Item{}, ErrItemNotFound
}

// Clear vide le panier et supprime la clé de stockage.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("vidage panier: %w", err)
	}
	s.items = nil
	return nil
}

// Items retourne une copie des lignes.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range s.items {
		total += it.Subtotal()
	}
	return total
}

// commit persiste le nouvel état ; en cas d'échec l'état mémoire reste inchangé.
func (s *Store) commit(ctx context.Context, next []Item) error {
	if len(next) == 0 {
		if err := s.persist.Delete(ctx, s.key); err != nil {
			return fmt.Errorf("sauvegarde panier: %w", err)
		}
		s.items = nil
		return nil
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("sérialisation panier: %w", err)
	}
	if err := s.persist.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("sauvegarde panier: %w", err)
	}
	s.items = next
	return nil
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
