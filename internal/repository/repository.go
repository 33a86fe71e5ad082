package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Repository expose les opérations génériques par collection.
// Un GetWhere sans résultat retourne une liste vide, jamais une erreur.
type Repository struct {
	backend Backend
	now     func() time.Time
	newID   func() string
}

func New(backend Backend) *Repository {
	return &Repository{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// SetClock remplace l'horloge utilisée pour created_at / updated_at.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// Query décrit une lecture filtrée, triée et limitée.
type Query struct {
	Conditions []Condition
	OrderBy    string
	Descending bool
	Limit      int
}

func (r *Repository) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return r.Find(ctx, collection, Query{})
}

func (r *Repository) GetWhere(ctx context.Context, collection string, conditions []Condition) ([]Document, error) {
	return r.Find(ctx, collection, Query{Conditions: conditions})
}

// Find applique conditions, tri et limite sur une collection.
func (r *Repository) Find(ctx context.Context, collection string, q Query) ([]Document, error) {
	for _, c := range q.Conditions {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}

	docs, err := r.backend.Scan(ctx, collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, q), nil
}

func applyQuery(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if matchesAll(doc, q.Conditions) {
			out = append(out, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := lookup(out[i], q.OrderBy)
			b, _ := lookup(out[j], q.OrderBy)
			cmp, ok := compare(a, b)
			if !ok {
				return false
			}
			if q.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesAll(doc Document, conditions []Condition) bool {
	for _, c := range conditions {
		if !c.matches(doc) {
			return false
		}
	}
	return true
}

func (r *Repository) GetByID(ctx context.Context, collection, id string) (Document, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return r.backend.Get(ctx, collection, id)
}

type addOptions struct {
	id     string
	unique []string
}

type AddOption func(*addOptions)

// WithID impose l'identifiant du document au lieu d'en générer un.
func WithID(id string) AddOption {
	return func(o *addOptions) { o.id = id }
}

// WithUniqueField refuse l'insertion si un autre document porte déjà la même valeur.
func WithUniqueField(field string) AddOption {
	return func(o *addOptions) { o.unique = append(o.unique, field) }
}

// Add insère un document et pose created_at / updated_at.
func (r *Repository) Add(ctx context.Context, collection string, doc Document, opts ...AddOption) (Document, error) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	stored := doc.clone()
	switch {
	case o.id != "":
		stored[FieldID] = o.id
	case stored.ID() == "":
		stored[FieldID] = r.newID()
	}
	stamp := r.now().Format(time.RFC3339Nano)
	stored[FieldCreatedAt] = stamp
	stored[FieldUpdatedAt] = stamp

	reserved, err := r.reserve(ctx, collection, stored, o.unique)
	if err != nil {
		return nil, err
	}

	if err := r.backend.Insert(ctx, collection, stored); err != nil {
		r.release(ctx, collection, stored, reserved)
		return nil, fmt.Errorf("insertion %s: %w", collection, err)
	}
	return stored, nil
}

func (r *Repository) reserve(ctx context.Context, collection string, doc Document, fields []string) ([]string, error) {
	var reserved []string
	for _, field := range fields {
		value, ok := lookup(doc, field)
		if !ok || value == nil {
			r.release(ctx, collection, doc, reserved)
			return nil, fmt.Errorf("champ unique %q absent", field)
		}
		if err := r.backend.Reserve(ctx, collection, field, fmt.Sprint(value), doc.ID()); err != nil {
			r.release(ctx, collection, doc, reserved)
			return nil, fmt.Errorf("%s=%v: %w", field, value, err)
		}
		reserved = append(reserved, field)
	}
	return reserved, nil
}

func (r *Repository) release(ctx context.Context, collection string, doc Document, fields []string) {
	for _, field := range fields {
		value, _ := lookup(doc, field)
		if err := r.backend.Release(ctx, collection, field, fmt.Sprint(value)); err != nil {
			log.Printf("⚠️ Valeur unique %s.%s=%v non libérée (id=%s): %v", collection, field, value, doc.ID(), err)
		}
	}
}

// Update fusionne patch (premier niveau) dans le document et pose updated_at.
func (r *Repository) Update(ctx context.Context, collection, id string, patch Document) (Document, error) {
	current, err := r.GetByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	for k, v := range patch.clone() {
		if k == FieldID || k == FieldCreatedAt {
			continue
		}
		current[k] = v
	}
	current[FieldUpdatedAt] = r.now().Format(time.RFC3339Nano)

	if err := r.backend.Replace(ctx, collection, current); err != nil {
		return nil, fmt.Errorf("mise à jour %s/%s: %w", collection, id, err)
	}
	return current, nil
}

// Set crée le document s'il n'existe pas, sinon le met à jour (upsert sur l'identifiant).
func (r *Repository) Set(ctx context.Context, collection, id string, doc Document) (Document, error) {
	updated, err := r.Update(ctx, collection, id, doc)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created, err := r.Add(ctx, collection, doc, WithID(id))
	if errors.Is(err, ErrDuplicate) {
		// Créé entre-temps par un autre appel
		return r.Update(ctx, collection, id, doc)
	}
	return created, err
}

func (r *Repository) Delete(ctx context.Context, collection, id string) error {
	return r.backend.Delete(ctx, collection, id)
}
