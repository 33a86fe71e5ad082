package repository

import (
	"context"
	"sort"
	"sync"
)

// Backend est le client bas niveau du magasin de documents.
// Toutes les opérations de Repository passent par lui.
type Backend interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Scan(ctx context.Context, collection string) ([]Document, error)
	// Insert échoue avec ErrDuplicate si l'identifiant existe déjà.
	Insert(ctx context.Context, collection string, doc Document) error
	// Replace échoue avec ErrNotFound si le document n'existe pas.
	Replace(ctx context.Context, collection string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
	// Reserve réserve une valeur unique pour un champ de la collection.
	Reserve(ctx context.Context, collection, field, value, id string) error
	Release(ctx context.Context, collection, field, value string) error
}

// MemoryBackend garde les documents en mémoire (tests, STORE_DRIVER=memory).
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
	keys map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs: make(map[string]map[string]Document),
		keys: make(map[string]string),
	}
}

func (m *MemoryBackend) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.clone(), nil
}

func (m *MemoryBackend) Scan(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.docs[collection][id].clone())
	}
	return out, nil
}

func (m *MemoryBackend) Insert(_ context.Context, collection string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]Document)
	}
	if _, exists := m.docs[collection][doc.ID()]; exists {
		return ErrDuplicate
	}
	m.docs[collection][doc.ID()] = doc.clone()
	return nil
}

func (m *MemoryBackend) Replace(_ context.Context, collection string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[collection][doc.ID()]; !exists {
		return ErrNotFound
	}
	m.docs[collection][doc.ID()] = doc.clone()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[collection][id]; !exists {
		return ErrNotFound
	}
	delete(m.docs[collection], id)
	return nil
}

func (m *MemoryBackend) Reserve(_ context.Context, collection, field, value, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := collection + "\x00" + field + "\x00" + value
	if _, taken := m.keys[key]; taken {
		return ErrDuplicate
	}
	m.keys[key] = id
	return nil
}

func (m *MemoryBackend) Release(_ context.Context, collection, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, collection+"\x00"+field+"\x00"+value)
	return nil
}
