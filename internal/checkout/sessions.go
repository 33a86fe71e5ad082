package checkout

import (
	"context"
	"sync"
)

// Factory construit le tunnel d'une identité (panier, dépendances).
type Factory func(ctx context.Context, identityID string) (*Machine, error)

// Sessions garde un tunnel par identité pour la durée du processus.
type Sessions struct {
	mu       sync.Mutex
	factory  Factory
	machines map[string]*Machine
}

func NewSessions(factory Factory) *Sessions {
	return &Sessions{factory: factory, machines: make(map[string]*Machine)}
}

func (s *Sessions) For(ctx context.Context, identityID string) (*Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.machines[identityID]; ok {
		return m, nil
	}
	m, err := s.factory(ctx, identityID)
	if err != nil {
		return nil, err
	}
	s.machines[identityID] = m
	return m, nil
}

// Drop réinitialise complètement la session : le prochain For repart de zéro.
func (s *Sessions) Drop(identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[identityID]
	if !ok {
		return nil
	}
	if err := m.Reset(); err != nil {
		return err
	}
	delete(s.machines, identityID)
	return nil
}
