package memory

import (
	"context"
	"sync"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// RiskStateStore is an in-memory implementation of storage.RiskStateStore.
type RiskStateStore struct {
	mu    sync.RWMutex
	state *domain.RiskState
}

// NewRiskStateStore creates a new in-memory risk state store.
func NewRiskStateStore() *RiskStateStore {
	return &RiskStateStore{}
}

var _ storage.RiskStateStore = (*RiskStateStore)(nil)

// Save replaces the persisted risk state.
func (s *RiskStateStore) Save(_ context.Context, st *domain.RiskState) error {
	if st == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.state = &cp
	return nil
}

// Load retrieves the risk state. Returns ErrNotFound when none saved.
func (s *RiskStateStore) Load(_ context.Context) (*domain.RiskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, storage.ErrNotFound
	}
	cp := *s.state
	return &cp, nil
}
