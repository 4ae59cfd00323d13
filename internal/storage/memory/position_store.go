package memory

import (
	"context"
	"sort"
	"sync"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OpenPosition // keyed by position_id
}

// NewPositionStore creates a new in-memory open position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{data: make(map[string]*domain.OpenPosition)}
}

var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds an open position. Returns ErrDuplicateKey if exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.OpenPosition) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *p
	s.data[p.PositionID] = &cp
	return nil
}

// Get retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(_ context.Context, positionID string) (*domain.OpenPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[positionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListOpen retrieves all open positions, oldest entry first.
func (s *PositionStore) ListOpen(_ context.Context) ([]*domain.OpenPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.OpenPosition, 0, len(s.data))
	for _, p := range s.data {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EntryTime != result[j].EntryTime {
			return result[i].EntryTime < result[j].EntryTime
		}
		return result[i].PositionID < result[j].PositionID
	})
	return result, nil
}

// Update replaces a position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.OpenPosition) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; !exists {
		return storage.ErrNotFound
	}
	cp := *p
	s.data[p.PositionID] = &cp
	return nil
}

// Delete removes a fully closed position.
func (s *PositionStore) Delete(_ context.Context, positionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[positionID]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, positionID)
	return nil
}
