package memory

import (
	"context"
	"sort"
	"sync"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

type edgeKey struct {
	source    string
	target    string
	timestamp int64
}

// FundingEdgeStore is an in-memory implementation of storage.FundingEdgeStore.
type FundingEdgeStore struct {
	mu   sync.RWMutex
	data map[edgeKey]*domain.FundingEdge
}

// NewFundingEdgeStore creates a new in-memory funding edge store.
func NewFundingEdgeStore() *FundingEdgeStore {
	return &FundingEdgeStore{data: make(map[edgeKey]*domain.FundingEdge)}
}

var _ storage.FundingEdgeStore = (*FundingEdgeStore)(nil)

// Insert adds a funding edge. Returns ErrDuplicateKey if
// (source, target, timestamp) exists.
func (s *FundingEdgeStore) Insert(_ context.Context, e *domain.FundingEdge) error {
	if e == nil || e.Source == "" || e.Target == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{e.Source, e.Target, e.Timestamp}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *e
	s.data[key] = &cp
	return nil
}

// ByTarget retrieves edges funding the given wallet, newest first.
func (s *FundingEdgeStore) ByTarget(_ context.Context, target string) ([]*domain.FundingEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FundingEdge
	for _, e := range s.data {
		if e.Target == target {
			cp := *e
			result = append(result, &cp)
		}
	}
	sortEdgesNewestFirst(result)
	return result, nil
}

// BySource retrieves edges funded by the given wallet, newest first.
func (s *FundingEdgeStore) BySource(_ context.Context, source string) ([]*domain.FundingEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FundingEdge
	for _, e := range s.data {
		if e.Source == source {
			cp := *e
			result = append(result, &cp)
		}
	}
	sortEdgesNewestFirst(result)
	return result, nil
}

// List retrieves all edges, newest first.
func (s *FundingEdgeStore) List(_ context.Context) ([]*domain.FundingEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.FundingEdge, 0, len(s.data))
	for _, e := range s.data {
		cp := *e
		result = append(result, &cp)
	}
	sortEdgesNewestFirst(result)
	return result, nil
}

// UpdateConfidence sets the decayed confidence of one edge.
func (s *FundingEdgeStore) UpdateConfidence(_ context.Context, source, target string, timestamp int64, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{source, target, timestamp}
	e, ok := s.data[key]
	if !ok {
		return storage.ErrNotFound
	}
	e.EdgeConfidence = confidence
	return nil
}

// PruneBelow deletes edges with confidence below the floor.
func (s *FundingEdgeStore) PruneBelow(_ context.Context, floor float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.data {
		if e.EdgeConfidence < floor {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

func sortEdgesNewestFirst(edges []*domain.FundingEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Timestamp != edges[j].Timestamp {
			return edges[i].Timestamp > edges[j].Timestamp
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}
