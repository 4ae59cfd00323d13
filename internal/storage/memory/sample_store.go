package memory

import (
	"context"
	"sync"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// SampleStore is an in-memory implementation of storage.SampleStore.
type SampleStore struct {
	mu   sync.RWMutex
	data []*domain.SimulatorSample
}

// NewSampleStore creates a new in-memory simulator sample store.
func NewSampleStore() *SampleStore {
	return &SampleStore{}
}

var _ storage.SampleStore = (*SampleStore)(nil)

// Insert appends a sample.
func (s *SampleStore) Insert(_ context.Context, sample *domain.SimulatorSample) error {
	if sample == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sample
	s.data = append(s.data, &cp)
	return nil
}

// List retrieves all samples, oldest first.
func (s *SampleStore) List(_ context.Context) ([]*domain.SimulatorSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SimulatorSample, len(s.data))
	for i, sample := range s.data {
		cp := *sample
		result[i] = &cp
	}
	return result, nil
}
