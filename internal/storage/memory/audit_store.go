package memory

import (
	"context"
	"sync"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/storage"
)

// AuditStore is an in-memory implementation of storage.AuditStore.
// Used in -memory mode and in tests; production uses ClickHouse.
type AuditStore struct {
	mu        sync.RWMutex
	decisions []*domain.DecisionRecord
	events    []events.Event
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

var _ storage.AuditStore = (*AuditStore)(nil)

// InsertDecision appends one pipeline evaluation.
func (s *AuditStore) InsertDecision(_ context.Context, d *domain.DecisionRecord) error {
	if d == nil || d.CorrelationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	cp.Gates = append([]domain.GateResult(nil), d.Gates...)
	s.decisions = append(s.decisions, &cp)
	return nil
}

// InsertEvent appends one event-stream record.
func (s *AuditStore) InsertEvent(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
	return nil
}

// Decisions returns a copy of all recorded decisions (test helper).
func (s *AuditStore) Decisions() []*domain.DecisionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.DecisionRecord, len(s.decisions))
	copy(result, s.decisions)
	return result
}

// Events returns a copy of all recorded events (test helper).
func (s *AuditStore) Events() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]events.Event, len(s.events))
	copy(result, s.events)
	return result
}
