package postgres

import (
	"context"
	"fmt"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

// SampleStore implements storage.SampleStore using PostgreSQL.
type SampleStore struct {
	pool *Pool
}

// NewSampleStore creates a new SampleStore.
func NewSampleStore(pool *Pool) *SampleStore {
	return &SampleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SampleStore = (*SampleStore)(nil)

// Insert appends a sample.
func (s *SampleStore) Insert(ctx context.Context, sample *domain.SimulatorSample) error {
	if sample == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO simulator_samples (predicted, actual, weight_class, recorded_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		sample.Predicted, sample.Actual, sample.WeightClass, sample.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert simulator sample: %w", err)
	}
	return nil
}

// List retrieves all samples, oldest first.
func (s *SampleStore) List(ctx context.Context) ([]*domain.SimulatorSample, error) {
	query := `
		SELECT predicted, actual, weight_class, recorded_at
		FROM simulator_samples ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list simulator samples: %w", err)
	}
	defer rows.Close()

	var samples []*domain.SimulatorSample
	for rows.Next() {
		var sm domain.SimulatorSample
		if err := rows.Scan(&sm.Predicted, &sm.Actual, &sm.WeightClass, &sm.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan simulator sample row: %w", err)
		}
		samples = append(samples, &sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulator sample rows: %w", err)
	}
	return samples, nil
}
