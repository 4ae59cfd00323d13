package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/storage"
)

// AuditStore implements storage.AuditStore using ClickHouse. Both tables
// are append-only MergeTree; nothing on the trading path reads them.
type AuditStore struct {
	conn *Conn
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(conn *Conn) *AuditStore {
	return &AuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// InsertDecision appends one pipeline evaluation with its full gate trail.
func (s *AuditStore) InsertDecision(ctx context.Context, d *domain.DecisionRecord) error {
	if d == nil || d.CorrelationID == "" {
		return storage.ErrInvalidInput
	}

	trail, err := json.Marshal(d.Gates)
	if err != nil {
		return fmt.Errorf("marshal gate trail: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decision_audit (
			correlation_id, token, wallet, admitted, veto_gate, veto_reason,
			confidence, size_usd, gate_trail, evaluated_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare decision batch: %w", err)
	}

	err = batch.Append(
		d.CorrelationID, d.Token, d.Wallet, d.Admitted,
		string(d.VetoGate), d.VetoReason,
		d.Confidence, d.SizeUSD, string(trail), uint64(d.EvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send decision batch: %w", err)
	}
	return nil
}

// InsertEvent appends one event-stream record.
func (s *AuditStore) InsertEvent(ctx context.Context, e events.Event) error {
	if e.EventID == "" {
		return storage.ErrInvalidInput
	}

	fields := e.Fields
	if fields == nil {
		fields = map[string]string{}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO events (
			event_id, correlation_id, event_type, severity, at, fields
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare event batch: %w", err)
	}

	err = batch.Append(
		e.EventID, e.CorrelationID, string(e.Type), string(e.Severity),
		uint64(e.At), fields,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send event batch: %w", err)
	}
	return nil
}

// DecisionsByToken retrieves audited decisions for a token, newest
// first. Operator tooling only.
func (s *AuditStore) DecisionsByToken(ctx context.Context, token string, limit int) ([]*domain.DecisionRecord, error) {
	query := `
		SELECT correlation_id, token, wallet, admitted, veto_gate, veto_reason,
		       confidence, size_usd, gate_trail, evaluated_at
		FROM decision_audit
		WHERE token = ?
		ORDER BY evaluated_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, token, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query decisions by token: %w", err)
	}
	defer rows.Close()

	var records []*domain.DecisionRecord
	for rows.Next() {
		var d domain.DecisionRecord
		var vetoGate, trail string
		var evaluatedAt uint64

		err := rows.Scan(
			&d.CorrelationID, &d.Token, &d.Wallet, &d.Admitted, &vetoGate, &d.VetoReason,
			&d.Confidence, &d.SizeUSD, &trail, &evaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}

		d.VetoGate = domain.Gate(vetoGate)
		d.EvaluatedAt = int64(evaluatedAt)
		if trail != "" {
			if err := json.Unmarshal([]byte(trail), &d.Gates); err != nil {
				return nil, fmt.Errorf("unmarshal gate trail: %w", err)
			}
		}
		records = append(records, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}
	return records, nil
}
