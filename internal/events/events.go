// Package events defines the structured event stream: one record per
// state change, carrying a correlation id that threads a signal through
// its lifecycle.
package events

// Type is a closed set of event kinds.
type Type string

const (
	TypeKillSwitchOn           Type = "KILL_SWITCH_ON"
	TypeKillSwitchOff          Type = "KILL_SWITCH_OFF"
	TypeCapitalPreservationOn  Type = "CAPITAL_PRESERVATION_ON"
	TypeCapitalPreservationOff Type = "CAPITAL_PRESERVATION_OFF"
	TypeVeto                   Type = "VETO"
	TypeAdmit                  Type = "ADMIT"
	TypeSimulationOutcome      Type = "SIMULATION_OUTCOME"
	TypeTradeExit              Type = "TRADE_EXIT"
	TypeEntropySkip            Type = "ENTROPY_SKIP"
	TypeDrawdownWarning        Type = "DRAWDOWN_WARNING"
	TypeMotherPromotion        Type = "MOTHER_PROMOTION"
	TypeIntegrityFailure       Type = "INTEGRITY_FAILURE"
)

// Severity orders events for operators. Kill-switch and
// capital-preservation changes are always Critical.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one structured record on the stream.
type Event struct {
	EventID       string            // uuid
	CorrelationID string            // empty for system-wide events
	Type          Type
	Severity      Severity
	At            int64             // Unix ms
	Fields        map[string]string // flat key/value detail
}

// Sink receives events. Implementations must not block the caller
// beyond their own write deadline; the engine treats sink errors as
// log-only (the trading decision is already final when emitted).
type Sink interface {
	Emit(e Event)
}

// NopSink discards events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}
