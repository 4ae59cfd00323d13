package domain

import "fmt"

// IntegrityError signals that persisted state is internally inconsistent
// (e.g. confidence out of range). It is fatal to the affected operation:
// trading for the affected wallet/cluster halts until externally repaired.
// It is never clamped and continued.
type IntegrityError struct {
	Entity string // "wallet", "funding_edge", "risk_state", ...
	Key    string // identifying key of the corrupt record
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity failure in %s %q: %s", e.Entity, e.Key, e.Reason)
}
