package domain

// Gate names the ordered admission checks. The numeric order of
// evaluation is fixed in the pipeline; these are reason-code labels.
type Gate string

const (
	GateKillSwitch          Gate = "KILL_SWITCH"
	GateCapitalPreservation Gate = "CAPITAL_PRESERVATION"
	GateFreshness           Gate = "SIGNAL_FRESHNESS"
	GateTokenAge            Gate = "TOKEN_AGE"
	GateSpread              Gate = "SPREAD"
	GateLiquidity           Gate = "LIQUIDITY"
	GateTax                 Gate = "TAX"
	GateCooldown            Gate = "COOLDOWN"
	GateSimulation          Gate = "SIMULATION"

	// GateDeadline is not one of the ordered nine: it labels an
	// engine-level fail-closed veto when the decision latency budget
	// was exhausted.
	GateDeadline Gate = "DECISION_DEADLINE"
)

// GateResult is the audited outcome of a single gate check.
type GateResult struct {
	Gate   Gate
	Pass   bool
	Reason string // empty when passed
	Actual string // observed value, for the audit trail
}

// VetoResult reports a rejected signal: the first failing gate, its
// reason, and the full audit trail of every gate that ran.
type VetoResult struct {
	Gate    Gate
	Reason  string
	Checked []GateResult
}

// TradeIntent is an admitted signal sized and ready for execution.
type TradeIntent struct {
	CorrelationID string
	Token         string
	AssetClass    AssetClass
	Side          SignalAction
	SizeUSD       float64
	Confidence    float64
	GraphBoosted  bool
	// IdentityHint selects the execution identity; filled by the
	// entropy layer from its rotation set.
	IdentityHint string
	// DelayMs is the jitter the executor must apply before submission.
	DelayMs float64
	// ClusterID and ReservedAt identify the cooldown reservation taken
	// at admission; a later release must use these, not the fill time.
	ClusterID  string
	ReservedAt int64 // Unix ms
	Checked    []GateResult
	Warning    []string
}

// DecisionRecord is the persisted audit row for one pipeline evaluation.
type DecisionRecord struct {
	CorrelationID string
	Token         string
	Wallet        string
	Admitted      bool
	VetoGate      Gate   // empty when admitted
	VetoReason    string // empty when admitted
	Confidence    float64
	SizeUSD       float64
	Gates         []GateResult
	EvaluatedAt   int64 // Unix ms
}
