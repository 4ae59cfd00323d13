package domain

// ExitReason tags why a position was (partially) closed.
type ExitReason string

const (
	ExitReasonPanic           ExitReason = "PANIC"
	ExitReasonTimeStop        ExitReason = "TIME_STOP"
	ExitReasonTrailingStop    ExitReason = "TRAILING_STOP"
	ExitReasonWhaleInactivity ExitReason = "WHALE_INACTIVITY"
	ExitReasonManual          ExitReason = "MANUAL"
	ExitReasonKillSwitch      ExitReason = "KILL_SWITCH"
)

// OpenPosition is a live position under exit monitoring.
// Corresponds to the open_positions table. Created at trade execution,
// destroyed at full exit.
type OpenPosition struct {
	PositionID    string     // deterministic hash
	CorrelationID string     // threads the signal through its lifecycle
	Token         string     // token mint
	AssetClass    AssetClass // drives hold-time limits
	EntryPrice    float64
	EntryTime     int64   // Unix ms
	SizeUSD       float64 // current open size
	PeakPrice     float64 // max price since entry
	TrailingArmed bool    // set once unrealized gain >= 10%
	WhaleWallet   string  // tracked source wallet
	WhaleLastSeen int64   // Unix ms of last observed whale activity
	GraphSourced  bool    // originating signal came from the funding graph
}

// ExitDecision is the exit manager's verdict for one position on one tick.
type ExitDecision struct {
	PositionID    string
	CorrelationID string
	Reason        ExitReason
	// CloseFraction is the portion of the open size to close: 0.5 for
	// whale inactivity, otherwise 1.0.
	CloseFraction float64
	Detail        string
}
