package domain

// AssetClass classifies a token by market-cap bucket.
// Freshness, age, liquidity and hold-time limits are keyed by it.
type AssetClass string

const (
	AssetClassMemeLowCap AssetClass = "meme_low_cap"
	AssetClassMidCap     AssetClass = "mid_cap"
	AssetClassLargeCap   AssetClass = "large_cap"
)

// Valid reports whether the asset class is one of the known buckets.
func (c AssetClass) Valid() bool {
	switch c {
	case AssetClassMemeLowCap, AssetClassMidCap, AssetClassLargeCap:
		return true
	}
	return false
}

// SignalAction is the action a signal proposes.
type SignalAction string

const (
	SignalActionBuy  SignalAction = "BUY"
	SignalActionSell SignalAction = "SELL"
)

// SignalSource tags where a signal came from.
type SignalSource string

const (
	// SignalSourceWallet is a direct whale-wallet observation.
	SignalSourceWallet SignalSource = "WALLET"
	// SignalSourceGraph is derived from the funding graph (insider lookup).
	// Graph-sourced signals are disabled in capital preservation mode and
	// under the graph kill switch.
	SignalSourceGraph SignalSource = "GRAPH"
)

// Signal is a detected market signal. Immutable once created; it lives
// until consumed by the admission pipeline or expires.
type Signal struct {
	Wallet     string       // originating wallet address
	Token      string       // token mint address
	AssetClass AssetClass   // meme_low_cap | mid_cap | large_cap
	Action     SignalAction // BUY | SELL
	AmountUSD  float64      // observed trade size
	Price      float64      // token price at detection
	CreatedAt  int64        // Unix timestamp in milliseconds
	Source     SignalSource // WALLET | GRAPH
	Confidence float64      // base confidence assigned by the detector
}
