package scheduler

import (
	"context"
	"testing"
	"time"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/exitmanager"
	"trade-sentinel/internal/gate"
	"trade-sentinel/internal/risk"
	"trade-sentinel/internal/simaccuracy"
	"trade-sentinel/internal/storage"
	"trade-sentinel/internal/storage/memory"
	"trade-sentinel/internal/trust"
)

type stubMarket struct {
	facts *gate.MarketFacts
	err   error
}

func (s *stubMarket) Facts(context.Context, string) (*gate.MarketFacts, error) {
	return s.facts, s.err
}

func f64(v float64) *float64 { return &v }

type stubReporter struct {
	calls       int
	lastPnl     float64
	lastGraph   bool
	lastLossPct float64
}

func (r *stubReporter) ReportOutcome(_ context.Context, _ string, pnl, lossPct float64, graphSourced bool, _ time.Time) error {
	r.calls++
	r.lastPnl = pnl
	r.lastLossPct = lossPct
	r.lastGraph = graphSourced
	return nil
}

type testDeps struct {
	scheduler *Scheduler
	machine   *risk.Machine
	positions *memory.PositionStore
	wallets   *memory.WalletStore
	reporter  *stubReporter
}

func newTestScheduler(t *testing.T, market *stubMarket) *testDeps {
	t.Helper()
	ctx := context.Background()

	machine, err := risk.NewMachine(ctx, memory.NewRiskStateStore(), nil, 10000, time.Now())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}

	wallets := memory.NewWalletStore()
	graph := trust.NewGraph(wallets, memory.NewFundingEdgeStore(), nil)
	positions := memory.NewPositionStore()
	exits := exitmanager.NewManager(positions, nil)
	tracker := simaccuracy.NewTracker(memory.NewSampleStore())

	reporter := &stubReporter{}
	s := New(DefaultConfig(), graph, machine, exits, tracker, positions, market, reporter, nil, nil, nil)
	return &testDeps{scheduler: s, machine: machine, positions: positions, wallets: wallets, reporter: reporter}
}

func TestRunExitTickClosesExpiredPosition(t *testing.T) {
	market := &stubMarket{facts: &gate.MarketFacts{
		Bid:              f64(1.0),
		PoolLiquidityUSD: f64(50000),
	}}
	d := newTestScheduler(t, market)
	ctx := context.Background()

	expired := &domain.OpenPosition{
		PositionID:    "pos-old",
		CorrelationID: "corr-1",
		Token:         "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		AssetClass:    domain.AssetClassMemeLowCap,
		EntryPrice:    1.0,
		EntryTime:     time.Now().Add(-25 * time.Hour).UnixMilli(),
		SizeUSD:       200,
		PeakPrice:     1.0,
	}
	fresh := &domain.OpenPosition{
		PositionID:    "pos-new",
		CorrelationID: "corr-2",
		Token:         expired.Token,
		AssetClass:    domain.AssetClassMemeLowCap,
		EntryPrice:    1.0,
		EntryTime:     time.Now().Add(-time.Hour).UnixMilli(),
		SizeUSD:       200,
		PeakPrice:     1.0,
	}
	if err := d.positions.Insert(ctx, expired); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := d.positions.Insert(ctx, fresh); err != nil {
		t.Fatalf("insert: %v", err)
	}

	d.scheduler.runExitTick(ctx)

	if _, err := d.positions.Get(ctx, "pos-old"); err != storage.ErrNotFound {
		t.Errorf("expired position still open: %v", err)
	}
	if _, err := d.positions.Get(ctx, "pos-new"); err != nil {
		t.Errorf("fresh position closed: %v", err)
	}

	// The close feeds back exactly one outcome: flat exit at entry price.
	if d.reporter.calls != 1 {
		t.Errorf("reporter calls = %d, want 1", d.reporter.calls)
	}
	if d.reporter.lastPnl != 0 || d.reporter.lastLossPct != 0 {
		t.Errorf("outcome pnl = %v lossPct = %v, want flat", d.reporter.lastPnl, d.reporter.lastLossPct)
	}
	if d.reporter.lastGraph {
		t.Error("outcome reported as graph-sourced")
	}
}

func TestRunExitTickSkipsOnMissingMarketData(t *testing.T) {
	d := newTestScheduler(t, &stubMarket{facts: nil})
	ctx := context.Background()

	p := &domain.OpenPosition{
		PositionID: "pos-1",
		Token:      "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		AssetClass: domain.AssetClassMemeLowCap,
		EntryPrice: 1.0,
		EntryTime:  time.Now().Add(-25 * time.Hour).UnixMilli(),
		SizeUSD:    200,
		PeakPrice:  1.0,
	}
	if err := d.positions.Insert(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	d.scheduler.runExitTick(ctx)

	// Without a tick the position must stay open even past its max hold.
	if _, err := d.positions.Get(ctx, "pos-1"); err != nil {
		t.Errorf("position closed without market data: %v", err)
	}
}

func TestRunGraphHealthTripsOnPromotionRate(t *testing.T) {
	d := newTestScheduler(t, &stubMarket{})
	ctx := context.Background()
	now := time.Now().UnixMilli()

	// 11 fresh MOTHER promotions exceeds the 24h budget.
	addrs := []string{
		"4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
		"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"So11111111111111111111111111111111111111112",
		"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
		"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		"metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s",
		"SysvarRent111111111111111111111111111111111",
		"SysvarC1ock11111111111111111111111111111111",
		"Vote111111111111111111111111111111111111111",
	}
	for _, a := range addrs {
		w := &domain.Wallet{
			Address:    a,
			Tier:       domain.TierMother,
			Confidence: 0.9,
			WinCount:   5,
			FirstSeen:  now - 1000,
			PromotedAt: now - 1000,
		}
		if err := d.wallets.Upsert(ctx, w); err != nil {
			t.Fatalf("seed wallet: %v", err)
		}
	}

	d.scheduler.runGraphHealth(ctx)

	if got := d.machine.Mode(); got != domain.RiskModeKillSwitchGraph {
		t.Errorf("mode = %s, want KILL_SWITCH_GRAPH", got)
	}
}

func TestRunAutoResumeLeavesKillSwitchAlone(t *testing.T) {
	d := newTestScheduler(t, &stubMarket{})
	ctx := context.Background()

	if err := d.machine.ManualKillSwitch(ctx, time.Now()); err != nil {
		t.Fatalf("ManualKillSwitch: %v", err)
	}

	d.scheduler.runAutoResume(ctx)

	if got := d.machine.Mode(); got != domain.RiskModeKillSwitchFull {
		t.Errorf("mode = %s, want KILL_SWITCH_FULL after auto-resume attempt", got)
	}
}
