package exitmanager

import (
	"context"
	"testing"
	"time"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
	"trade-sentinel/internal/storage/memory"
)

func newTestManager(t *testing.T, p *domain.OpenPosition) (*Manager, *memory.PositionStore) {
	t.Helper()
	store := memory.NewPositionStore()
	if err := store.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert position: %v", err)
	}
	return NewManager(store, nil), store
}

func memePosition(entry time.Time) *domain.OpenPosition {
	return &domain.OpenPosition{
		PositionID:    "pos-1",
		CorrelationID: "corr-1",
		Token:         "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		AssetClass:    domain.AssetClassMemeLowCap,
		EntryPrice:    1.00,
		EntryTime:     entry.UnixMilli(),
		SizeUSD:       100,
		PeakPrice:     1.00,
		WhaleWallet:   "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
		WhaleLastSeen: entry.UnixMilli(),
	}
}

func tick(price, liq float64, at time.Time) Tick {
	return Tick{Price: price, LiquidityUSD: liq, At: at}
}

func TestTrailingStopArmsAndCloses(t *testing.T) {
	ctx := context.Background()
	entry := time.Now().Add(-13 * time.Hour) // past the 12h minimum hold
	m, store := newTestManager(t, memePosition(entry))
	now := time.Now()

	// Rally to $1.50: arms the trailing stop and sets the peak.
	d, err := m.Evaluate(ctx, "pos-1", tick(1.50, 50000, now))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d != nil {
		t.Fatalf("exit at the peak: %+v", d)
	}
	p, _ := store.Get(ctx, "pos-1")
	if !p.TrailingArmed || p.PeakPrice != 1.50 {
		t.Fatalf("position = %+v, want armed with peak 1.50", p)
	}

	// $1.43 is above peak*0.95 = 1.425: stays open.
	d, err = m.Evaluate(ctx, "pos-1", tick(1.43, 50000, now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d != nil {
		t.Fatalf("exit at 1.43 with peak 1.50: %+v", d)
	}

	// $1.425 touches the stop: full close.
	d, err = m.Evaluate(ctx, "pos-1", tick(1.425, 50000, now.Add(2*time.Minute)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d == nil || d.Reason != domain.ExitReasonTrailingStop || d.CloseFraction != 1.0 {
		t.Fatalf("decision = %+v, want full TRAILING_STOP close", d)
	}
}

func TestTrailingNeverArmsBelowTenPercentGain(t *testing.T) {
	ctx := context.Background()
	entry := time.Now().Add(-13 * time.Hour)
	m, store := newTestManager(t, memePosition(entry))
	now := time.Now()

	if _, err := m.Evaluate(ctx, "pos-1", tick(1.09, 50000, now)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	p, _ := store.Get(ctx, "pos-1")
	if p.TrailingArmed {
		t.Error("armed at +9%, want unarmed below +10%")
	}
}

func TestMinimumHoldSuppressesTrailing(t *testing.T) {
	ctx := context.Background()
	entry := time.Now().Add(-2 * time.Hour) // inside the 12h minimum hold
	m, _ := newTestManager(t, memePosition(entry))
	now := time.Now()

	if _, err := m.Evaluate(ctx, "pos-1", tick(1.50, 50000, now)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d, err := m.Evaluate(ctx, "pos-1", tick(1.30, 50000, now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d != nil {
		t.Errorf("trailing exit inside minimum hold: %+v", d)
	}
}

func TestPanicIgnoresMinimumHold(t *testing.T) {
	ctx := context.Background()
	entry := time.Now().Add(-time.Hour) // well inside the minimum hold
	m, _ := newTestManager(t, memePosition(entry))
	now := time.Now()

	if _, err := m.Evaluate(ctx, "pos-1", tick(1.00, 100000, now)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d, err := m.Evaluate(ctx, "pos-1", tick(0.80, 60000, now.Add(4*time.Minute)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d == nil || d.Reason != domain.ExitReasonPanic || d.CloseFraction != 1.0 {
		t.Fatalf("decision = %+v, want full PANIC close", d)
	}
}

func TestPanicRequiresBothDrops(t *testing.T) {
	ctx := context.Background()
	entry := time.Now().Add(-time.Hour)
	m, _ := newTestManager(t, memePosition(entry))
	now := time.Now()

	// Price collapses but liquidity holds: not a panic.
	if _, err := m.Evaluate(ctx, "pos-1", tick(1.00, 100000, now)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d, err := m.Evaluate(ctx, "pos-1", tick(0.80, 95000, now.Add(4*time.Minute)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d != nil {
		t.Errorf("panic on price drop alone: %+v", d)
	}
}

func TestPanicWindowExpires(t *testing.T) {
	ctx := context.Background()
	entry := time.Now().Add(-time.Hour)
	m, _ := newTestManager(t, memePosition(entry))
	now := time.Now()

	// The same collapse spread over 20 minutes is not a panic.
	if _, err := m.Evaluate(ctx, "pos-1", tick(1.00, 100000, now)); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	d, err := m.Evaluate(ctx, "pos-1", tick(0.80, 60000, now.Add(20*time.Minute)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d != nil {
		t.Errorf("panic across an expired window: %+v", d)
	}
}

func TestTimeStopClosesRegardlessOfPnL(t *testing.T) {
	ctx := context.Background()
	entry := time.Now().Add(-25 * time.Hour) // past the 24h meme max hold
	m, _ := newTestManager(t, memePosition(entry))

	d, err := m.Evaluate(ctx, "pos-1", tick(2.00, 100000, time.Now()))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d == nil || d.Reason != domain.ExitReasonTimeStop || d.CloseFraction != 1.0 {
		t.Fatalf("decision = %+v, want full TIME_STOP close at a profit", d)
	}
}

func TestWhaleInactivityHalvesPosition(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	p := memePosition(now.Add(-14 * time.Hour))
	p.WhaleLastSeen = now.Add(-25 * time.Hour).UnixMilli()
	m, store := newTestManager(t, p)

	d, err := m.Evaluate(ctx, "pos-1", tick(1.00, 50000, now))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d == nil || d.Reason != domain.ExitReasonWhaleInactivity || d.CloseFraction != 0.5 {
		t.Fatalf("decision = %+v, want WHALE_INACTIVITY at 0.5", d)
	}

	if err := m.ApplyDecision(ctx, d); err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	got, _ := store.Get(ctx, "pos-1")
	if got.SizeUSD != 50 {
		t.Errorf("size after half close = %v, want 50", got.SizeUSD)
	}
}

func TestWhaleActivityResetsInactivity(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	p := memePosition(now.Add(-14 * time.Hour))
	p.WhaleLastSeen = now.Add(-25 * time.Hour).UnixMilli()
	m, _ := newTestManager(t, p)

	if err := m.RecordWhaleActivity(ctx, p.WhaleWallet, now.Add(-time.Hour)); err != nil {
		t.Fatalf("RecordWhaleActivity: %v", err)
	}
	d, err := m.Evaluate(ctx, "pos-1", tick(1.00, 50000, now))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d != nil {
		t.Errorf("exit after fresh whale activity: %+v", d)
	}
}

func TestApplyFullCloseDeletes(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, memePosition(time.Now().Add(-25*time.Hour)))

	d, err := m.Evaluate(ctx, "pos-1", tick(1.00, 50000, time.Now()))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d == nil {
		t.Fatal("no decision for an expired position")
	}
	if err := m.ApplyDecision(ctx, d); err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if _, err := store.Get(ctx, "pos-1"); err != storage.ErrNotFound {
		t.Errorf("Get after full close = %v, want ErrNotFound", err)
	}
}

func TestForceClose(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, memePosition(time.Now()))

	d, err := m.ForceClose(ctx, "pos-1", domain.ExitReasonKillSwitch, time.Now())
	if err != nil {
		t.Fatalf("ForceClose: %v", err)
	}
	if d.Reason != domain.ExitReasonKillSwitch || d.CloseFraction != 1.0 {
		t.Errorf("decision = %+v, want full KILL_SWITCH close", d)
	}
}
