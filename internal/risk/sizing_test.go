package risk

import (
	"context"
	"testing"
	"time"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage/memory"
)

func TestPositionSizePhaseOne(t *testing.T) {
	st := &domain.RiskState{
		Mode:       domain.RiskModeNormal,
		Capital:    1000,
		Phase:      1,
		TradeCount: 100,
	}
	// min(1000*0.02/0.5, 1000*0.10) = min(40, 100) = 40.
	if got := positionSize(st, 0.5); got != 40 {
		t.Errorf("size = %v, want 40", got)
	}
}

func TestPositionSizeCapsAtMaxPosition(t *testing.T) {
	st := &domain.RiskState{
		Mode:       domain.RiskModeNormal,
		Capital:    1000,
		Phase:      1,
		TradeCount: 100,
	}
	// 1000*0.02/0.1 = 200, capped at 100.
	if got := positionSize(st, 0.1); got != 100 {
		t.Errorf("size = %v, want capped at 100", got)
	}
}

func TestPositionSizeUnknownPhaseIsConservative(t *testing.T) {
	for _, phase := range []domain.Phase{0, 5, -1} {
		st := &domain.RiskState{
			Mode:       domain.RiskModeNormal,
			Capital:    1000,
			Phase:      phase,
			TradeCount: 100,
		}
		if got := positionSize(st, 0.5); got != 40 {
			t.Errorf("phase %d size = %v, want phase-1 sizing of 40", phase, got)
		}
	}
}

func TestPositionSizeCapitalPreservationQuarters(t *testing.T) {
	st := &domain.RiskState{
		Mode:       domain.RiskModeCapitalPreservation,
		Capital:    1000,
		Phase:      1,
		TradeCount: 100,
	}
	if got := positionSize(st, 0.5); got != 10 {
		t.Errorf("size = %v, want 40*0.25 = 10", got)
	}
}

func TestPositionSizeEarlyTradeCap(t *testing.T) {
	st := &domain.RiskState{
		Mode:       domain.RiskModeNormal,
		Capital:    1000,
		Phase:      1,
		TradeCount: 10,
	}
	// Phase sizing gives 40, the early-account cap holds it at 3%.
	if got := positionSize(st, 0.5); got != 30 {
		t.Errorf("size = %v, want early cap of 30", got)
	}
}

func TestPositionSizeZeroConfidence(t *testing.T) {
	st := &domain.RiskState{
		Mode:       domain.RiskModeNormal,
		Capital:    1000,
		Phase:      1,
		TradeCount: 100,
	}
	if got := positionSize(st, 0); got != 0 {
		t.Errorf("size at zero confidence = %v, want 0", got)
	}
}

func TestEarlyTradeCalendarDayLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	m, _ := newTestMachine(t, 10000, now)
	if reason := m.CheckEarlyTradeLimits(now); reason != "" {
		t.Fatalf("first trade refused: %q", reason)
	}
	if err := m.RegisterTrade(ctx, now); err != nil {
		t.Fatalf("RegisterTrade: %v", err)
	}

	if reason := m.CheckEarlyTradeLimits(now.Add(2 * time.Hour)); reason == "" {
		t.Error("second trade on the same day allowed, want refusal")
	}
	if reason := m.CheckEarlyTradeLimits(now.Add(25 * time.Hour)); reason != "" {
		t.Errorf("next-day trade refused: %q", reason)
	}
}

func TestEarlyTradeWeeklyLimit(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	m, _ := newTestMachine(t, 10000, start)
	for day := 0; day < 5; day++ {
		at := start.Add(time.Duration(day) * 24 * time.Hour)
		if reason := m.CheckEarlyTradeLimits(at); reason != "" {
			t.Fatalf("trade on day %d refused: %q", day, reason)
		}
		if err := m.RegisterTrade(ctx, at); err != nil {
			t.Fatalf("RegisterTrade day %d: %v", day, err)
		}
	}

	// Sixth calendar day, still inside the first week: refused.
	if reason := m.CheckEarlyTradeLimits(start.Add(5 * 24 * time.Hour)); reason == "" {
		t.Error("sixth trade inside first week allowed, want refusal")
	}
	// After the first week the weekly cap no longer applies.
	if reason := m.CheckEarlyTradeLimits(start.Add(8 * 24 * time.Hour)); reason != "" {
		t.Errorf("trade after first week refused: %q", reason)
	}
}

func TestEarlyTradeLimitsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := memory.NewRiskStateStore()

	m, err := NewMachine(ctx, store, nil, 10000, now)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if err := m.RegisterTrade(ctx, now); err != nil {
		t.Fatalf("RegisterTrade: %v", err)
	}

	// A fresh machine over the same store must still know about today's
	// trade.
	m2, err := NewMachine(ctx, store, nil, 10000, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("NewMachine after restart: %v", err)
	}
	if reason := m2.CheckEarlyTradeLimits(now.Add(2 * time.Hour)); reason == "" {
		t.Error("second same-day trade allowed after restart, want refusal")
	}
	if reason := m2.CheckEarlyTradeLimits(now.Add(25 * time.Hour)); reason != "" {
		t.Errorf("next-day trade refused after restart: %q", reason)
	}
}

func TestEarlyTradeWeeklyLimitSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	store := memory.NewRiskStateStore()

	m, err := NewMachine(ctx, store, nil, 10000, start)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	for day := 0; day < 5; day++ {
		if err := m.RegisterTrade(ctx, start.Add(time.Duration(day)*24*time.Hour)); err != nil {
			t.Fatalf("RegisterTrade day %d: %v", day, err)
		}
	}

	m2, err := NewMachine(ctx, store, nil, 10000, start.Add(5*24*time.Hour))
	if err != nil {
		t.Fatalf("NewMachine after restart: %v", err)
	}
	if reason := m2.CheckEarlyTradeLimits(start.Add(5*24*time.Hour + time.Hour)); reason == "" {
		t.Error("sixth first-week trade allowed after restart, want refusal")
	}
}

func TestEarlyRestrictionLiftsAtFiftyTrades(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m, _ := newTestMachine(t, 10000, now)
	at := now
	for i := 0; i < 50; i++ {
		at = at.Add(24 * time.Hour)
		if err := m.RegisterTrade(ctx, at); err != nil {
			t.Fatalf("RegisterTrade %d: %v", i, err)
		}
	}
	if m.EarlyRestricted() {
		t.Error("EarlyRestricted after 50 trades, want lifted")
	}
	if reason := m.CheckEarlyTradeLimits(at); reason != "" {
		t.Errorf("same-day trade refused after 50 trades: %q", reason)
	}
}
