package risk

import (
	"context"
	"fmt"
	"time"

	"trade-sentinel/internal/domain"
)

// Early-trade restrictions: while the account has fewer than fifty
// executed trades, size is capped at 3% of capital, graph boosts are
// zeroed, a second trade on the same calendar day is refused, and the
// first week allows at most five trades total.
const (
	earlyTradeCount       = 50
	earlyWeeklyTradeLimit = 5
	earlyWeekWindow       = 7 * 24 * time.Hour
)

// EarlyRestricted reports whether early-trade rules currently apply.
func (m *Machine) EarlyRestricted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.TradeCount < earlyTradeCount
}

// CheckEarlyTradeLimits enforces the calendar-day and first-week caps.
// Both run off persisted state so a restart cannot reset them.
// Returns a non-empty refusal reason when the trade must not proceed.
func (m *Machine) CheckEarlyTradeLimits(now time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.TradeCount >= earlyTradeCount {
		return ""
	}

	if m.state.LastTradeAt > 0 && sameCalendarDay(m.state.LastTradeAt, now) {
		return "second trade in calendar day requires manual approval"
	}

	if m.state.FirstTradeAt > 0 {
		firstWeekEnd := m.state.FirstTradeAt + earlyWeekWindow.Milliseconds()
		if now.UnixMilli() < firstWeekEnd && m.state.FirstWeekTrades >= earlyWeeklyTradeLimit {
			return fmt.Sprintf("first-week trade limit of %d reached", earlyWeeklyTradeLimit)
		}
	}
	return ""
}

func sameCalendarDay(atMs int64, now time.Time) bool {
	return time.UnixMilli(atMs).UTC().Format("2006-01-02") == now.UTC().Format("2006-01-02")
}

// RegisterTrade records an executed trade: increments the lifetime
// count, stamps the first and latest trade, and advances the capital
// phase. Everything the early-trade checks read is persisted here.
func (m *Machine) RegisterTrade(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.TradeCount++
	if m.state.FirstTradeAt == 0 {
		m.state.FirstTradeAt = now.UnixMilli()
	}
	if now.UnixMilli() < m.state.FirstTradeAt+earlyWeekWindow.Milliseconds() {
		m.state.FirstWeekTrades++
	}
	m.state.LastTradeAt = now.UnixMilli()

	m.state.Phase = phaseForCapital(m.state.Capital, m.state.Phase)

	if err := m.store.Save(ctx, &m.state); err != nil {
		return fmt.Errorf("persist trade registration: %w", err)
	}
	return nil
}

// phaseForCapital advances the growth phase as capital compounds. Phases
// never move backward; a drawdown changes mode, not phase.
func phaseForCapital(capital float64, current domain.Phase) domain.Phase {
	var p domain.Phase
	switch {
	case capital >= 100000:
		p = 4
	case capital >= 25000:
		p = 3
	case capital >= 5000:
		p = 2
	default:
		p = 1
	}
	if p < current {
		return current
	}
	return p
}
