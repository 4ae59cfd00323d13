// Package exitmanager evaluates exit rules for open positions on each
// market tick. Rules run in a fixed order and the first match wins; the
// panic rule is checked first and is never suppressed by minimum holds.
// These rules cannot be disabled by configuration.
package exitmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/storage"
)

const (
	panicWindow          = 5 * time.Minute
	panicPriceDrop       = 0.15
	panicLiquidityDrop   = 0.30
	trailingArmGain      = 0.10
	trailingStopFromPeak = 0.95
	whaleInactivityAge   = 24 * time.Hour
	whaleCloseFraction   = 0.5
)

var maxHold = map[domain.AssetClass]time.Duration{
	domain.AssetClassMemeLowCap: 24 * time.Hour,
	domain.AssetClassMidCap:     48 * time.Hour,
	domain.AssetClassLargeCap:   72 * time.Hour,
}

var minHold = map[domain.AssetClass]time.Duration{
	domain.AssetClassMemeLowCap: 12 * time.Hour,
	domain.AssetClassMidCap:     24 * time.Hour,
	domain.AssetClassLargeCap:   48 * time.Hour,
}

// Tick is one market observation for a position's token.
type Tick struct {
	Price        float64
	LiquidityUSD float64
	At           time.Time
}

type histPoint struct {
	price     float64
	liquidity float64
	at        int64 // Unix ms
}

// Manager owns exit evaluation for all open positions.
type Manager struct {
	positions storage.PositionStore
	sink      events.Sink
	log       *logrus.Entry

	mu      sync.Mutex
	history map[string][]histPoint // positionID -> panic window
}

// NewManager creates an exit manager over the position store.
func NewManager(positions storage.PositionStore, sink events.Sink) *Manager {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Manager{
		positions: positions,
		sink:      sink,
		log:       logrus.WithField("component", "exitmanager"),
		history:   make(map[string][]histPoint),
	}
}

// Evaluate applies one tick to a position: updates peak and trailing
// state, then runs the exit rules in order. Returns nil when the
// position stays open.
func (m *Manager) Evaluate(ctx context.Context, positionID string, tick Tick) (*domain.ExitDecision, error) {
	p, err := m.positions.Get(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}

	if tick.Price > p.PeakPrice {
		p.PeakPrice = tick.Price
	}
	if !p.TrailingArmed && p.EntryPrice > 0 && tick.Price >= p.EntryPrice*(1+trailingArmGain) {
		p.TrailingArmed = true
	}
	if err := m.positions.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("persist position state: %w", err)
	}

	window := m.recordTick(positionID, tick)
	decision := m.decide(p, tick, window)
	if decision != nil {
		m.emit(decision, tick.At)
	}
	return decision, nil
}

// recordTick appends the tick to the panic window and returns the
// pruned window, oldest first.
func (m *Manager) recordTick(positionID string, tick Tick) []histPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := tick.At.Add(-panicWindow).UnixMilli()
	kept := m.history[positionID][:0]
	for _, h := range m.history[positionID] {
		if h.at >= cutoff {
			kept = append(kept, h)
		}
	}
	kept = append(kept, histPoint{price: tick.Price, liquidity: tick.LiquidityUSD, at: tick.At.UnixMilli()})
	m.history[positionID] = kept
	return kept
}

func (m *Manager) decide(p *domain.OpenPosition, tick Tick, window []histPoint) *domain.ExitDecision {
	// Panic first; minimum holds never suppress it.
	if len(window) > 1 {
		ref := window[0]
		if ref.price > 0 && ref.liquidity > 0 {
			priceDrop := (ref.price - tick.Price) / ref.price
			liqDrop := (ref.liquidity - tick.LiquidityUSD) / ref.liquidity
			if priceDrop > panicPriceDrop && liqDrop > panicLiquidityDrop {
				return &domain.ExitDecision{
					PositionID:    p.PositionID,
					CorrelationID: p.CorrelationID,
					Reason:        domain.ExitReasonPanic,
					CloseFraction: 1.0,
					Detail:        fmt.Sprintf("price -%.1f%% liquidity -%.1f%% in 5m", priceDrop*100, liqDrop*100),
				}
			}
		}
	}

	age := time.Duration(tick.At.UnixMilli()-p.EntryTime) * time.Millisecond
	if limit, ok := maxHold[p.AssetClass]; ok && age >= limit {
		return &domain.ExitDecision{
			PositionID:    p.PositionID,
			CorrelationID: p.CorrelationID,
			Reason:        domain.ExitReasonTimeStop,
			CloseFraction: 1.0,
			Detail:        fmt.Sprintf("held %s of %s max", age.Round(time.Minute), limit),
		}
	}

	// Minimum hold suppresses every remaining rule.
	if floor, ok := minHold[p.AssetClass]; ok && age < floor {
		return nil
	}

	if p.TrailingArmed && p.PeakPrice > 0 && tick.Price <= p.PeakPrice*trailingStopFromPeak {
		return &domain.ExitDecision{
			PositionID:    p.PositionID,
			CorrelationID: p.CorrelationID,
			Reason:        domain.ExitReasonTrailingStop,
			CloseFraction: 1.0,
			Detail:        fmt.Sprintf("price %.6f at or below peak %.6f * %.2f", tick.Price, p.PeakPrice, trailingStopFromPeak),
		}
	}

	if p.WhaleLastSeen > 0 {
		idle := time.Duration(tick.At.UnixMilli()-p.WhaleLastSeen) * time.Millisecond
		if idle >= whaleInactivityAge {
			return &domain.ExitDecision{
				PositionID:    p.PositionID,
				CorrelationID: p.CorrelationID,
				Reason:        domain.ExitReasonWhaleInactivity,
				CloseFraction: whaleCloseFraction,
				Detail:        fmt.Sprintf("whale %s idle %s", p.WhaleWallet, idle.Round(time.Hour)),
			}
		}
	}
	return nil
}

// ForceClose produces a manual or kill-switch exit decision for a
// position, bypassing every rule.
func (m *Manager) ForceClose(ctx context.Context, positionID string, reason domain.ExitReason, now time.Time) (*domain.ExitDecision, error) {
	p, err := m.positions.Get(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	d := &domain.ExitDecision{
		PositionID:    p.PositionID,
		CorrelationID: p.CorrelationID,
		Reason:        reason,
		CloseFraction: 1.0,
		Detail:        "forced close",
	}
	m.emit(d, now)
	return d, nil
}

// ApplyDecision mutates the store after the close executed: a full
// close deletes the position, a partial close shrinks it.
func (m *Manager) ApplyDecision(ctx context.Context, d *domain.ExitDecision) error {
	if d.CloseFraction >= 1.0 {
		m.mu.Lock()
		delete(m.history, d.PositionID)
		m.mu.Unlock()
		if err := m.positions.Delete(ctx, d.PositionID); err != nil {
			return fmt.Errorf("delete closed position: %w", err)
		}
		return nil
	}

	p, err := m.positions.Get(ctx, d.PositionID)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	p.SizeUSD *= 1 - d.CloseFraction
	if err := m.positions.Update(ctx, p); err != nil {
		return fmt.Errorf("shrink position: %w", err)
	}
	return nil
}

// RecordWhaleActivity stamps fresh activity for every open position
// tracking the wallet.
func (m *Manager) RecordWhaleActivity(ctx context.Context, wallet string, now time.Time) error {
	open, err := m.positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	for _, p := range open {
		if p.WhaleWallet != wallet {
			continue
		}
		p.WhaleLastSeen = now.UnixMilli()
		if err := m.positions.Update(ctx, p); err != nil {
			return fmt.Errorf("update whale activity: %w", err)
		}
	}
	return nil
}

func (m *Manager) emit(d *domain.ExitDecision, at time.Time) {
	m.log.WithFields(logrus.Fields{
		"position_id":    d.PositionID,
		"reason":         d.Reason,
		"close_fraction": d.CloseFraction,
	}).Info("exit decision")

	m.sink.Emit(events.Event{
		CorrelationID: d.CorrelationID,
		Type:          events.TypeTradeExit,
		Severity:      events.SeverityWarning,
		At:            at.UnixMilli(),
		Fields: map[string]string{
			"position_id":    d.PositionID,
			"reason":         string(d.Reason),
			"close_fraction": fmt.Sprintf("%.2f", d.CloseFraction),
			"detail":         d.Detail,
		},
	})
}
