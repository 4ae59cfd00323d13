// Package risk owns the system-wide risk mode, drawdown tracking,
// phase-scaled position sizing and the early-trade restrictions. All
// transitions are atomic read-modify-write under one lock and persisted
// before they take effect for callers.
package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/storage"
)

var (
	// ErrManualResumeRequired is returned when an automatic path tries to
	// leave a halted mode. Halted modes only clear by operator action.
	ErrManualResumeRequired = errors.New("risk: manual resume required")

	// ErrObservationWindow is returned when a graph kill-switch resume is
	// attempted before the 72h observation window has elapsed.
	ErrObservationWindow = errors.New("risk: observation window not elapsed")
)

const (
	capitalPreservationDrawdown = 0.15
	drawdownWarnFirst           = 0.10
	drawdownWarnSecond          = 0.15

	killConsecutiveLosses = 3
	killWinRateWindow     = 20
	killWinRateFloor      = 0.40
	killDailyDrawdown     = 0.20

	graphKillPromotions24h = 10
	graphKillOverlapPairs  = 5
	graphKillWinRateFloor  = 0.40
	graphWinRateWindow     = 7 * 24 * time.Hour
	graphWinRateMinTrades  = 5

	// graphObservationWindow must elapse after a graph kill switch
	// activates before any resume is accepted, whatever mode the
	// machine is in by then.
	graphObservationWindow = 72 * time.Hour

	dailyDrawdownWindow = 24 * time.Hour
)

type outcome struct {
	win   bool
	graph bool
	at    int64 // Unix ms
}

type capitalMark struct {
	capital float64
	at      int64 // Unix ms
}

// Machine is the risk state machine. One instance per process.
type Machine struct {
	mu    sync.Mutex
	state domain.RiskState
	store storage.RiskStateStore
	sink  events.Sink
	log   *logrus.Entry

	recent       []outcome // trailing trade outcomes, pruned to windows
	consecLosses int
	marks        []capitalMark // capital history for the 24h drawdown check

	warnedFirst  bool
	warnedSecond bool
}

// NewMachine loads persisted state or initializes a fresh one at the
// given starting capital in NORMAL mode, phase 1.
func NewMachine(ctx context.Context, store storage.RiskStateStore, sink events.Sink, startingCapital float64, now time.Time) (*Machine, error) {
	if sink == nil {
		sink = events.NopSink{}
	}
	m := &Machine{
		store: store,
		sink:  sink,
		log:   logrus.WithField("component", "risk"),
	}

	st, err := store.Load(ctx)
	switch {
	case err == nil:
		if ierr := st.CheckIntegrity(); ierr != nil {
			return nil, ierr
		}
		m.state = *st
	case err == storage.ErrNotFound:
		m.state = domain.RiskState{
			Mode:        domain.RiskModeNormal,
			Capital:     startingCapital,
			PeakCapital: startingCapital,
			Phase:       1,
			ModeSince:   now.UnixMilli(),
		}
		if err := store.Save(ctx, &m.state); err != nil {
			return nil, fmt.Errorf("save initial risk state: %w", err)
		}
	default:
		return nil, fmt.Errorf("load risk state: %w", err)
	}

	m.marks = append(m.marks, capitalMark{capital: m.state.Capital, at: now.UnixMilli()})
	return m, nil
}

// Snapshot returns a consistent copy of the current state.
func (m *Machine) Snapshot() domain.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns the current risk mode.
func (m *Machine) Mode() domain.RiskMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Mode
}

// transition switches mode, stamps it and persists, emitting an event.
// Caller holds the lock.
func (m *Machine) transition(ctx context.Context, to domain.RiskMode, reason string, now time.Time) error {
	from := m.state.Mode
	if from == to {
		return nil
	}
	prev := m.state
	m.state.Mode = to
	m.state.ModeSince = now.UnixMilli()
	if to == domain.RiskModeKillSwitchGraph {
		m.state.GraphObservationUntil = now.Add(graphObservationWindow).UnixMilli()
	}
	if err := m.store.Save(ctx, &m.state); err != nil {
		// Roll back: the persisted state is the state.
		m.state = prev
		return fmt.Errorf("persist mode transition: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"from":   from,
		"to":     to,
		"reason": reason,
	}).Warn("risk mode transition")

	m.sink.Emit(events.Event{
		Type:     transitionEventType(from, to),
		Severity: events.SeverityCritical,
		At:       now.UnixMilli(),
		Fields:   map[string]string{"from": string(from), "to": string(to), "reason": reason},
	})
	return nil
}

func transitionEventType(from, to domain.RiskMode) events.Type {
	switch to {
	case domain.RiskModeKillSwitchFull, domain.RiskModeKillSwitchGraph:
		return events.TypeKillSwitchOn
	case domain.RiskModeCapitalPreservation:
		return events.TypeCapitalPreservationOn
	case domain.RiskModeNormal:
		if from == domain.RiskModeCapitalPreservation {
			return events.TypeCapitalPreservationOff
		}
		return events.TypeKillSwitchOff
	}
	return events.TypeKillSwitchOn
}

// RecordOutcome applies a closed trade's PnL to capital and runs every
// automatic transition check. graphSourced marks trades admitted off a
// graph signal.
func (m *Machine) RecordOutcome(ctx context.Context, pnl float64, graphSourced bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Capital += pnl
	if m.state.Capital < 0 {
		m.state.Capital = 0
	}
	if m.state.Capital > m.state.PeakCapital {
		m.state.PeakCapital = m.state.Capital
	}

	win := pnl > 0
	if win {
		m.consecLosses = 0
	} else {
		m.consecLosses++
	}
	m.recent = append(m.recent, outcome{win: win, graph: graphSourced, at: now.UnixMilli()})
	m.pruneWindows(now)
	m.marks = append(m.marks, capitalMark{capital: m.state.Capital, at: now.UnixMilli()})

	if err := m.store.Save(ctx, &m.state); err != nil {
		return fmt.Errorf("persist outcome: %w", err)
	}

	m.emitDrawdownWarnings(now)

	if reason := m.fullKillReason(now); reason != "" && !m.state.Mode.Halted() {
		return m.transition(ctx, domain.RiskModeKillSwitchFull, reason, now)
	}
	if reason := m.graphWinRateKillReason(); reason != "" && m.state.Mode != domain.RiskModeKillSwitchGraph && !m.state.Mode.Halted() {
		return m.transition(ctx, domain.RiskModeKillSwitchGraph, reason, now)
	}
	if m.state.Mode == domain.RiskModeNormal && m.state.Drawdown() >= capitalPreservationDrawdown {
		return m.transition(ctx, domain.RiskModeCapitalPreservation, "drawdown threshold", now)
	}
	return nil
}

// pruneWindows drops outcomes and capital marks older than their windows.
// The win-rate window is count-based; graph win rate and daily drawdown
// are time-based. Caller holds the lock.
func (m *Machine) pruneWindows(now time.Time) {
	graphCutoff := now.Add(-graphWinRateWindow).UnixMilli()
	kept := m.recent[:0]
	for _, o := range m.recent {
		if o.at >= graphCutoff {
			kept = append(kept, o)
		}
	}
	m.recent = kept

	markCutoff := now.Add(-dailyDrawdownWindow).UnixMilli()
	marks := m.marks[:0]
	for _, c := range m.marks {
		if c.at >= markCutoff {
			marks = append(marks, c)
		}
	}
	m.marks = marks
}

// fullKillReason checks the three automatic full kill-switch triggers.
// Caller holds the lock.
func (m *Machine) fullKillReason(now time.Time) string {
	if m.consecLosses >= killConsecutiveLosses {
		return fmt.Sprintf("%d consecutive losses", m.consecLosses)
	}

	if len(m.recent) >= killWinRateWindow {
		window := m.recent[len(m.recent)-killWinRateWindow:]
		wins := 0
		for _, o := range window {
			if o.win {
				wins++
			}
		}
		wr := float64(wins) / float64(killWinRateWindow)
		if wr < killWinRateFloor {
			return fmt.Sprintf("win rate %.2f over last %d trades", wr, killWinRateWindow)
		}
	}

	maxCap := 0.0
	for _, c := range m.marks {
		if c.capital > maxCap {
			maxCap = c.capital
		}
	}
	if maxCap > 0 {
		dd := (maxCap - m.state.Capital) / maxCap
		if dd > killDailyDrawdown {
			return fmt.Sprintf("%.1f%% drawdown in 24h", dd*100)
		}
	}
	return ""
}

// graphWinRateKillReason checks the trailing graph-trade win rate.
// Caller holds the lock.
func (m *Machine) graphWinRateKillReason() string {
	wins, total := 0, 0
	for _, o := range m.recent {
		if !o.graph {
			continue
		}
		total++
		if o.win {
			wins++
		}
	}
	if total < graphWinRateMinTrades {
		return ""
	}
	wr := float64(wins) / float64(total)
	if wr < graphKillWinRateFloor {
		return fmt.Sprintf("graph win rate %.2f over 7d (%d trades)", wr, total)
	}
	return ""
}

// emitDrawdownWarnings warns at the 10 and 15 percent thresholds, once per
// excursion, independent of any mode transition. Caller holds the lock.
func (m *Machine) emitDrawdownWarnings(now time.Time) {
	dd := m.state.Drawdown()
	if dd < drawdownWarnFirst {
		m.warnedFirst = false
		m.warnedSecond = false
		return
	}
	if !m.warnedFirst {
		m.warnedFirst = true
		m.warn(dd, drawdownWarnFirst, now)
	}
	if dd >= drawdownWarnSecond && !m.warnedSecond {
		m.warnedSecond = true
		m.warn(dd, drawdownWarnSecond, now)
	}
}

func (m *Machine) warn(dd, threshold float64, now time.Time) {
	m.sink.Emit(events.Event{
		Type:     events.TypeDrawdownWarning,
		Severity: events.SeverityWarning,
		At:       now.UnixMilli(),
		Fields: map[string]string{
			"drawdown":  fmt.Sprintf("%.4f", dd),
			"threshold": fmt.Sprintf("%.2f", threshold),
		},
	})
}

// EvaluateGraphHealth applies the structural graph kill-switch triggers:
// promotion rate and cluster overlap. Called by the scheduler after each
// graph scan.
func (m *Machine) EvaluateGraphHealth(ctx context.Context, promotions24h, overlapPairs int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode == domain.RiskModeKillSwitchGraph || m.state.Mode.Halted() {
		return nil
	}
	if promotions24h > graphKillPromotions24h {
		return m.transition(ctx, domain.RiskModeKillSwitchGraph,
			fmt.Sprintf("%d mother promotions in 24h", promotions24h), now)
	}
	if overlapPairs > graphKillOverlapPairs {
		return m.transition(ctx, domain.RiskModeKillSwitchGraph,
			fmt.Sprintf("%d overlapping cluster pairs", overlapPairs), now)
	}
	return nil
}

// ManualKillSwitch forces KILL_SWITCH_FULL.
func (m *Machine) ManualKillSwitch(ctx context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(ctx, domain.RiskModeKillSwitchFull, "manual trigger", now)
}

// TryAutoResume is called when monitors observe recovery. Leaving a
// reduced or halted mode is an operator decision, so this refuses for
// every mode other than NORMAL.
func (m *Machine) TryAutoResume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode == domain.RiskModeNormal {
		return nil
	}
	return fmt.Errorf("%w: mode %s", ErrManualResumeRequired, m.state.Mode)
}

// ManualResume clears CAPITAL_PRESERVATION or a kill switch back to
// NORMAL, recording who approved it. The graph observation window is
// checked against its persisted deadline, not the current mode, so an
// escalation to the full kill switch cannot shortcut it.
func (m *Machine) ManualResume(ctx context.Context, approvedBy string, now time.Time) error {
	if approvedBy == "" {
		return fmt.Errorf("risk: resume approver required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Mode == domain.RiskModeNormal {
		return nil
	}
	if until := m.state.GraphObservationUntil; until > now.UnixMilli() {
		remaining := time.Duration(until-now.UnixMilli()) * time.Millisecond
		return fmt.Errorf("%w: %s remaining of %s", ErrObservationWindow,
			remaining.Round(time.Minute), graphObservationWindow)
	}
	return m.transition(ctx, domain.RiskModeNormal, "manual resume by "+approvedBy, now)
}
