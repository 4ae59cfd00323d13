// Package engine orchestrates one signal's path through the system:
// snapshot risk state, gather collaborator inputs under a latency
// budget, run the gate pipeline, re-check the kill switch, apply
// entropy, size the trade and write the audit trail.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/entropy"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/gate"
	"trade-sentinel/internal/idhash"
	"trade-sentinel/internal/observability"
	"trade-sentinel/internal/risk"
	"trade-sentinel/internal/simaccuracy"
	"trade-sentinel/internal/storage"
	"trade-sentinel/internal/trust"
)

// Config tunes the engine.
type Config struct {
	// DecisionDeadline bounds one admission decision end to end; on
	// expiry the signal is vetoed, never queued.
	DecisionDeadline time.Duration

	// CountPartialFillAsFull keeps the cooldown reservation when a fill
	// comes back smaller than intended. When false, fills under half the
	// intended size release the slot.
	CountPartialFillAsFull bool
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		DecisionDeadline:       2 * time.Second,
		CountPartialFillAsFull: true,
	}
}

// Result is the outcome of processing one signal.
type Result struct {
	CorrelationID string
	Intent        *domain.TradeIntent // nil when vetoed or suppressed
	Veto          *domain.VetoResult  // nil when admitted
	Suppressed    bool                // entropy skip; terminal, not retried
}

// Processor wires the decision path together.
type Processor struct {
	cfg       Config
	pipeline  *gate.Pipeline
	machine   *risk.Machine
	graph     *trust.Graph
	tracker   *simaccuracy.Tracker
	injector  *entropy.Injector
	market    MarketData
	simulator Simulator
	positions storage.PositionStore
	audit     storage.AuditStore
	sink      events.Sink
	metrics   *observability.Metrics
	log       *logrus.Entry

	now func() time.Time
}

// NewProcessor assembles a processor. metrics may be nil.
func NewProcessor(
	cfg Config,
	pipeline *gate.Pipeline,
	machine *risk.Machine,
	graph *trust.Graph,
	tracker *simaccuracy.Tracker,
	injector *entropy.Injector,
	market MarketData,
	simulator Simulator,
	positions storage.PositionStore,
	audit storage.AuditStore,
	sink events.Sink,
	metrics *observability.Metrics,
) *Processor {
	if sink == nil {
		sink = events.NopSink{}
	}
	if cfg.DecisionDeadline <= 0 {
		cfg.DecisionDeadline = DefaultConfig().DecisionDeadline
	}
	return &Processor{
		cfg:       cfg,
		pipeline:  pipeline,
		machine:   machine,
		graph:     graph,
		tracker:   tracker,
		injector:  injector,
		market:    market,
		simulator: simulator,
		positions: positions,
		audit:     audit,
		sink:      sink,
		metrics:   metrics,
		log:       logrus.WithField("component", "engine"),
		now:       time.Now,
	}
}

// Process evaluates one signal end to end.
func (p *Processor) Process(ctx context.Context, sig *domain.Signal) (*Result, error) {
	start := p.now()
	corrID := uuid.NewString()
	res := &Result{CorrelationID: corrID}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DecisionDeadline)
	defer cancel()

	if p.metrics != nil {
		p.metrics.SignalsTotal.Inc()
		defer func() {
			p.metrics.DecisionSeconds.Observe(p.now().Sub(start).Seconds())
		}()
	}

	ec, err := p.buildContext(ctx, corrID, sig, start)
	if err != nil {
		return nil, err
	}

	intent, veto := p.pipeline.Evaluate(sig, ec)

	// Deadline exhausted: fail closed even if the gates passed.
	if ctx.Err() != nil && veto == nil {
		p.pipeline.Cooldown().Release(sig.Wallet, sig.Token, ec.ClusterID, ec.Now)
		veto = &domain.VetoResult{
			Gate:    domain.GateDeadline,
			Reason:  "decision deadline exceeded",
			Checked: intent.Checked,
		}
		intent = nil
	}

	// A kill switch flipped while this evaluation was in flight must
	// win: re-check the live mode before committing an admit.
	if intent != nil {
		if r := staleModeReason(p.machine.Mode(), sig.Source); r != "" {
			p.pipeline.Cooldown().Release(sig.Wallet, sig.Token, ec.ClusterID, ec.Now)
			veto = &domain.VetoResult{Gate: domain.GateKillSwitch, Reason: r, Checked: intent.Checked}
			intent = nil
		}
	}

	if veto != nil {
		res.Veto = veto
		p.recordDecision(sig, corrID, nil, veto, ec)
		return res, nil
	}

	intent.SizeUSD = p.machine.PositionSize(intent.Confidence)
	if dd := ec.Risk.Drawdown(); dd >= 0.10 {
		intent.Warning = append(intent.Warning, fmt.Sprintf("drawdown %.1f%% of peak", dd*100))
	}

	out := p.injector.Apply(intent, ec.Now)
	if out == nil {
		res.Suppressed = true
		if p.metrics != nil {
			p.metrics.SuppressedTotal.Inc()
		}
		p.recordDecision(sig, corrID, intent, nil, ec)
		return res, nil
	}

	res.Intent = out
	p.recordDecision(sig, corrID, out, nil, ec)
	return res, nil
}

// buildContext snapshots risk state and gathers collaborator inputs.
// Collaborator failures surface as nil inputs, vetoed by their gates.
func (p *Processor) buildContext(ctx context.Context, corrID string, sig *domain.Signal, now time.Time) (*gate.EvalContext, error) {
	ec := &gate.EvalContext{
		CorrelationID:    corrID,
		Now:              now,
		Risk:             p.machine.Snapshot(),
		EarlyTradeReason: p.machine.CheckEarlyTradeLimits(now),
	}

	w, err := p.graph.Observe(ctx, sig.Wallet, now)
	if err != nil {
		if _, ok := err.(*domain.IntegrityError); ok {
			p.emitIntegrityFailure(corrID, err, now)
			return nil, err
		}
		return nil, fmt.Errorf("observe wallet: %w", err)
	}
	ec.BaseConfidence = w.Confidence * trust.DecayFactor(w, now)

	link, err := p.graph.TraceInsider(ctx, sig.Wallet, now)
	if err != nil {
		return nil, fmt.Errorf("trace insider: %w", err)
	}
	if !p.machine.EarlyRestricted() {
		ec.GraphBoost = link.Boost
	}
	if link.Funder != "" {
		ec.ClusterID = link.Funder
	}

	if facts, err := p.market.Facts(ctx, sig.Token); err != nil {
		p.log.WithError(err).WithField("token", sig.Token).Warn("market data unavailable")
	} else {
		ec.Market = facts
	}
	if sim, err := p.simulator.Simulate(ctx, sig.Token); err != nil {
		p.log.WithError(err).WithField("token", sig.Token).Warn("simulation unavailable")
	} else {
		ec.Simulation = sim
	}
	return ec, nil
}

// staleModeReason reports why an in-flight admit must be withdrawn
// under the current mode, or empty when it may stand.
func staleModeReason(mode domain.RiskMode, source domain.SignalSource) string {
	switch mode {
	case domain.RiskModeKillSwitchFull:
		return "kill switch activated during evaluation"
	case domain.RiskModeKillSwitchGraph:
		if source == domain.SignalSourceGraph {
			return "graph kill switch activated during evaluation"
		}
	}
	return ""
}

func (p *Processor) recordDecision(sig *domain.Signal, corrID string, intent *domain.TradeIntent, veto *domain.VetoResult, ec *gate.EvalContext) {
	rec := &domain.DecisionRecord{
		CorrelationID: corrID,
		Token:         sig.Token,
		Wallet:        sig.Wallet,
		EvaluatedAt:   ec.Now.UnixMilli(),
	}
	evType := events.TypeAdmit
	fields := map[string]string{"token": sig.Token, "wallet": sig.Wallet}

	if veto != nil {
		rec.Admitted = false
		rec.VetoGate = veto.Gate
		rec.VetoReason = veto.Reason
		rec.Gates = veto.Checked
		evType = events.TypeVeto
		fields["gate"] = string(veto.Gate)
		fields["reason"] = veto.Reason
		if p.metrics != nil {
			p.metrics.VetoesTotal.WithLabelValues(string(veto.Gate)).Inc()
		}
	} else {
		rec.Admitted = true
		rec.Confidence = intent.Confidence
		rec.SizeUSD = intent.SizeUSD
		rec.Gates = intent.Checked
		fields["size_usd"] = fmt.Sprintf("%.2f", intent.SizeUSD)
		fields["confidence"] = fmt.Sprintf("%.4f", intent.Confidence)
		if p.metrics != nil {
			p.metrics.AdmitsTotal.Inc()
		}
	}

	// Audit writes are best-effort after the decision is final.
	if err := p.audit.InsertDecision(context.Background(), rec); err != nil {
		p.log.WithError(err).Error("audit decision write failed")
	}
	p.sink.Emit(events.Event{
		EventID:       uuid.NewString(),
		CorrelationID: corrID,
		Type:          evType,
		Severity:      events.SeverityInfo,
		At:            ec.Now.UnixMilli(),
		Fields:        fields,
	})
}

func (p *Processor) emitIntegrityFailure(corrID string, err error, now time.Time) {
	p.log.WithError(err).Error("integrity failure")
	p.sink.Emit(events.Event{
		EventID:       uuid.NewString(),
		CorrelationID: corrID,
		Type:          events.TypeIntegrityFailure,
		Severity:      events.SeverityCritical,
		At:            now.UnixMilli(),
		Fields:        map[string]string{"error": err.Error()},
	})
}

// ReportFill opens a position for an executed intent. Partial fills
// below half the intended size may release the cooldown slot depending
// on configuration.
func (p *Processor) ReportFill(ctx context.Context, intent *domain.TradeIntent, sig *domain.Signal, fillPrice, fillSizeUSD float64, now time.Time) (*domain.OpenPosition, error) {
	if fillSizeUSD < intent.SizeUSD/2 && !p.cfg.CountPartialFillAsFull {
		// Release the admission-time reservation, not one at fill time.
		p.pipeline.Cooldown().Release(sig.Wallet, sig.Token, intent.ClusterID, time.UnixMilli(intent.ReservedAt))
	}

	pos := &domain.OpenPosition{
		PositionID:    idhash.ComputePositionID(intent.CorrelationID, intent.Token, now.UnixMilli()),
		CorrelationID: intent.CorrelationID,
		Token:         intent.Token,
		AssetClass:    intent.AssetClass,
		EntryPrice:    fillPrice,
		EntryTime:     now.UnixMilli(),
		SizeUSD:       fillSizeUSD,
		PeakPrice:     fillPrice,
		WhaleWallet:   sig.Wallet,
		WhaleLastSeen: now.UnixMilli(),
		GraphSourced:  sig.Source == domain.SignalSourceGraph,
	}
	if err := p.positions.Insert(ctx, pos); err != nil {
		return nil, fmt.Errorf("open position: %w", err)
	}
	if err := p.machine.RegisterTrade(ctx, now); err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.OpenPositions.Inc()
	}
	return pos, nil
}

// ReportOutcome feeds a closed trade back into the risk machine, the
// trust graph and the simulator accuracy record.
func (p *Processor) ReportOutcome(ctx context.Context, wallet string, pnl, lossPct float64, graphSourced bool, now time.Time) error {
	if err := p.machine.RecordOutcome(ctx, pnl, graphSourced, now); err != nil {
		return err
	}
	if _, err := p.graph.Reinforce(ctx, wallet, pnl, now); err != nil {
		return err
	}
	outcome := domain.ClassifyOutcome(pnl, lossPct)
	if err := p.tracker.Record(ctx, domain.PredictedPass, outcome, now); err != nil {
		return err
	}
	if p.metrics != nil {
		snap := p.machine.Snapshot()
		p.metrics.DrawdownFraction.Set(snap.Drawdown())
		p.metrics.SetRiskMode(string(p.machine.Mode()))
	}
	return nil
}

// ReportBlockedOutcome records what happened to a token the simulator
// blocked, keeping the accuracy denominator honest.
func (p *Processor) ReportBlockedOutcome(ctx context.Context, pnl, lossPct float64, now time.Time) error {
	outcome := domain.ClassifyOutcome(pnl, lossPct)
	return p.tracker.Record(ctx, domain.PredictedBlock, outcome, now)
}
