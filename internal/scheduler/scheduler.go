// Package scheduler runs the recurring maintenance tasks: trust decay,
// mother-wallet scans, graph health evaluation, exit-rule ticks over
// open positions, kill-switch auto-resume and metric refresh. Each task
// is independent; a failing run is logged and retried on the next tick.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/engine"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/exitmanager"
	"trade-sentinel/internal/observability"
	"trade-sentinel/internal/risk"
	"trade-sentinel/internal/simaccuracy"
	"trade-sentinel/internal/storage"
	"trade-sentinel/internal/trust"
)

// Config sets the task intervals.
type Config struct {
	DecayInterval       time.Duration
	MotherScanInterval  time.Duration
	GraphHealthInterval time.Duration
	ExitTickInterval    time.Duration
	ResumeInterval      time.Duration
	MetricsInterval     time.Duration
}

// DefaultConfig returns the default intervals.
func DefaultConfig() Config {
	return Config{
		DecayInterval:       24 * time.Hour,
		MotherScanInterval:  time.Hour,
		GraphHealthInterval: 15 * time.Minute,
		ExitTickInterval:    time.Minute,
		ResumeInterval:      time.Minute,
		MetricsInterval:     15 * time.Second,
	}
}

// OutcomeReporter feeds closed trades back into the risk machine, the
// trust graph and the accuracy tracker.
type OutcomeReporter interface {
	ReportOutcome(ctx context.Context, wallet string, pnl, lossPct float64, graphSourced bool, now time.Time) error
}

// Scheduler owns the background task loops.
type Scheduler struct {
	cfg       Config
	graph     *trust.Graph
	machine   *risk.Machine
	exits     *exitmanager.Manager
	tracker   *simaccuracy.Tracker
	positions storage.PositionStore
	market    engine.MarketData
	reporter  OutcomeReporter
	metrics   *observability.Metrics
	sink      events.Sink
	log       *logrus.Entry

	wg sync.WaitGroup
}

// New creates a scheduler. reporter, metrics and sink may be nil.
func New(
	cfg Config,
	graph *trust.Graph,
	machine *risk.Machine,
	exits *exitmanager.Manager,
	tracker *simaccuracy.Tracker,
	positions storage.PositionStore,
	market engine.MarketData,
	reporter OutcomeReporter,
	metrics *observability.Metrics,
	sink events.Sink,
	log *logrus.Logger,
) *Scheduler {
	if sink == nil {
		sink = events.NopSink{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &Scheduler{
		cfg:       cfg,
		graph:     graph,
		machine:   machine,
		exits:     exits,
		tracker:   tracker,
		positions: positions,
		market:    market,
		reporter:  reporter,
		metrics:   metrics,
		sink:      sink,
		log:       log.WithField("component", "scheduler"),
	}
}

// Run starts all task loops and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.loop(ctx, s.cfg.DecayInterval, s.runDecay)
	s.loop(ctx, s.cfg.MotherScanInterval, s.runMotherScan)
	s.loop(ctx, s.cfg.GraphHealthInterval, s.runGraphHealth)
	s.loop(ctx, s.cfg.ExitTickInterval, s.runExitTick)
	s.loop(ctx, s.cfg.ResumeInterval, s.runAutoResume)
	s.loop(ctx, s.cfg.MetricsInterval, s.runMetricsRefresh)
	<-ctx.Done()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, task func(context.Context)) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
}

// runDecay applies the confidence half-lives and prunes dead edges.
func (s *Scheduler) runDecay(ctx context.Context) {
	stats, err := s.graph.ApplyDecay(ctx, time.Now())
	if err != nil {
		s.log.WithError(err).Error("trust decay failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"wallets_decayed": stats.WalletsDecayed,
		"tier_downgrades": stats.TierDowngrades,
		"edges_decayed":   stats.EdgesDecayed,
		"edges_pruned":    stats.EdgesPruned,
	}).Info("trust decay applied")
}

// runMotherScan promotes qualifying funder wallets.
func (s *Scheduler) runMotherScan(ctx context.Context) {
	promoted, err := s.graph.ScanForMothers(ctx, s.sink, time.Now())
	if err != nil {
		s.log.WithError(err).Error("mother scan failed")
		return
	}
	if len(promoted) > 0 {
		s.log.WithField("promoted", promoted).Info("mother wallets promoted")
	}
}

// runGraphHealth feeds promotion velocity and cluster overlap into the
// graph kill switch.
func (s *Scheduler) runGraphHealth(ctx context.Context) {
	now := time.Now()

	promotions, err := s.graph.RecentPromotions(ctx, now.Add(-24*time.Hour))
	if err != nil {
		s.log.WithError(err).Error("promotion count failed")
		return
	}
	overlaps, err := s.graph.OverlappingClusterPairs(ctx)
	if err != nil {
		s.log.WithError(err).Error("cluster overlap scan failed")
		return
	}

	if err := s.machine.EvaluateGraphHealth(ctx, promotions, overlaps, now); err != nil {
		s.log.WithError(err).Error("graph health evaluation failed")
	}
}

// runExitTick fetches a fresh market tick for every open position and
// applies the exit rules. Positions with unavailable market data are
// skipped for this tick; the exit rules themselves are never skipped
// when data is present.
func (s *Scheduler) runExitTick(ctx context.Context) {
	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		s.log.WithError(err).Error("list open positions failed")
		return
	}
	if s.metrics != nil {
		s.metrics.OpenPositions.Set(float64(len(open)))
	}

	now := time.Now()
	for _, p := range open {
		facts, err := s.market.Facts(ctx, p.Token)
		if err != nil || facts == nil || facts.Bid == nil || facts.PoolLiquidityUSD == nil {
			s.log.WithField("position", p.PositionID).Warn("no market tick, skipping exit check")
			continue
		}

		decision, err := s.exits.Evaluate(ctx, p.PositionID, exitmanager.Tick{
			Price:        *facts.Bid,
			LiquidityUSD: *facts.PoolLiquidityUSD,
			At:           now,
		})
		if err != nil {
			s.log.WithError(err).WithField("position", p.PositionID).Error("exit evaluation failed")
			continue
		}
		if decision == nil {
			continue
		}

		if err := s.exits.ApplyDecision(ctx, decision); err != nil {
			s.log.WithError(err).WithField("position", p.PositionID).Error("apply exit decision failed")
			continue
		}
		if s.metrics != nil {
			s.metrics.ExitsTotal.WithLabelValues(string(decision.Reason)).Inc()
		}

		if s.reporter != nil && p.EntryPrice > 0 {
			ret := (*facts.Bid - p.EntryPrice) / p.EntryPrice
			pnl := ret * p.SizeUSD * decision.CloseFraction
			lossPct := 0.0
			if ret < 0 {
				lossPct = -ret
			}
			if err := s.reporter.ReportOutcome(ctx, p.WhaleWallet, pnl, lossPct, p.GraphSourced, now); err != nil {
				s.log.WithError(err).WithField("position", p.PositionID).Error("outcome report failed")
			}
		}
	}
}

// runAutoResume lifts the graph kill switch once its observation window
// has elapsed. The full kill switch never auto-resumes.
func (s *Scheduler) runAutoResume(ctx context.Context) {
	err := s.machine.TryAutoResume()
	switch {
	case err == nil:
	case errors.Is(err, risk.ErrObservationWindow):
	case errors.Is(err, risk.ErrManualResumeRequired):
	default:
		s.log.WithError(err).Error("auto-resume check failed")
	}
}

// runMetricsRefresh publishes the risk and accuracy gauges.
func (s *Scheduler) runMetricsRefresh(ctx context.Context) {
	if s.metrics == nil {
		return
	}

	st := s.machine.Snapshot()
	s.metrics.SetRiskMode(string(st.Mode))
	s.metrics.DrawdownFraction.Set(st.Drawdown())

	report, err := s.tracker.Query(ctx)
	if err != nil {
		s.log.WithError(err).Error("accuracy query failed")
		return
	}
	s.metrics.SimAccuracy.Set(report.WeightedAccuracy)
}
