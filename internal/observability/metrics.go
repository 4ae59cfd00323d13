// Package observability exposes Prometheus metrics for the admission
// pipeline, risk machine and exit manager.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all registered collectors.
type Metrics struct {
	SignalsTotal     prometheus.Counter
	AdmitsTotal      prometheus.Counter
	VetoesTotal      *prometheus.CounterVec // by gate
	SuppressedTotal  prometheus.Counter
	ExitsTotal       *prometheus.CounterVec // by reason
	DecisionSeconds  prometheus.Histogram
	RiskMode         *prometheus.GaugeVec // 1 for the active mode
	OpenPositions    prometheus.Gauge
	DrawdownFraction prometheus.Gauge
	SimAccuracy      prometheus.Gauge
}

// New registers all metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_signals_total",
			Help: "Signals received for evaluation.",
		}),
		AdmitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_admits_total",
			Help: "Signals admitted by the pipeline.",
		}),
		VetoesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_vetoes_total",
			Help: "Signals vetoed, by gate.",
		}, []string{"gate"}),
		SuppressedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_entropy_suppressed_total",
			Help: "Admitted intents suppressed by the entropy layer.",
		}),
		ExitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_exits_total",
			Help: "Exit decisions, by reason.",
		}, []string{"reason"}),
		DecisionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_decision_seconds",
			Help:    "Admission decision latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
		RiskMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_risk_mode",
			Help: "1 for the active risk mode, 0 otherwise.",
		}, []string{"mode"}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_open_positions",
			Help: "Currently open positions.",
		}),
		DrawdownFraction: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_drawdown_fraction",
			Help: "Current drawdown from peak capital.",
		}),
		SimAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_simulator_weighted_accuracy",
			Help: "Weighted simulator accuracy on losers.",
		}),
	}
}

// SetRiskMode flips the mode gauge so exactly one label reads 1.
func (m *Metrics) SetRiskMode(active string) {
	for _, mode := range []string{"NORMAL", "CAPITAL_PRESERVATION", "KILL_SWITCH_FULL", "KILL_SWITCH_GRAPH"} {
		v := 0.0
		if mode == active {
			v = 1.0
		}
		m.RiskMode.WithLabelValues(mode).Set(v)
	}
}
