// Package gate implements the ordered admission pipeline. Gates run in
// a fixed order; the first failure terminates evaluation and no later
// gate runs. Every gate that ran is recorded for audit, admitted or not.
// A missing or unparsable input fails the gate that needed it.
package gate

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
)

// Config holds the admission thresholds. Zero values are never used
// directly; construct with DefaultConfig and override.
type Config struct {
	// BaseConfidenceThreshold is the floor a signal must clear in
	// capital preservation mode plus the mode's 0.15 margin.
	BaseConfidenceThreshold float64

	MaxSpread float64
	MaxTax    float64
	// HoneypotSellTax marks a token honeypot when the simulated sell
	// tax alone exceeds it.
	HoneypotSellTax float64

	Freshness       map[domain.AssetClass]time.Duration
	MinTokenAge     map[domain.AssetClass]time.Duration
	MinLiquidityUSD map[domain.AssetClass]float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		BaseConfidenceThreshold: 0.5,
		MaxSpread:               0.03,
		MaxTax:                  0.10,
		HoneypotSellTax:         0.90,
		Freshness: map[domain.AssetClass]time.Duration{
			domain.AssetClassMemeLowCap: 300 * time.Second,
			domain.AssetClassMidCap:     900 * time.Second,
			domain.AssetClassLargeCap:   1800 * time.Second,
		},
		MinTokenAge: map[domain.AssetClass]time.Duration{
			domain.AssetClassMemeLowCap: 3600 * time.Second,
			domain.AssetClassMidCap:     1800 * time.Second,
			domain.AssetClassLargeCap:   0,
		},
		MinLiquidityUSD: map[domain.AssetClass]float64{
			domain.AssetClassMemeLowCap: 10_000,
			domain.AssetClassMidCap:     50_000,
			domain.AssetClassLargeCap:   100_000,
		},
	}
}

// Pipeline evaluates signals against the ordered gates.
type Pipeline struct {
	cfg      Config
	cooldown *CooldownTracker
	log      *logrus.Entry
}

// NewPipeline creates a pipeline with its own cooldown tracker.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		cooldown: NewCooldownTracker(),
		log:      logrus.WithField("component", "gate"),
	}
}

// Cooldown exposes the tracker for post-admission release decisions.
func (p *Pipeline) Cooldown() *CooldownTracker {
	return p.cooldown
}

// Evaluate runs the gates in order. Exactly one of intent or veto is
// non-nil. The returned Checked slice holds every gate that ran, in
// order, pass or fail.
func (p *Pipeline) Evaluate(sig *domain.Signal, ec *EvalContext) (*domain.TradeIntent, *domain.VetoResult) {
	checks := []func(*domain.Signal, *EvalContext) domain.GateResult{
		p.checkKillSwitch,
		p.checkCapitalPreservation,
		p.checkFreshness,
		p.checkTokenAge,
		p.checkSpread,
		p.checkLiquidity,
		p.checkTax,
		p.checkCooldown,
		p.checkSimulation,
	}

	var ran []domain.GateResult
	reserved := false
	for _, check := range checks {
		r := check(sig, ec)
		ran = append(ran, r)
		if r.Gate == domain.GateCooldown && r.Pass {
			reserved = true
		}
		if !r.Pass {
			if reserved && r.Gate != domain.GateCooldown {
				p.cooldown.Release(sig.Wallet, sig.Token, ec.ClusterID, ec.Now)
			}
			p.log.WithFields(logrus.Fields{
				"correlation_id": ec.CorrelationID,
				"gate":           r.Gate,
				"reason":         r.Reason,
			}).Info("signal vetoed")
			return nil, &domain.VetoResult{Gate: r.Gate, Reason: r.Reason, Checked: ran}
		}
	}

	return &domain.TradeIntent{
		CorrelationID: ec.CorrelationID,
		Token:         sig.Token,
		AssetClass:    sig.AssetClass,
		Side:          sig.Action,
		Confidence:    ec.Confidence(),
		GraphBoosted:  ec.GraphBoost > 0,
		ClusterID:     ec.ClusterID,
		ReservedAt:    ec.Now.UnixMilli(),
		Checked:       ran,
	}, nil
}

func pass(g domain.Gate, actual string) domain.GateResult {
	return domain.GateResult{Gate: g, Pass: true, Actual: actual}
}

func fail(g domain.Gate, reason, actual string) domain.GateResult {
	return domain.GateResult{Gate: g, Pass: false, Reason: reason, Actual: actual}
}

func (p *Pipeline) checkKillSwitch(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	switch ec.Risk.Mode {
	case domain.RiskModeKillSwitchFull:
		return fail(domain.GateKillSwitch, "full kill switch active", string(ec.Risk.Mode))
	case domain.RiskModeKillSwitchGraph:
		if sig.Source == domain.SignalSourceGraph {
			return fail(domain.GateKillSwitch, "graph kill switch active for graph-sourced signal", string(ec.Risk.Mode))
		}
	case domain.RiskModeNormal, domain.RiskModeCapitalPreservation:
	default:
		// Unknown mode never maps to allow.
		return fail(domain.GateKillSwitch, fmt.Sprintf("unknown risk mode %q", ec.Risk.Mode), string(ec.Risk.Mode))
	}
	return pass(domain.GateKillSwitch, string(ec.Risk.Mode))
}

func (p *Pipeline) checkCapitalPreservation(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	if ec.Risk.Mode != domain.RiskModeCapitalPreservation {
		return pass(domain.GateCapitalPreservation, string(ec.Risk.Mode))
	}
	if sig.Source == domain.SignalSourceGraph {
		return fail(domain.GateCapitalPreservation, "graph signals disabled in capital preservation", string(sig.Source))
	}
	required := p.cfg.BaseConfidenceThreshold + 0.15
	conf := ec.Confidence()
	if conf < required {
		return fail(domain.GateCapitalPreservation,
			fmt.Sprintf("confidence %.2f below preservation threshold %.2f", conf, required),
			fmt.Sprintf("%.4f", conf))
	}
	return pass(domain.GateCapitalPreservation, fmt.Sprintf("%.4f", conf))
}

func (p *Pipeline) checkFreshness(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	limit, ok := p.cfg.Freshness[sig.AssetClass]
	if !ok {
		return fail(domain.GateFreshness, fmt.Sprintf("unknown asset class %q", sig.AssetClass), string(sig.AssetClass))
	}
	if sig.CreatedAt <= 0 {
		return fail(domain.GateFreshness, "signal timestamp missing", "")
	}
	age := time.Duration(ec.Now.UnixMilli()-sig.CreatedAt) * time.Millisecond
	if age > limit {
		return fail(domain.GateFreshness,
			fmt.Sprintf("signal age %s exceeds %s", age.Round(time.Second), limit),
			age.String())
	}
	return pass(domain.GateFreshness, age.String())
}

func (p *Pipeline) checkTokenAge(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	min, ok := p.cfg.MinTokenAge[sig.AssetClass]
	if !ok {
		return fail(domain.GateTokenAge, fmt.Sprintf("unknown asset class %q", sig.AssetClass), string(sig.AssetClass))
	}
	if ec.Market == nil || ec.Market.TokenCreatedAt == nil {
		return fail(domain.GateTokenAge, "token creation time unavailable", "")
	}
	age := time.Duration(ec.Now.UnixMilli()-*ec.Market.TokenCreatedAt) * time.Millisecond
	if age < min {
		return fail(domain.GateTokenAge,
			fmt.Sprintf("token age %s below minimum %s", age.Round(time.Second), min),
			age.String())
	}
	return pass(domain.GateTokenAge, age.String())
}

func (p *Pipeline) checkSpread(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	if ec.Market == nil || ec.Market.Bid == nil || ec.Market.Ask == nil {
		return fail(domain.GateSpread, "bid/ask unavailable", "")
	}
	bid, ask := *ec.Market.Bid, *ec.Market.Ask
	if bid <= 0 || ask < bid {
		return fail(domain.GateSpread, "bid/ask unparsable", fmt.Sprintf("bid=%v ask=%v", bid, ask))
	}
	spread := (ask - bid) / bid
	if spread > p.cfg.MaxSpread {
		return fail(domain.GateSpread,
			fmt.Sprintf("spread %.4f exceeds %.2f", spread, p.cfg.MaxSpread),
			fmt.Sprintf("%.4f", spread))
	}
	return pass(domain.GateSpread, fmt.Sprintf("%.4f", spread))
}

func (p *Pipeline) checkLiquidity(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	min, ok := p.cfg.MinLiquidityUSD[sig.AssetClass]
	if !ok {
		return fail(domain.GateLiquidity, fmt.Sprintf("unknown asset class %q", sig.AssetClass), string(sig.AssetClass))
	}
	if ec.Market == nil || ec.Market.PoolLiquidityUSD == nil {
		return fail(domain.GateLiquidity, "pool liquidity unavailable", "")
	}
	liq := *ec.Market.PoolLiquidityUSD
	if liq < min {
		return fail(domain.GateLiquidity,
			fmt.Sprintf("liquidity $%.0f below minimum $%.0f", liq, min),
			fmt.Sprintf("%.0f", liq))
	}
	return pass(domain.GateLiquidity, fmt.Sprintf("%.0f", liq))
}

func (p *Pipeline) checkTax(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	if ec.Simulation == nil {
		return fail(domain.GateTax, "simulation result unavailable", "")
	}
	tax := ec.Simulation.TotalTax()
	if tax > p.cfg.MaxTax {
		return fail(domain.GateTax,
			fmt.Sprintf("total tax %.4f exceeds %.2f", tax, p.cfg.MaxTax),
			fmt.Sprintf("%.4f", tax))
	}
	return pass(domain.GateTax, fmt.Sprintf("%.4f", tax))
}

func (p *Pipeline) checkCooldown(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	if ec.EarlyTradeReason != "" {
		return fail(domain.GateCooldown, ec.EarlyTradeReason, "")
	}
	if reason := p.cooldown.Reserve(sig.Wallet, sig.Token, ec.ClusterID, ec.Now); reason != "" {
		return fail(domain.GateCooldown, reason, "")
	}
	return pass(domain.GateCooldown, "")
}

func (p *Pipeline) checkSimulation(sig *domain.Signal, ec *EvalContext) domain.GateResult {
	if ec.Simulation == nil {
		return fail(domain.GateSimulation, "simulation result unavailable", "")
	}
	s := ec.Simulation
	if s.Honeypot {
		return fail(domain.GateSimulation, "honeypot: simulated sell reverted", "honeypot")
	}
	if s.SellTaxPct > p.cfg.HoneypotSellTax {
		return fail(domain.GateSimulation,
			fmt.Sprintf("honeypot: sell tax %.2f", s.SellTaxPct),
			fmt.Sprintf("%.4f", s.SellTaxPct))
	}
	if tax := s.TotalTax(); tax > p.cfg.MaxTax {
		return fail(domain.GateSimulation,
			fmt.Sprintf("total tax %.4f exceeds %.2f", tax, p.cfg.MaxTax),
			fmt.Sprintf("%.4f", tax))
	}
	return pass(domain.GateSimulation, "clean")
}
