// Package simaccuracy tracks how well the pre-trade simulator catches
// losers and gates the aggressive execution mode on that record.
package simaccuracy

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/storage"
)

const (
	// assassinMinSamples and assassinMinAccuracy gate the aggressive
	// mode. Both are re-evaluated on every query; a drop below the
	// accuracy floor re-locks immediately.
	assassinMinSamples  = 50
	assassinMinAccuracy = 0.95
)

// Tracker accumulates predicted-vs-actual pairs.
type Tracker struct {
	samples storage.SampleStore
	log     *logrus.Entry
}

// NewTracker creates a tracker over the sample store.
func NewTracker(samples storage.SampleStore) *Tracker {
	return &Tracker{
		samples: samples,
		log:     logrus.WithField("component", "simaccuracy"),
	}
}

// Record stores one prediction outcome pair. The severity weight is
// frozen at record time so later weight changes cannot rewrite history.
func (t *Tracker) Record(ctx context.Context, predicted domain.Predicted, actual domain.TradeOutcome, now time.Time) error {
	s := &domain.SimulatorSample{
		Predicted:   predicted,
		Actual:      actual,
		WeightClass: actual.LossWeight(),
		RecordedAt:  now.UnixMilli(),
	}
	if err := t.samples.Insert(ctx, s); err != nil {
		return fmt.Errorf("record simulator sample: %w", err)
	}
	return nil
}

// Breakdown counts samples by prediction and realized outcome.
// Missed means the simulator passed a token that turned into a loss;
// BlockedWinners is the false-positive cost of the blocker.
type Breakdown struct {
	BlockedByOutcome map[domain.TradeOutcome]int
	MissedByOutcome  map[domain.TradeOutcome]int
	PassedWon        int
	BlockedWinners   int
}

// Report is the accuracy summary at one point in time.
type Report struct {
	TotalSamples     int
	WeightedAccuracy float64 // blocked losers weighted / total losers weighted
	AssassinUnlocked bool
	Breakdown        Breakdown
}

// Query recomputes the weighted accuracy from all stored samples. The
// aggressive mode is permitted only while sample count and weighted
// accuracy both hold; there is no grace period after a drop.
func (t *Tracker) Query(ctx context.Context) (Report, error) {
	all, err := t.samples.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list samples: %w", err)
	}

	bd := Breakdown{
		BlockedByOutcome: make(map[domain.TradeOutcome]int),
		MissedByOutcome:  make(map[domain.TradeOutcome]int),
	}
	var blockedLosers, totalLosers float64
	for _, s := range all {
		blocked := s.Predicted == domain.PredictedBlock
		switch {
		case s.Actual.IsLoss() && blocked:
			bd.BlockedByOutcome[s.Actual]++
		case s.Actual.IsLoss():
			bd.MissedByOutcome[s.Actual]++
		case s.Actual == domain.OutcomeWin && blocked:
			bd.BlockedWinners++
		case s.Actual == domain.OutcomeWin:
			bd.PassedWon++
		}

		if !s.Actual.IsLoss() {
			continue
		}
		totalLosers += s.WeightClass
		if blocked {
			blockedLosers += s.WeightClass
		}
	}

	r := Report{TotalSamples: len(all), Breakdown: bd}
	if totalLosers > 0 {
		r.WeightedAccuracy = blockedLosers / totalLosers
	}
	r.AssassinUnlocked = r.TotalSamples >= assassinMinSamples &&
		totalLosers > 0 && r.WeightedAccuracy >= assassinMinAccuracy
	return r, nil
}

// AssassinPermitted answers the gate question directly.
func (t *Tracker) AssassinPermitted(ctx context.Context) (bool, error) {
	r, err := t.Query(ctx)
	if err != nil {
		return false, err
	}
	return r.AssassinUnlocked, nil
}
