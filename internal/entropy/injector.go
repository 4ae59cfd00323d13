// Package entropy perturbs admitted trade intents to resist
// counter-adaptation by observers: probabilistic suppression, timing
// jitter, size noise and execution-identity rotation. It runs strictly
// after admission and can only drop or perturb, never admit.
package entropy

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
	"trade-sentinel/internal/events"
)

const (
	// DefaultSuppressProbability is the suppression probability the
	// config layer applies when the key is absent.
	DefaultSuppressProbability = 0.10

	jitterMinMs = 5.0
	jitterMaxMs = 30.0

	sizeNoise = 0.05 // ±5%
)

// Injector applies entropy to admitted intents. The random source is
// injected so tests can pin the sequence.
type Injector struct {
	mu         sync.Mutex
	rng        *rand.Rand
	p          float64
	identities []string
	next       int
	sink       events.Sink
	log        *logrus.Entry
}

// NewInjector creates an injector. identities may be empty, in which
// case no identity hint is assigned.
func NewInjector(p float64, identities []string, src rand.Source, sink events.Sink) *Injector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Injector{
		rng:        rand.New(src),
		p:          p,
		identities: append([]string(nil), identities...),
		sink:       sink,
		log:        logrus.WithField("component", "entropy"),
	}
}

// Apply either suppresses the intent (returns nil after recording the
// skip) or returns it perturbed: jittered delay, noised size, rotated
// identity. Suppression is terminal; a skipped intent is never retried.
func (in *Injector) Apply(intent *domain.TradeIntent, now time.Time) *domain.TradeIntent {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.rng.Float64() < in.p {
		in.log.WithField("correlation_id", intent.CorrelationID).Info("intent suppressed")
		in.sink.Emit(events.Event{
			CorrelationID: intent.CorrelationID,
			Type:          events.TypeEntropySkip,
			Severity:      events.SeverityInfo,
			At:            now.UnixMilli(),
			Fields:        map[string]string{"token": intent.Token},
		})
		return nil
	}

	out := *intent
	out.DelayMs = jitterMinMs + in.rng.Float64()*(jitterMaxMs-jitterMinMs)
	out.SizeUSD = intent.SizeUSD * (1 + (in.rng.Float64()*2-1)*sizeNoise)
	if len(in.identities) > 0 {
		out.IdentityHint = in.identities[in.next%len(in.identities)]
		in.next++
	}
	return &out
}
