package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/metrics"
	"github.com/pscheid92/livetranslate/internal/platform/retry"
	"golang.org/x/time/rate"
)

// Guard protects calls to one external collaborator with a shared rate
// limiter, a circuit breaker and a retry policy.
type Guard struct {
	kind     string
	cb       circuitbreaker.CircuitBreaker[any]
	limiter  *rate.Limiter
	policy   retry.Policy
	classify retry.Classify
	clock    clockwork.Clock
}

// GuardOptions configures a Guard. A nil Limiter disables throttling and a
// nil Classify retries nothing.
type GuardOptions struct {
	Limiter  *rate.Limiter
	Retry    retry.Policy
	Classify retry.Classify
	Clock    clockwork.Clock
}

// NewGuard builds a Guard. The breaker opens at a 60% failure rate over at
// least 5 calls in a 10s window and probes again after 30s.
func NewGuard(kind string, opts GuardOptions) *Guard {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", kind,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues(kind, e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(kind).Set(stateToFloat(e.NewState))
		}).
		Build()

	return newGuard(kind, cb, opts)
}

func newGuard(kind string, cb circuitbreaker.CircuitBreaker[any], opts GuardOptions) *Guard {
	policy := opts.Retry
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Clock == nil {
		policy.Clock = opts.Clock
	}
	classify := opts.Classify
	if classify == nil {
		classify = retry.Never
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Guard{kind: kind, cb: cb, limiter: opts.Limiter, policy: policy, classify: classify, clock: clock}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// Execute runs op under g.
func Execute[T any](ctx context.Context, g *Guard, op retry.Operation[T]) (T, error) {
	start := g.clock.Now()
	defer func() { metrics.ExternalCallDuration.WithLabelValues(g.kind).Observe(g.clock.Since(start).Seconds()) }()

	classify := func(err error) retry.Action {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return retry.Stop
		}
		return g.classify(err)
	}

	val, err := retry.Do(ctx, g.policy, classify, func(ctx context.Context) (T, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, fmt.Errorf("%s rate limit: %w", g.kind, err)
			}
		}
		if !g.cb.TryAcquirePermit() {
			metrics.ExternalCallsTotal.WithLabelValues(g.kind, "rejected").Inc()
			var zero T
			return zero, fmt.Errorf("%s: %w", g.kind, circuitbreaker.ErrOpen)
		}

		val, err := op(ctx)
		switch {
		case err == nil:
			g.cb.RecordSuccess()
			metrics.ExternalCallsTotal.WithLabelValues(g.kind, "success").Inc()
		case errors.Is(err, context.Canceled):
			// cancellation is not a provider failure
			g.cb.RecordSuccess()
			metrics.ExternalCallsTotal.WithLabelValues(g.kind, "canceled").Inc()
		case errors.Is(err, context.DeadlineExceeded):
			g.cb.RecordError(err)
			metrics.ExternalCallsTotal.WithLabelValues(g.kind, "timeout").Inc()
		default:
			g.cb.RecordError(err)
			metrics.ExternalCallsTotal.WithLabelValues(g.kind, "error").Inc()
		}
		return val, err
	})
	return val, err
}

// ResilientTranslator wraps a Translator in a Guard.
type ResilientTranslator struct {
	inner domain.Translator
	guard *Guard
}

var _ domain.Translator = (*ResilientTranslator)(nil)

func NewResilientTranslator(inner domain.Translator, guard *Guard) *ResilientTranslator {
	return &ResilientTranslator{inner: inner, guard: guard}
}

func (t *ResilientTranslator) Translate(ctx context.Context, text, languageCode string) (string, error) {
	return Execute(ctx, t.guard, func(ctx context.Context) (string, error) {
		return t.inner.Translate(ctx, text, languageCode)
	})
}

// ResilientSynthesizer wraps a Synthesizer in a Guard. Languages is passed through.
type ResilientSynthesizer struct {
	inner domain.Synthesizer
	guard *Guard
}

var _ domain.Synthesizer = (*ResilientSynthesizer)(nil)

func NewResilientSynthesizer(inner domain.Synthesizer, guard *Guard) *ResilientSynthesizer {
	return &ResilientSynthesizer{inner: inner, guard: guard}
}

func (s *ResilientSynthesizer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	return Execute(ctx, s.guard, func(ctx context.Context) ([]byte, error) {
		return s.inner.Synthesize(ctx, text, languageCode)
	})
}

func (s *ResilientSynthesizer) Languages() []domain.Language {
	return s.inner.Languages()
}
