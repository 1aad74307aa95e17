package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/livetranslate/internal/metrics"
	"github.com/pscheid92/livetranslate/internal/platform/retry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestResilientTranslator_RetriesTransientErrors(t *testing.T) {
	calls := 0
	inner := &mockTranslator{translateFn: func(context.Context, string, string) (string, error) {
		calls++
		if calls < 3 {
			return "", errProvider
		}
		return "bonjour", nil
	}}
	guard := NewGuard("translator_retry_test", GuardOptions{
		Retry:    retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond},
		Classify: func(error) retry.Action { return retry.Retry },
	})

	out, err := NewResilientTranslator(inner, guard).Translate(context.Background(), "hello", "fr")

	require.NoError(t, err)
	assert.Equal(t, "bonjour", out)
	assert.Equal(t, 3, calls)
}

func TestResilientSynthesizer_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	inner := &mockSynthesizer{synthesizeFn: func(context.Context, string, string) ([]byte, error) {
		calls++
		return nil, errProvider
	}}
	guard := NewGuard("synth_permanent_test", GuardOptions{
		Retry: retry.Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond},
	})
	s := NewResilientSynthesizer(inner, guard)

	_, err := s.Synthesize(context.Background(), "hola", "es")

	assert.ErrorIs(t, err, errProvider)
	assert.Equal(t, 1, calls)
	assert.Len(t, s.Languages(), 2)
}

func TestGuard_OpenCircuitRejectsWithoutCalling(t *testing.T) {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(2).
		WithDelay(time.Minute).
		Build()
	guard := newGuard("translator_cb_test", cb, GuardOptions{})

	calls := 0
	inner := &mockTranslator{translateFn: func(context.Context, string, string) (string, error) {
		calls++
		return "", errProvider
	}}
	tr := NewResilientTranslator(inner, guard)

	for range 2 {
		_, err := tr.Translate(context.Background(), "x", "fr")
		require.ErrorIs(t, err, errProvider)
	}
	_, err := tr.Translate(context.Background(), "x", "fr")

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExternalCallsTotal.WithLabelValues("translator_cb_test", "rejected")))
}

func TestGuard_CancellationDoesNotTripBreaker(t *testing.T) {
	cb := circuitbreaker.NewBuilder[any]().WithFailureThreshold(1).WithDelay(time.Minute).Build()
	guard := newGuard("translator_cancel_test", cb, GuardOptions{})

	_, err := Execute(context.Background(), guard, func(context.Context) (string, error) {
		return "", context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.True(t, cb.IsClosed())
}

func TestGuard_RateLimiterHonorsContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	guard := NewGuard("translator_rate_test", GuardOptions{Limiter: limiter})

	op := func(context.Context) (string, error) { return "ok", nil }

	out, err := Execute(context.Background(), guard, op)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Execute(ctx, guard, op)
	assert.Error(t, err, "second call must wait for a token and give up with the context")
	assert.False(t, errors.Is(err, circuitbreaker.ErrOpen))
}
