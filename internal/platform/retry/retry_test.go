package retry_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   1 * time.Millisecond,
	RateLimitBackoff: 5 * time.Millisecond,
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "bonjour", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "bonjour", val)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("invalid api key")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, retry.Never, func(context.Context) (string, error) {
		calls++
		return "", permanent
	})

	var permErr *retry.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedRetries(t *testing.T) {
	underlying := errors.New("transient")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func(context.Context) (int, error) {
		calls++
		return 0, underlying
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, underlying)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
}

func TestDo_RejectsZeroAttempts(t *testing.T) {
	_, err := retry.Do(context.Background(), retry.Policy{}, alwaysRetry, func(context.Context) (int, error) {
		return 1, nil
	})
	assert.Error(t, err)
}

func TestDo_RateLimitBackoffUsesClock(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	var observed []time.Duration
	p := retry.Policy{
		MaxAttempts:      2,
		InitialBackoff:   time.Second,
		RateLimitBackoff: time.Minute,
		Clock:            fakeClock,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			observed = append(observed, backoff)
		},
	}
	classify := func(error) retry.Action { return retry.After }

	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(context.Background(), p, classify, func(context.Context) (int, error) {
			return 0, errors.New("rate limited")
		})
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, fakeClock.BlockUntilContext(ctx, 1))
	fakeClock.Advance(time.Minute)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("retry did not resume after clock advanced")
	}
	assert.Equal(t, []time.Duration{time.Minute}, observed)
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{MaxAttempts: 3, InitialBackoff: 10 * time.Second}

	calls := 0
	_, err := retry.Do(ctx, p, alwaysRetry, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   retry.Action
	}{
		{http.StatusTooManyRequests, retry.After},
		{http.StatusServiceUnavailable, retry.Retry},
		{http.StatusInternalServerError, retry.Retry},
		{http.StatusRequestTimeout, retry.Retry},
		{http.StatusUnauthorized, retry.Stop},
		{http.StatusBadRequest, retry.Stop},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, retry.ByStatus(tt.status))
		})
	}
}

func alwaysRetry(error) retry.Action { return retry.Retry }
