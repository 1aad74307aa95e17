package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, use normal backoff
	After               // rate-limited, use longer backoff
)

// Policy bounds the attempts made against one external collaborator.
// A nil Clock uses the real clock.
type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration
	Clock            clockwork.Clock
	OnRetry          func(attempt int, err error, backoff time.Duration)
}

type Classify func(err error) Action
type Operation[T any] func(ctx context.Context) (T, error)

func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, errors.New("retry: MaxAttempts must be >= 1")
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		action := classify(err)
		if action == Stop {
			return zero, &PermanentError{Err: err}
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
		if attempt == p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if action == After {
			backoff = p.RateLimitBackoff
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-clock.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// ByStatus classifies an HTTP status code returned by a provider API.
func ByStatus(status int) Action {
	switch {
	case status == http.StatusTooManyRequests:
		return After
	case status == http.StatusRequestTimeout, status >= http.StatusInternalServerError:
		return Retry
	default:
		return Stop
	}
}

// Never is a Classify that treats every error as permanent.
func Never(error) Action { return Stop }

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
