package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var errHandoffStopped = errors.New("transcript handoff stopped")

// TranscriptHandoff carries segments from the transcription goroutine to a
// single consumer goroutine. Segments are consumed one at a time in the order
// they were offered.
type TranscriptHandoff struct {
	items   chan string
	consume func(ctx context.Context, text string)

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewTranscriptHandoff(capacity int, consume func(ctx context.Context, text string)) *TranscriptHandoff {
	if capacity < 1 {
		capacity = 1
	}
	return &TranscriptHandoff{
		items:   make(chan string, capacity),
		consume: consume,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer. ctx is passed to every consume call.
// Only the first call has an effect.
func (h *TranscriptHandoff) Start(ctx context.Context) {
	h.startOnce.Do(func() { go h.run(ctx) })
}

// Offer queues text, blocking while the buffer is full.
func (h *TranscriptHandoff) Offer(ctx context.Context, text string) error {
	select {
	case <-h.stop:
		return errHandoffStopped
	default:
	}

	select {
	case h.items <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stop:
		return errHandoffStopped
	}
}

// Stop signals the consumer and waits for the segment in flight to finish.
// Segments still buffered are dropped.
func (h *TranscriptHandoff) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stop) })
	// Never started: nothing to wait for
	h.startOnce.Do(func() { close(h.done) })

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of buffered segments.
func (h *TranscriptHandoff) Pending() int {
	return len(h.items)
}

func (h *TranscriptHandoff) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			if n := len(h.items); n > 0 {
				slog.Info("Dropping buffered transcripts", "count", n)
			}
			return
		case text := <-h.items:
			select {
			case <-h.stop:
				return
			default:
			}
			h.consume(ctx, text)
		}
	}
}
