package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pscheid92/livetranslate/internal/domain"
)

const (
	defaultStopTimeout = 5 * time.Second
	audioBuffer        = 32
)

// AudioSource produces raw audio chunks until ctx ends. It must not close out.
type AudioSource interface {
	Capture(ctx context.Context, out chan<- []byte) error
}

// Recognizer turns an audio stream into finalized utterances.
type Recognizer interface {
	Recognize(ctx context.Context, audio <-chan []byte, emit func(text string)) error
}

// Streaming captures audio and streams it to a recognizer on its own
// goroutine. Failures after Start surface through Status only.
type Streaming struct {
	audio       AudioSource
	recognizer  Recognizer
	handler     domain.TranscriptHandler
	stopTimeout time.Duration
	status      *statusLog

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ domain.TranscriptionSource = (*Streaming)(nil)

func NewStreaming(audio AudioSource, recognizer Recognizer, handler domain.TranscriptHandler) *Streaming {
	return &Streaming{
		audio:       audio,
		recognizer:  recognizer,
		handler:     handler,
		stopTimeout: defaultStopTimeout,
		status:      newStatusLog(),
	}
}

// Start launches capture and recognition. It returns domain.ErrSourceRunning
// while a previous run is still active.
func (s *Streaming) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return domain.ErrSourceRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	s.status.set(domain.TranscriptionOn, "Transcription started.")
	go s.run(runCtx, s.done)
	return nil
}

func (s *Streaming) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()

	chunks := make(chan []byte, audioBuffer)
	captureErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		captureErr <- s.audio.Capture(captureCtx, chunks)
	}()

	recErr := s.recognizer.Recognize(ctx, chunks, func(text string) {
		if ctx.Err() != nil {
			return
		}
		s.handler(ctx, text)
	})

	stopCapture()
	capErr := <-captureErr

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	switch err := firstFailure(recErr, capErr); {
	case ctx.Err() != nil:
		// stopped on request
	case err != nil:
		slog.ErrorContext(ctx, "Transcription failed", "error", err)
		s.status.set(domain.TranscriptionError, fmt.Sprintf("An error occurred during transcription: %v", err))
	default:
		s.status.set(domain.TranscriptionOff, "Transcription finished.")
	}
}

func firstFailure(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// Stop cancels the current run and waits, bounded, for it to exit.
func (s *Streaming) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		slog.Warn("Transcription did not stop in time", "timeout", s.stopTimeout)
	}

	if s.status.current() == domain.TranscriptionOn {
		s.status.set(domain.TranscriptionOff, "Transcriber stopped.")
		return
	}
	s.status.note("Transcriber stopped.")
}

func (s *Streaming) Status() domain.TranscriptionStatus {
	return s.status.snapshot()
}
