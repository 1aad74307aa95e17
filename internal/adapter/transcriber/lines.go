package transcriber

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pscheid92/livetranslate/internal/domain"
)

// Lines treats every non-empty line read from r as one finalized utterance.
// The reader is consumed by a single goroutine for the lifetime of the
// source; Start and Stop only gate whether lines reach the handler.
type Lines struct {
	reader  io.Reader
	handler domain.TranscriptHandler
	status  *statusLog

	scanOnce sync.Once
	lines    chan string
	scanErr  error

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ domain.TranscriptionSource = (*Lines)(nil)

func NewLines(r io.Reader, handler domain.TranscriptHandler) *Lines {
	return &Lines{
		reader:  r,
		handler: handler,
		status:  newStatusLog(),
		lines:   make(chan string),
	}
}

func (l *Lines) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return domain.ErrSourceRunning
	}
	l.scanOnce.Do(func() { go l.scan() })

	runCtx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{})

	l.status.set(domain.TranscriptionOn, "Reading transcript lines.")
	go l.forward(runCtx, l.done)
	return nil
}

func (l *Lines) scan() {
	defer close(l.lines)
	scanner := bufio.NewScanner(l.reader)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			l.lines <- line
		}
	}
	l.scanErr = scanner.Err()
}

func (l *Lines) forward(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-l.lines:
			if !ok {
				l.finish()
				return
			}
			l.handler(ctx, line)
		}
	}
}

// finish runs once the reader is exhausted. scanErr is safe to read because
// the scan goroutine wrote it before closing lines.
func (l *Lines) finish() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	if l.scanErr != nil {
		l.status.set(domain.TranscriptionError, "Reading input failed: "+l.scanErr.Error())
		return
	}
	l.status.set(domain.TranscriptionOff, "Input closed.")
}

func (l *Lines) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
	l.status.set(domain.TranscriptionOff, "Transcriber stopped.")
}

func (l *Lines) Status() domain.TranscriptionStatus {
	return l.status.snapshot()
}
