// Package transcriber provides the transcription sources: a streaming source
// feeding captured audio to a recognizer, and a line source reading text.
package transcriber

import (
	"log/slog"
	"sync"

	"github.com/pscheid92/livetranslate/internal/domain"
)

// statusLog tracks the coarse state and the accumulated status messages.
type statusLog struct {
	mu      sync.Mutex
	state   domain.TranscriptionState
	message string
}

func newStatusLog() *statusLog {
	return &statusLog{state: domain.TranscriptionOff}
}

func (l *statusLog) set(state domain.TranscriptionState, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	l.appendLocked(message)
}

// note appends message without changing the state.
func (l *statusLog) note(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(message)
}

func (l *statusLog) appendLocked(message string) {
	if message == "" {
		return
	}
	slog.Info("Transcriber status", "state", l.state, "message", message)
	l.message += "\n " + message
}

func (l *statusLog) snapshot() domain.TranscriptionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.TranscriptionStatus{Status: l.state, Message: l.message}
}

func (l *statusLog) current() domain.TranscriptionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
