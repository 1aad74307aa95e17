package app

import (
	"context"
	"errors"
	"sync"

	"github.com/pscheid92/livetranslate/internal/domain"
)

// --- Mock implementations ---

type mockTranslator struct {
	translateFn func(ctx context.Context, text, languageCode string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockTranslator) Translate(ctx context.Context, text, languageCode string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, languageCode+":"+text)
	m.mu.Unlock()

	if m.translateFn != nil {
		return m.translateFn(ctx, text, languageCode)
	}
	return languageCode + "(" + text + ")", nil
}

func (m *mockTranslator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSynthesizer struct {
	synthesizeFn func(ctx context.Context, text, languageCode string) ([]byte, error)

	mu     sync.Mutex
	inputs []string
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, text)
	m.mu.Unlock()

	if m.synthesizeFn != nil {
		return m.synthesizeFn(ctx, text, languageCode)
	}
	return []byte("mp3:" + text), nil
}

func (m *mockSynthesizer) Languages() []domain.Language {
	return []domain.Language{{Code: "fr", Name: "French"}, {Code: "es", Name: "Spanish"}}
}

func (m *mockSynthesizer) synthesized() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputs...)
}

type mockSource struct {
	startErr error

	mu      sync.Mutex
	handler domain.TranscriptHandler
	running bool
	starts  int
	stops   int
	ctx     context.Context
}

func (m *mockSource) factory(handler domain.TranscriptHandler) domain.TranscriptionSource {
	m.handler = handler
	return m
}

func (m *mockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	m.ctx = ctx
	return nil
}

func (m *mockSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
}

func (m *mockSource) Status() domain.TranscriptionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.startErr != nil && m.starts > 0:
		return domain.TranscriptionStatus{Status: domain.TranscriptionError, Message: m.startErr.Error()}
	case m.running:
		return domain.TranscriptionStatus{Status: domain.TranscriptionOn}
	default:
		return domain.TranscriptionStatus{Status: domain.TranscriptionOff}
	}
}

// emit pushes text through the handler like the transcription goroutine would.
func (m *mockSource) emit(text string) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	m.handler(ctx, text)
}

var errProvider = errors.New("provider unavailable")
