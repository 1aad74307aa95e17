package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/broadcast"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/metrics"
	"github.com/pscheid92/livetranslate/internal/platform/correlation"
)

type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// SourceFactory builds the transcription source, wiring its segments to handler.
type SourceFactory func(handler domain.TranscriptHandler) domain.TranscriptionSource

// Config holds the collaborators and tuning for an Orchestrator.
type Config struct {
	Translator       domain.Translator
	Synthesizer      domain.Synthesizer
	NewSource        SourceFactory
	Channel          ChannelOptions
	TranscriptBuffer int
	ShutdownTimeout  time.Duration
	Clock            clockwork.Clock
}

// Orchestrator owns the language channels and the transcription lifecycle.
// Exactly one instance is built by the composition root.
type Orchestrator struct {
	translator  domain.Translator
	synthesizer domain.Synthesizer
	source      domain.TranscriptionSource
	registry    *ChannelRegistry
	channelOpts ChannelOptions
	bufferSize  int
	shutdown    time.Duration
	clock       clockwork.Clock

	mu        sync.Mutex
	state     State
	runCancel context.CancelFunc

	handoff atomic.Pointer[TranscriptHandoff]
}

func NewOrchestrator(cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Channel.Clock == nil {
		cfg.Channel.Clock = clock
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}

	o := &Orchestrator{
		translator:  cfg.Translator,
		synthesizer: cfg.Synthesizer,
		registry:    NewChannelRegistry(),
		channelOpts: cfg.Channel,
		bufferSize:  cfg.TranscriptBuffer,
		shutdown:    shutdown,
		clock:       clock,
	}
	o.source = cfg.NewSource(o.submit)
	return o
}

// StartWorkingTasks moves Stopped to Running: it starts the transcript
// consumer, the transcription source and every channel loop. A source that
// fails to start is reported through TranscriptionStatus only.
func (o *Orchestrator) StartWorkingTasks(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateRunning {
		slog.DebugContext(ctx, "Working tasks already running")
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.runCancel = cancel

	handoff := NewTranscriptHandoff(o.bufferSize, o.OnTranscript)
	handoff.Start(runCtx)
	o.handoff.Store(handoff)

	if err := o.source.Start(runCtx); err != nil {
		slog.ErrorContext(ctx, "Transcription source failed to start", "error", err)
	}

	for _, ch := range o.registry.Snapshot() {
		ch.Start()
	}

	o.state = StateRunning
	slog.InfoContext(ctx, "Working tasks started", "channels", o.registry.Len())
}

// StopWorkingTasks moves Running to Stopped: it stops the source, closes
// every channel and clears the registry.
func (o *Orchestrator) StopWorkingTasks(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateStopped {
		slog.DebugContext(ctx, "Working tasks already stopped")
		return
	}

	// Cancel and release the handoff before stopping the source so a source
	// blocked in Offer can return.
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	if handoff := o.handoff.Swap(nil); handoff != nil {
		waitCtx, cancel := context.WithTimeout(ctx, o.shutdown)
		if err := handoff.Stop(waitCtx); err != nil {
			slog.WarnContext(ctx, "Transcript consumer did not exit in time", "error", err)
		}
		cancel()
	}
	o.source.Stop()

	channels := o.registry.Clear()
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Close()
		}()
	}
	wg.Wait()

	o.state = StateStopped
	slog.InfoContext(ctx, "Working tasks stopped", "closed_channels", len(channels))
}

// AddLanguage registers a channel for code and starts its delivery loop.
// It works in either state. Codes are exact keys and are never rewritten.
func (o *Orchestrator) AddLanguage(code string) error {
	switch trimmed := strings.TrimSpace(code); {
	case trimmed == "":
		return domain.ErrEmptyLanguage
	case trimmed != code:
		return fmt.Errorf("%w: %q", domain.ErrInvalidLanguageCode, code)
	}

	ch := NewLanguageChannel(code, o.translator, o.synthesizer, o.channelOpts)
	if err := o.registry.Add(ch); err != nil {
		ch.Close()
		return err
	}
	ch.Start()

	slog.Info("Language added", "lang", code, "channels", o.registry.Len())
	return nil
}

// OnTranscript fans text out to every registered channel and returns once
// all of them finished. A failing or panicking channel never affects the others.
func (o *Orchestrator) OnTranscript(ctx context.Context, text string) {
	if _, ok := correlation.ID(ctx); !ok {
		ctx = correlation.WithID(ctx, correlation.NewID())
	}
	metrics.TranscriptsReceivedTotal.Inc()

	channels := o.registry.Snapshot()
	if len(channels) == 0 {
		slog.DebugContext(ctx, "Transcript dropped, no channels", "text_len", len(text))
		return
	}

	start := o.clock.Now()
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					metrics.FanoutPanicsTotal.Inc()
					slog.ErrorContext(ctx, "Channel pipeline panic recovered", "lang", ch.Code(), "panic", r)
				}
			}()
			if err := ch.TranslateAndBroadcast(ctx, text); err != nil {
				slog.WarnContext(ctx, "Channel pipeline failed", "lang", ch.Code(), "error", err)
			}
		}()
	}
	wg.Wait()

	metrics.FanoutDuration.Observe(o.clock.Since(start).Seconds())
	slog.InfoContext(ctx, "Transcript broadcast", "channels", len(channels), "text_len", len(text))
}

// HandleConnectionRequest attaches transport to the channel for lang and
// blocks until the subscriber leaves. Unknown languages return
// domain.ErrUnknownLanguage without touching transport.
func (o *Orchestrator) HandleConnectionRequest(ctx context.Context, lang string, transport broadcast.Transport) error {
	ch, ok := o.registry.Get(lang)
	if !ok {
		return domain.ErrUnknownLanguage
	}
	err := ch.Manager().Accept(ctx, transport)
	if errors.Is(err, domain.ErrManagerClosed) {
		slog.InfoContext(ctx, "Subscriber rejected, channel closing", "lang", lang)
	}
	return err
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Languages() []string {
	return o.registry.Codes()
}

// ClientCount returns the number of subscribers across all channels.
func (o *Orchestrator) ClientCount() int {
	total := 0
	for _, ch := range o.registry.Snapshot() {
		total += ch.Manager().ConnectionCount()
	}
	return total
}

func (o *Orchestrator) TranscriptionStatus() domain.TranscriptionStatus {
	return o.source.Status()
}

// SupportedLanguages lists the languages the synthesizer offers.
func (o *Orchestrator) SupportedLanguages() []domain.Language {
	return o.synthesizer.Languages()
}

// submit is the handler given to the transcription source.
func (o *Orchestrator) submit(ctx context.Context, text string) {
	handoff := o.handoff.Load()
	if handoff == nil {
		slog.DebugContext(ctx, "Transcript ignored, orchestrator stopped")
		return
	}
	if err := handoff.Offer(ctx, text); err != nil {
		slog.DebugContext(ctx, "Transcript not handed off", "error", err)
	}
}
