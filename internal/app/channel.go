package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/broadcast"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/platform/correlation"
)

const defaultStopTimeout = 5 * time.Second

// ChannelOptions tunes every LanguageChannel an Orchestrator creates.
type ChannelOptions struct {
	CallTimeout      time.Duration
	DeliveryInterval time.Duration
	StopTimeout      time.Duration
	Clock            clockwork.Clock
}

// LanguageChannel binds one target language to its translation pipeline and
// its broadcast manager.
type LanguageChannel struct {
	code        string
	translator  domain.Translator
	synthesizer domain.Synthesizer
	manager     *broadcast.Manager

	callTimeout time.Duration
	stopTimeout time.Duration
}

func NewLanguageChannel(code string, translator domain.Translator, synthesizer domain.Synthesizer, opts ChannelOptions) *LanguageChannel {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &LanguageChannel{
		code:        code,
		translator:  translator,
		synthesizer: synthesizer,
		manager:     broadcast.NewManager(code, clock, opts.DeliveryInterval),
		callTimeout: opts.CallTimeout,
		stopTimeout: stopTimeout,
	}
}

func (c *LanguageChannel) Code() string { return c.code }

func (c *LanguageChannel) Manager() *broadcast.Manager { return c.manager }

// Start launches the delivery loop. Starting a running channel is a no-op.
func (c *LanguageChannel) Start() {
	if c.manager.Start() {
		slog.Info("Language channel started", "lang", c.code)
	}
}

// Stop halts the delivery loop and waits for it to exit. Subscribers stay connected.
func (c *LanguageChannel) Stop() {
	c.manager.Stop()
	c.waitLoop()
}

// Close stops the loop and disconnects every subscriber. A closed channel
// cannot be restarted.
func (c *LanguageChannel) Close() {
	c.manager.Close()
	c.waitLoop()
}

func (c *LanguageChannel) waitLoop() {
	ctx, cancel := context.WithTimeout(context.Background(), c.stopTimeout)
	defer cancel()
	if err := c.manager.Wait(ctx); err != nil {
		slog.Warn("Delivery loop did not exit in time", "lang", c.code, "error", err)
	}
}

// TranslateAndBroadcast runs the pipeline for one segment: translate, then
// synthesize the translated text, then enqueue. Collaborator failures are
// turned into sentinels; only enqueue errors are returned.
func (c *LanguageChannel) TranslateAndBroadcast(ctx context.Context, text string) error {
	ctx = correlation.WithLanguage(ctx, c.code)

	translated := c.translate(ctx, text)

	var audio []byte
	if translated != domain.TranslationFailed {
		audio = c.synthesize(ctx, translated)
	}

	msg := domain.Message{
		Language:       c.code,
		OriginalText:   text,
		TranslatedText: translated,
		Audio:          audio,
	}
	if err := c.manager.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", c.code, err)
	}

	slog.DebugContext(ctx, "Message enqueued", "queue_depth", c.manager.QueueDepth(), "audio_bytes", len(audio))
	return nil
}

func (c *LanguageChannel) translate(ctx context.Context, text string) string {
	out, err := bounded(ctx, c.callTimeout, func(ctx context.Context) (string, error) {
		return c.translator.Translate(ctx, text, c.code)
	})
	if err != nil {
		slog.WarnContext(ctx, domain.TranslationFailed, "error", err)
		return domain.TranslationFailed
	}
	return out
}

func (c *LanguageChannel) synthesize(ctx context.Context, text string) []byte {
	out, err := bounded(ctx, c.callTimeout, func(ctx context.Context) ([]byte, error) {
		return c.synthesizer.Synthesize(ctx, text, c.code)
	})
	if err != nil {
		slog.WarnContext(ctx, domain.SynthesisFailed, "error", err)
		return nil
	}
	return out
}

type boundedResult[T any] struct {
	val T
	err error
}

// bounded runs fn with a deadline. It returns when fn does or when the
// deadline passes, whichever comes first, and turns a panic in fn into an error.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make(chan boundedResult[T], 1)
	go func() {
		var res boundedResult[T]
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("collaborator panic: %v", r)
			}
			results <- res
		}()
		res.val, res.err = fn(ctx)
	}()

	select {
	case res := <-results:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
