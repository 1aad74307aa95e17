package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/adapter/catalog"
	"github.com/pscheid92/livetranslate/internal/adapter/gemini"
	"github.com/pscheid92/livetranslate/internal/adapter/googletranslate"
	"github.com/pscheid92/livetranslate/internal/adapter/httpserver"
	"github.com/pscheid92/livetranslate/internal/adapter/microphone"
	"github.com/pscheid92/livetranslate/internal/adapter/openai"
	"github.com/pscheid92/livetranslate/internal/adapter/transcriber"
	ws "github.com/pscheid92/livetranslate/internal/adapter/websocket"
	"github.com/pscheid92/livetranslate/internal/adapter/yandex"
	"github.com/pscheid92/livetranslate/internal/app"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/metrics"
	"github.com/pscheid92/livetranslate/internal/platform/config"
	"github.com/pscheid92/livetranslate/internal/platform/logging"
	"github.com/pscheid92/livetranslate/internal/platform/retry"
	"github.com/pscheid92/livetranslate/internal/platform/version"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
	retryAttempts   = 3
	retryBackoff    = 500 * time.Millisecond
	rateLimitWait   = 5 * time.Second
)

// closers collects provider clients to release on exit, last opened first.
type closers []io.Closer

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			slog.Warn("Failed to close provider client", "client", fmt.Sprintf("%T", c[i]), "error", err)
		}
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func newGuard(kind string, limiter *rate.Limiter, classify retry.Classify, clock clockwork.Clock) *app.Guard {
	return app.NewGuard(kind, app.GuardOptions{
		Limiter: limiter,
		Retry: retry.Policy{
			MaxAttempts:      retryAttempts,
			InitialBackoff:   retryBackoff,
			RateLimitBackoff: rateLimitWait,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Retrying external call", "component", kind, "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
		Classify: classify,
		Clock:    clock,
	})
}

func buildTranslator(ctx context.Context, cfg *config.Config, limiter *rate.Limiter, clock clockwork.Clock, conns *closers) (domain.Translator, error) {
	var (
		inner    domain.Translator
		classify retry.Classify
	)
	switch cfg.Translator {
	case config.ProviderOpenAI:
		inner = openai.NewTranslator(openai.ClientConfig{APIKey: cfg.OpenAIAPIKey}, cfg.OpenAITranslationModel)
		classify = openai.Classify
	case config.ProviderGemini:
		tr, err := gemini.NewTranslator(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, err
		}
		inner, classify = tr, gemini.Classify
	case config.ProviderGoogle:
		tr, err := googletranslate.NewTranslator(ctx, googletranslate.Config{APIKey: cfg.GoogleAPIKey})
		if err != nil {
			return nil, err
		}
		*conns = append(*conns, tr)
		inner, classify = tr, googletranslate.Classify
	default:
		return nil, fmt.Errorf("unsupported translator %q", cfg.Translator)
	}

	slog.Info("Translator configured", "provider", cfg.Translator)
	return app.NewResilientTranslator(inner, newGuard("translator", limiter, classify, clock)), nil
}

func buildSynthesizer(cfg *config.Config, langs *catalog.Catalog, limiter *rate.Limiter, clock clockwork.Clock, conns *closers) (domain.Synthesizer, error) {
	var (
		inner    domain.Synthesizer
		classify retry.Classify
	)
	switch cfg.Synthesizer {
	case config.ProviderOpenAI:
		inner = openai.NewSynthesizer(openai.ClientConfig{APIKey: cfg.OpenAIAPIKey}, cfg.OpenAISpeechModel, langs.For(config.ProviderOpenAI))
		classify = openai.Classify
	case config.ProviderYandex:
		conn, err := yandex.Dial(yandex.TTSEndpoint)
		if err != nil {
			return nil, err
		}
		*conns = append(*conns, conn)
		creds := yandex.Credentials{APIKey: cfg.YandexAPIKey, FolderID: cfg.YandexFolderID}
		inner = yandex.NewSynthesizer(conn, creds, langs.For(config.ProviderYandex))
		classify = yandex.Classify
	default:
		return nil, fmt.Errorf("unsupported synthesizer %q", cfg.Synthesizer)
	}

	slog.Info("Synthesizer configured", "provider", cfg.Synthesizer, "languages", len(inner.Languages()))
	return app.NewResilientSynthesizer(inner, newGuard("synthesizer", limiter, classify, clock)), nil
}

func buildSourceFactory(cfg *config.Config, conns *closers) (app.SourceFactory, error) {
	switch cfg.Transcriber {
	case config.ProviderStdin:
		return func(handler domain.TranscriptHandler) domain.TranscriptionSource {
			return transcriber.NewLines(os.Stdin, handler)
		}, nil
	case config.ProviderYandex:
		conn, err := yandex.Dial(yandex.STTEndpoint)
		if err != nil {
			return nil, err
		}
		*conns = append(*conns, conn)
		recognizer := yandex.NewRecognizer(conn,
			yandex.Credentials{APIKey: cfg.YandexAPIKey, FolderID: cfg.YandexFolderID},
			yandex.RecognizerConfig{Language: cfg.SourceLanguage, SampleRate: int64(cfg.SampleRate)},
		)
		mic := microphone.New(microphone.Config{SampleRate: float64(cfg.SampleRate), FramesPerBuffer: cfg.FramesPerBuffer})
		return func(handler domain.TranscriptHandler) domain.TranscriptionSource {
			return transcriber.NewStreaming(mic, recognizer, handler)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported transcriber %q", cfg.Transcriber)
	}
}

func runGracefulShutdown(srv *httpserver.Server, orchestrator *app.Orchestrator) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// closes every subscriber with 1001 before the listener goes away
		orchestrator.StopWorkingTasks(shutdownCtx)

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	v := version.Get()
	metrics.BuildInfo.WithLabelValues(v.Version, v.Commit, v.GoVersion).Set(1)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", v.Version)

	langs, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load language catalog: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.ExternalRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ExternalRateLimit), 1)
	}

	var conns closers
	defer conns.close()

	translator, err := buildTranslator(context.Background(), cfg, limiter, clock, &conns)
	if err != nil {
		return fmt.Errorf("create translator: %w", err)
	}
	synthesizer, err := buildSynthesizer(cfg, langs, limiter, clock, &conns)
	if err != nil {
		return fmt.Errorf("create synthesizer: %w", err)
	}
	newSource, err := buildSourceFactory(cfg, &conns)
	if err != nil {
		return fmt.Errorf("create transcription source: %w", err)
	}

	orchestrator := app.NewOrchestrator(app.Config{
		Translator:  translator,
		Synthesizer: synthesizer,
		NewSource:   newSource,
		Channel: app.ChannelOptions{
			CallTimeout:      cfg.ExternalCallTimeout,
			DeliveryInterval: cfg.DeliveryInterval,
		},
		TranscriptBuffer: cfg.TranscriptBuffer,
		ShutdownTimeout:  shutdownTimeout,
		Clock:            clock,
	})

	upgrader := ws.NewUpgrader(ws.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()))
	limits := ws.NewLimits(int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst, clock)

	healthChecks := []httpserver.HealthCheck{httpserver.TranscriptionCheck(orchestrator)}

	srv, err := httpserver.NewServer(cfg, orchestrator, upgrader, limits, healthChecks, clock)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	done := runGracefulShutdown(srv, orchestrator)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}

	<-done
	return nil
}
