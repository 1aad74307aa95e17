package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Provider names accepted by TRANSLATOR, SYNTHESIZER and TRANSCRIBER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderGoogle = "google"
	ProviderYandex = "yandex"
	ProviderStdin  = "stdin"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	Translator  string `env:"TRANSLATOR" default:"openai"`
	Synthesizer string `env:"SYNTHESIZER" default:"openai"`
	Transcriber string `env:"TRANSCRIBER" default:"yandex"`

	OpenAIAPIKey           string `env:"OPENAI_API_KEY"`
	OpenAITranslationModel string `env:"OPENAI_TRANSLATION_MODEL" default:"gpt-4o-mini"`
	OpenAISpeechModel      string `env:"OPENAI_SPEECH_MODEL" default:"tts-1"`
	GeminiAPIKey           string `env:"GEMINI_API_KEY"`
	GeminiModel            string `env:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GoogleAPIKey           string `env:"GOOGLE_API_KEY"`
	YandexAPIKey           string `env:"YANDEX_API_KEY"`
	YandexFolderID         string `env:"YANDEX_FOLDER_ID"`

	SourceLanguage  string `env:"SOURCE_LANGUAGE" default:"en-US"`
	SampleRate      int    `env:"SAMPLE_RATE" default:"16000"`
	FramesPerBuffer int    `env:"FRAMES_PER_BUFFER" default:"3200"`

	ExternalCallTimeout time.Duration `env:"EXTERNAL_CALL_TIMEOUT" default:"15s"`
	ExternalRateLimit   float64       `env:"EXTERNAL_RATE_LIMIT" default:"0"` // calls per second, 0 = unlimited
	DeliveryInterval    time.Duration `env:"DELIVERY_INTERVAL" default:"0s"`
	TranscriptBuffer    int           `env:"TRANSCRIPT_BUFFER" default:"64"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"20"`
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := oneOf("TRANSLATOR", cfg.Translator, ProviderOpenAI, ProviderGemini, ProviderGoogle); err != nil {
		return err
	}
	if err := oneOf("SYNTHESIZER", cfg.Synthesizer, ProviderOpenAI, ProviderYandex); err != nil {
		return err
	}
	if err := oneOf("TRANSCRIBER", cfg.Transcriber, ProviderYandex, ProviderStdin); err != nil {
		return err
	}

	required := map[string]string{}
	if cfg.Translator == ProviderOpenAI || cfg.Synthesizer == ProviderOpenAI {
		required["OPENAI_API_KEY"] = cfg.OpenAIAPIKey
	}
	if cfg.Translator == ProviderGemini {
		required["GEMINI_API_KEY"] = cfg.GeminiAPIKey
	}
	if cfg.Translator == ProviderGoogle {
		required["GOOGLE_API_KEY"] = cfg.GoogleAPIKey
	}
	if cfg.Synthesizer == ProviderYandex || cfg.Transcriber == ProviderYandex {
		required["YANDEX_API_KEY"] = cfg.YandexAPIKey
		required["YANDEX_FOLDER_ID"] = cfg.YandexFolderID
	}
	// Sorted so the reported variable is deterministic
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if required[name] == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.ExternalCallTimeout <= 0 {
		return errors.New("EXTERNAL_CALL_TIMEOUT must be positive")
	}
	if cfg.ExternalRateLimit < 0 {
		return errors.New("EXTERNAL_RATE_LIMIT must not be negative")
	}
	if cfg.DeliveryInterval < 0 {
		return errors.New("DELIVERY_INTERVAL must not be negative")
	}
	if cfg.TranscriptBuffer < 1 {
		return errors.New("TRANSCRIPT_BUFFER must be at least 1")
	}
	if cfg.SampleRate <= 0 || cfg.FramesPerBuffer <= 0 {
		return errors.New("SAMPLE_RATE and FRAMES_PER_BUFFER must be positive")
	}

	return nil
}

func oneOf(name, value string, allowed ...string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%s must be one of %v, got %q", name, allowed, value)
	}
	return nil
}
