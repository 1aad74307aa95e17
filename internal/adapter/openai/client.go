// Package openai implements the translator and synthesizer on top of the
// OpenAI API.
package openai

import (
	"context"
	"errors"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pscheid92/livetranslate/internal/platform/retry"
)

// ClientConfig holds the settings shared by the translator and synthesizer.
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

func newClient(cfg ClientConfig) openaisdk.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are owned by the caller's guard
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openaisdk.NewClient(opts...)
}

// Classify maps OpenAI errors onto retry actions.
func Classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return retry.ByStatus(apiErr.StatusCode)
	}
	// transport failures and empty responses
	return retry.Retry
}
