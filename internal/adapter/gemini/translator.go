// Package gemini implements the translator on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/platform/retry"
	"google.golang.org/genai"
)

var errEmptyResponse = errors.New("gemini returned no text")

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

type Translator struct {
	client *genai.Client
	model  string
}

var _ domain.Translator = (*Translator)(nil)

func NewTranslator(ctx context.Context, cfg Config) (*Translator, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Translator{client: client, model: cfg.Model}, nil
}

func (t *Translator) Translate(ctx context.Context, text, languageCode string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction(languageCode), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, genai.Text(text), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errEmptyResponse
	}
	return out, nil
}

func instruction(languageCode string) string {
	return "You are a professional interpreter. Translate the user's text into " + languageCode +
		". Keep the tone of a live speaker. Only return the translated sentence."
}

// Classify maps Gemini errors onto retry actions.
func Classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	if code, ok := apiCode(err); ok {
		return retry.ByStatus(code)
	}
	return retry.Retry
}

func apiCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, true
	}
	return 0, false
}
