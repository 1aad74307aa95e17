// Package googletranslate implements the translator on the Google Cloud
// Translation v2 API.
package googletranslate

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/translate"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/platform/retry"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	errNoTranslation = errors.New("google translate returned no translations")
	errBadLanguage   = errors.New("invalid target language")
)

// Config selects the API key. BaseURL overrides the public endpoint.
type Config struct {
	APIKey  string
	BaseURL string
}

type Translator struct {
	client *translate.Client
}

var _ domain.Translator = (*Translator)(nil)

func NewTranslator(ctx context.Context, cfg Config) (*Translator, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google translate client: %w", err)
	}
	return &Translator{client: client}, nil
}

func (t *Translator) Translate(ctx context.Context, text, languageCode string) (string, error) {
	target, err := language.Parse(languageCode)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", errBadLanguage, languageCode, err)
	}

	out, err := t.client.Translate(ctx, []string{text}, target, &translate.Options{Format: translate.Text})
	if err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	if len(out) == 0 {
		return "", errNoTranslation
	}
	return out[0].Text, nil
}

func (t *Translator) Close() error {
	return t.client.Close()
}

// Classify maps translate errors onto retry actions.
func Classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retry.ByStatus(apiErr.Code)
	}
	if errors.Is(err, errNoTranslation) || errors.Is(err, errBadLanguage) {
		return retry.Stop
	}
	return retry.Retry
}
