package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	openaisdk "github.com/openai/openai-go"
	"github.com/pscheid92/livetranslate/internal/domain"
)

// contextSize is the number of previous segments sent along as context.
const contextSize = 5

var errEmptyResponse = errors.New("openai returned no choices")

// Translator translates with a chat model. Each target language keeps its own
// rolling window of the previous source segments so the model sees the
// surrounding conversation.
type Translator struct {
	client openaisdk.Client
	model  string

	mu      sync.Mutex
	history map[string][]string
}

var _ domain.Translator = (*Translator)(nil)

func NewTranslator(cfg ClientConfig, model string) *Translator {
	return &Translator{
		client:  newClient(cfg),
		model:   model,
		history: make(map[string][]string),
	}
}

func (t *Translator) Translate(ctx context.Context, text, languageCode string) (string, error) {
	previous := t.window(languageCode)

	resp, err := t.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: t.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt(languageCode)),
			openaisdk.UserMessage(userPrompt(previous, text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}

	t.remember(languageCode, text)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// window returns a copy of the segments already translated into languageCode.
func (t *Translator) window(languageCode string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history[languageCode]...)
}

// remember records a successfully translated segment. Failed attempts are
// never recorded, so a retried call sees the same context.
func (t *Translator) remember(languageCode, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	window := append(t.history[languageCode], text)
	if len(window) > contextSize {
		window = window[len(window)-contextSize:]
	}
	t.history[languageCode] = window
}

func systemPrompt(languageCode string) string {
	return "You are a professional literary translator. " +
		"Translate the following text into " + languageCode +
		" using a fluent, natural, and context-aware style. " +
		"Only return the translated sentence"
}

func userPrompt(previous []string, text string) string {
	return "Context:\n" + strings.Join(previous, "\n") + "\n\nText:\n" + text + "\n\n"
}
