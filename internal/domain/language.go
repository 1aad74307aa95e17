package domain

import "context"

// Language is one entry of the static catalog offered by the synthesizer.
type Language struct {
	Code  string `json:"code" yaml:"code"`
	Name  string `json:"name" yaml:"name"`
	Voice string `json:"voice,omitempty" yaml:"voice"`
}

// Translator translates text into the language identified by code.
type Translator interface {
	Translate(ctx context.Context, text, languageCode string) (string, error)
}

// Synthesizer turns text into encoded audio for the given language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
	Languages() []Language
}
