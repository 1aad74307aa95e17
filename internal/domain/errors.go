package domain

import "errors"

var (
	ErrChannelExists       = errors.New("language channel already exists")
	ErrUnknownLanguage     = errors.New("unknown language")
	ErrEmptyLanguage       = errors.New("language code is empty")
	ErrInvalidLanguageCode = errors.New("language code has surrounding whitespace")
	ErrManagerClosed       = errors.New("broadcast manager closed")
	ErrSourceRunning       = errors.New("transcription source already running")
)

// Failure markers. TranslationFailed replaces the translated text subscribers
// receive. SynthesisFailed only labels the log line; subscribers get empty audio.
const (
	TranslationFailed = "Translation failed"
	SynthesisFailed   = "Synthesis failed"
)
