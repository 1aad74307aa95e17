package domain

import "context"

// TranscriptionState is the coarse state reported by a TranscriptionSource.
type TranscriptionState string

const (
	TranscriptionOff   TranscriptionState = "off"
	TranscriptionOn    TranscriptionState = "on"
	TranscriptionError TranscriptionState = "error"
)

// TranscriptionStatus is the status snapshot surfaced on the state endpoint.
type TranscriptionStatus struct {
	Status  TranscriptionState `json:"status"`
	Message string             `json:"message"`
}

// TranscriptHandler receives one finalized utterance. It is called from the
// transcription goroutine and must be safe to call concurrently with everything else.
type TranscriptHandler func(ctx context.Context, text string)

// TranscriptionSource produces finalized transcript segments.
// Errors surface only through Status; Start fails only when the source cannot be started at all.
type TranscriptionSource interface {
	Start(ctx context.Context) error
	Stop()
	Status() TranscriptionStatus
}
