package openai

import (
	"context"
	"fmt"
	"io"

	openaisdk "github.com/openai/openai-go"
	"github.com/pscheid92/livetranslate/internal/domain"
)

const defaultVoice = "alloy"

// Synthesizer renders mp3 speech with the audio speech endpoint.
type Synthesizer struct {
	client    openaisdk.Client
	model     string
	languages []domain.Language
	voices    map[string]string
}

var _ domain.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer builds a synthesizer offering languages. The voice of each
// language comes from its catalog entry.
func NewSynthesizer(cfg ClientConfig, model string, languages []domain.Language) *Synthesizer {
	voices := make(map[string]string, len(languages))
	for _, l := range languages {
		voices[l.Code] = l.Voice
	}
	return &Synthesizer{
		client:    newClient(cfg),
		model:     model,
		languages: languages,
		voices:    voices,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	voice := s.voices[languageCode]
	if voice == "" {
		voice = defaultVoice
	}

	resp, err := s.client.Audio.Speech.New(ctx, openaisdk.AudioSpeechNewParams{
		Input:          text,
		Model:          openaisdk.SpeechModel(s.model),
		Voice:          openaisdk.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openaisdk.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai speech body: %w", err)
	}
	return audio, nil
}

func (s *Synthesizer) Languages() []domain.Language {
	out := make([]domain.Language, len(s.languages))
	copy(out, s.languages)
	return out
}
