package yandex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pscheid92/livetranslate/internal/domain"
	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	"google.golang.org/grpc"
)

// ErrNoVoice is returned for a language without a configured voice.
var ErrNoVoice = errors.New("no voice for language")

// Synthesizer renders mp3 speech with SpeechKit utterance synthesis.
type Synthesizer struct {
	client    tts.SynthesizerClient
	creds     Credentials
	languages []domain.Language
	voices    map[string]string
}

var _ domain.Synthesizer = (*Synthesizer)(nil)

func NewSynthesizer(conn grpc.ClientConnInterface, creds Credentials, languages []domain.Language) *Synthesizer {
	voices := make(map[string]string, len(languages))
	for _, l := range languages {
		voices[l.Code] = l.Voice
	}
	return &Synthesizer{
		client:    tts.NewSynthesizerClient(conn),
		creds:     creds,
		languages: languages,
		voices:    voices,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	voice, ok := s.voices[languageCode]
	if !ok || voice == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoVoice, languageCode)
	}

	stream, err := s.client.UtteranceSynthesis(s.creds.outgoing(ctx), buildRequest(text, voice))
	if err != nil {
		return nil, fmt.Errorf("failed to start synthesis: %w", err)
	}

	var audio bytes.Buffer
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to receive audio data: %w", err)
		}
		if chunk := resp.GetAudioChunk(); chunk != nil {
			audio.Write(chunk.GetData())
		}
	}

	return audio.Bytes(), nil
}

func (s *Synthesizer) Languages() []domain.Language {
	out := make([]domain.Language, len(s.languages))
	copy(out, s.languages)
	return out
}

func buildRequest(text, voice string) *tts.UtteranceSynthesisRequest {
	req := &tts.UtteranceSynthesisRequest{}
	req.SetText(text)

	voiceHint := &tts.Hints{}
	voiceHint.SetVoice(voice)
	speedHint := &tts.Hints{}
	speedHint.SetSpeed(1.0)
	req.SetHints([]*tts.Hints{voiceHint, speedHint})

	container := &tts.ContainerAudio{}
	container.SetContainerAudioType(tts.ContainerAudio_MP3)
	audioSpec := &tts.AudioFormatOptions{}
	audioSpec.SetContainerAudio(container)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(tts.UtteranceSynthesisRequest_LUFS)
	return req
}
