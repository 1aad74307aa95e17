package yandex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	stt "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
	"google.golang.org/grpc"
)

// RecognizerConfig describes the audio fed into the recognizer.
type RecognizerConfig struct {
	Language   string
	SampleRate int64
}

// Recognizer streams raw 16-bit PCM to SpeechKit and reports finalized
// utterances.
type Recognizer struct {
	client stt.RecognizerClient
	creds  Credentials
	config RecognizerConfig
}

func NewRecognizer(conn grpc.ClientConnInterface, creds Credentials, cfg RecognizerConfig) *Recognizer {
	return &Recognizer{client: stt.NewRecognizerClient(conn), creds: creds, config: cfg}
}

// Recognize sends audio until the channel is closed or ctx ends. emit is called
// from the receiving goroutine once per final result.
func (r *Recognizer) Recognize(ctx context.Context, audio <-chan []byte, emit func(text string)) error {
	ctx, cancel := context.WithCancel(r.creds.outgoing(ctx))
	defer cancel()

	stream, err := r.client.RecognizeStreaming(ctx)
	if err != nil {
		return fmt.Errorf("failed to open recognition stream: %w", err)
	}

	if err := stream.Send(r.sessionOptions()); err != nil {
		return fmt.Errorf("failed to send session options: %w", err)
	}

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- receive(stream, emit)
	}()

	for {
		select {
		case chunk, ok := <-audio:
			if !ok {
				if err := stream.CloseSend(); err != nil {
					return fmt.Errorf("failed to close recognition stream: %w", err)
				}
				return <-recvErr
			}
			req := &stt.StreamingRequest{
				Event: &stt.StreamingRequest_Chunk{Chunk: &stt.AudioChunk{Data: chunk}},
			}
			if err := stream.Send(req); err != nil {
				// the real cause comes from Recv
				if errors.Is(err, io.EOF) {
					return <-recvErr
				}
				return fmt.Errorf("failed to send audio chunk: %w", err)
			}
		case err := <-recvErr:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func receive(stream stt.Recognizer_RecognizeStreamingClient, emit func(string)) error {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recognition stream failed: %w", err)
		}

		final := resp.GetFinal()
		if final == nil {
			continue
		}
		for _, alt := range final.GetAlternatives() {
			if text := strings.TrimSpace(alt.GetText()); text != "" {
				emit(text)
				break
			}
		}
	}
}

func (r *Recognizer) sessionOptions() *stt.StreamingRequest {
	return &stt.StreamingRequest{
		Event: &stt.StreamingRequest_SessionOptions{
			SessionOptions: &stt.StreamingOptions{
				RecognitionModel: &stt.RecognitionModelOptions{
					AudioFormat: &stt.AudioFormatOptions{
						AudioFormat: &stt.AudioFormatOptions_RawAudio{
							RawAudio: &stt.RawAudio{
								AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
								SampleRateHertz:   r.config.SampleRate,
								AudioChannelCount: 1,
							},
						},
					},
					TextNormalization: &stt.TextNormalizationOptions{
						TextNormalization: stt.TextNormalizationOptions_TEXT_NORMALIZATION_ENABLED,
					},
					LanguageRestriction: &stt.LanguageRestrictionOptions{
						RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
						LanguageCode:    []string{r.config.Language},
					},
					AudioProcessingType: stt.RecognitionModelOptions_REAL_TIME,
				},
			},
		},
	}
}
