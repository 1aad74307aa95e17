// Package yandex talks to Yandex SpeechKit over gRPC: streaming recognition
// for the transcription source and utterance synthesis for the synthesizer.
package yandex

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/pscheid92/livetranslate/internal/platform/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	STTEndpoint = "stt.api.cloud.yandex.net:443"
	TTSEndpoint = "tts.api.cloud.yandex.net:443"
)

// Credentials authenticate every SpeechKit call.
type Credentials struct {
	APIKey   string
	FolderID string
}

func (c Credentials) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		"authorization", "Api-Key "+c.APIKey,
		"x-folder-id", c.FolderID,
	)
}

// Dial opens a TLS connection to a SpeechKit endpoint.
func Dial(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return conn, nil
}

// Classify maps gRPC status codes onto retry actions.
func Classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return retry.After
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return retry.Retry
	default:
		return retry.Stop
	}
}
