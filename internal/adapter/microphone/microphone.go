// Package microphone captures mono 16-bit PCM from the default input device.
package microphone

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// maxReadFailures consecutive failed reads end the capture.
const maxReadFailures = 50

type Config struct {
	SampleRate      float64
	FramesPerBuffer int
}

type Microphone struct {
	config Config
}

func New(cfg Config) *Microphone {
	return &Microphone{config: cfg}
}

// Capture opens the default input stream and sends one little-endian PCM
// chunk per buffer to out until ctx ends. Chunks are dropped while out is full.
// Capture does not close out.
func (m *Microphone) Capture(ctx context.Context, out chan<- []byte) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buffer := make([]int16, m.config.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, m.config.SampleRate, len(buffer), buffer)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	defer stream.Stop()

	slog.InfoContext(ctx, "Microphone capture started", "sample_rate", m.config.SampleRate, "frames", len(buffer))

	dropped, failures := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			if dropped > 0 {
				slog.WarnContext(ctx, "Microphone chunks dropped", "count", dropped)
			}
			return err
		}

		if err := stream.Read(); err != nil {
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("microphone read failed %d times: %w", failures, err)
			}
			// overflow is transient, the next read resyncs
			slog.DebugContext(ctx, "Microphone read failed", "error", err)
			continue
		}
		failures = 0

		select {
		case out <- encodePCM(buffer):
		case <-ctx.Done():
		default:
			dropped++
		}
	}
}

func encodePCM(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
