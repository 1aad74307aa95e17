package transcriber

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// --- Mock implementations ---

type fakeAudio struct {
	chunks [][]byte
	err    error // returned after the chunks are sent
	block  bool  // keep capturing until ctx ends
}

func (f *fakeAudio) Capture(ctx context.Context, out chan<- []byte) error {
	for _, c := range f.chunks {
		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

// echoRecognizer emits each chunk as an utterance.
type echoRecognizer struct {
	err error
}

func (r *echoRecognizer) Recognize(ctx context.Context, audio <-chan []byte, emit func(string)) error {
	for {
		select {
		case chunk, ok := <-audio:
			if !ok {
				return r.err
			}
			emit(string(chunk))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) handle(_ context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func (c *collector) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func waitForState(t *testing.T, src domain.TranscriptionSource, want domain.TranscriptionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return src.Status().Status == want
	}, waitFor, 5*time.Millisecond)
}

// --- Streaming ---

func TestStreaming_DeliversUtterancesInOrder(t *testing.T) {
	c := &collector{}
	src := NewStreaming(&fakeAudio{chunks: [][]byte{[]byte("one"), []byte("two")}, block: true}, &echoRecognizer{}, c.handle)

	require.NoError(t, src.Start(context.Background()))
	assert.Equal(t, domain.TranscriptionOn, src.Status().Status)

	require.Eventually(t, func() bool { return len(c.got()) == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"one", "two"}, c.got())

	src.Stop()
	status := src.Status()
	assert.Equal(t, domain.TranscriptionOff, status.Status)
	assert.Equal(t, "\n Transcription started.\n Transcriber stopped.", status.Message)
}

func TestStreaming_StartTwiceFails(t *testing.T) {
	src := NewStreaming(&fakeAudio{block: true}, &echoRecognizer{}, (&collector{}).handle)

	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	assert.ErrorIs(t, src.Start(context.Background()), domain.ErrSourceRunning)
}

func TestStreaming_RecognizerFailureSetsErrorStatus(t *testing.T) {
	src := NewStreaming(&fakeAudio{chunks: [][]byte{[]byte("x")}}, &echoRecognizer{err: errors.New("stream reset")}, (&collector{}).handle)

	require.NoError(t, src.Start(context.Background()))
	waitForState(t, src, domain.TranscriptionError)

	assert.Contains(t, src.Status().Message, "An error occurred during transcription: stream reset")
}

func TestStreaming_CaptureFailureSetsErrorStatus(t *testing.T) {
	src := NewStreaming(&fakeAudio{err: errors.New("no input device")}, &echoRecognizer{}, (&collector{}).handle)

	require.NoError(t, src.Start(context.Background()))
	waitForState(t, src, domain.TranscriptionError)

	assert.Contains(t, src.Status().Message, "no input device")
}

func TestStreaming_RestartAfterFailure(t *testing.T) {
	audio := &fakeAudio{err: errors.New("device lost")}
	src := NewStreaming(audio, &echoRecognizer{}, (&collector{}).handle)

	require.NoError(t, src.Start(context.Background()))
	waitForState(t, src, domain.TranscriptionError)

	src.Stop()
	assert.Equal(t, domain.TranscriptionError, src.Status().Status)

	audio.err, audio.block = nil, true
	require.NoError(t, src.Start(context.Background()))
	assert.Equal(t, domain.TranscriptionOn, src.Status().Status)
	src.Stop()
}

func TestStreaming_EndOfStreamIsNotAnError(t *testing.T) {
	src := NewStreaming(&fakeAudio{chunks: [][]byte{[]byte("bye")}}, &echoRecognizer{}, (&collector{}).handle)

	require.NoError(t, src.Start(context.Background()))
	waitForState(t, src, domain.TranscriptionOff)

	assert.Contains(t, src.Status().Message, "Transcription finished.")
}

func TestStreaming_StopWhenIdleIsNoop(t *testing.T) {
	src := NewStreaming(&fakeAudio{}, &echoRecognizer{}, (&collector{}).handle)

	src.Stop()

	assert.Equal(t, domain.TranscriptionStatus{Status: domain.TranscriptionOff}, src.Status())
}

// --- Lines ---

func TestLines_ForwardsNonEmptyLines(t *testing.T) {
	c := &collector{}
	src := NewLines(strings.NewReader("hello\n\n  world  \n"), c.handle)

	require.NoError(t, src.Start(context.Background()))
	waitForState(t, src, domain.TranscriptionOff)

	assert.Equal(t, []string{"hello", "world"}, c.got())
	assert.Contains(t, src.Status().Message, "Input closed.")
}

func TestLines_StopAndRestartKeepReading(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	c := &collector{}
	src := NewLines(pr, c.handle)

	require.NoError(t, src.Start(context.Background()))
	assert.ErrorIs(t, src.Start(context.Background()), domain.ErrSourceRunning)

	_, err := io.WriteString(pw, "first\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.got()) == 1 }, waitFor, 5*time.Millisecond)

	src.Stop()
	assert.Equal(t, domain.TranscriptionOff, src.Status().Status)

	require.NoError(t, src.Start(context.Background()))
	_, err = io.WriteString(pw, "second\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.got()) == 2 }, waitFor, 5*time.Millisecond)

	assert.Equal(t, []string{"first", "second"}, c.got())
	src.Stop()
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestLines_ReadErrorSetsErrorStatus(t *testing.T) {
	src := NewLines(failingReader{}, (&collector{}).handle)

	require.NoError(t, src.Start(context.Background()))
	waitForState(t, src, domain.TranscriptionError)

	assert.Contains(t, src.Status().Message, "tty gone")
}
