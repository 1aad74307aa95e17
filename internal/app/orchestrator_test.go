package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, tr domain.Translator, sy domain.Synthesizer, src *mockSource) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(Config{
		Translator:       tr,
		Synthesizer:      sy,
		NewSource:        src.factory,
		Channel:          ChannelOptions{CallTimeout: time.Second},
		TranscriptBuffer: 8,
	})
	t.Cleanup(func() { o.StopWorkingTasks(context.Background()) })
	return o
}

func TestOrchestrator_StartStopTransitions(t *testing.T) {
	src := &mockSource{}
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, src)
	ctx := context.Background()

	assert.Equal(t, StateStopped, o.State())

	o.StartWorkingTasks(ctx)
	o.StartWorkingTasks(ctx)
	assert.Equal(t, StateRunning, o.State())
	assert.Equal(t, 1, src.starts, "second start is a no-op")
	assert.Equal(t, domain.TranscriptionOn, o.TranscriptionStatus().Status)

	o.StopWorkingTasks(ctx)
	o.StopWorkingTasks(ctx)
	assert.Equal(t, StateStopped, o.State())
	assert.Equal(t, 1, src.stops)
	assert.Equal(t, domain.TranscriptionOff, o.TranscriptionStatus().Status)
}

func TestOrchestrator_SourceStartFailureOnlyReported(t *testing.T) {
	src := &mockSource{startErr: errors.New("microphone missing")}
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, src)

	o.StartWorkingTasks(context.Background())

	assert.Equal(t, StateRunning, o.State())
	status := o.TranscriptionStatus()
	assert.Equal(t, domain.TranscriptionError, status.Status)
	assert.Contains(t, status.Message, "microphone missing")
}

func TestOrchestrator_AddLanguage(t *testing.T) {
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, &mockSource{})

	require.NoError(t, o.AddLanguage("fr"))
	assert.ErrorIs(t, o.AddLanguage("fr"), domain.ErrChannelExists)
	assert.ErrorIs(t, o.AddLanguage(""), domain.ErrEmptyLanguage)
	assert.ErrorIs(t, o.AddLanguage("  "), domain.ErrEmptyLanguage)
	assert.ErrorIs(t, o.AddLanguage("fr "), domain.ErrInvalidLanguageCode)
	assert.ErrorIs(t, o.AddLanguage("\tes"), domain.ErrInvalidLanguageCode)
	require.NoError(t, o.AddLanguage("es"))
	require.NoError(t, o.AddLanguage("FR"), "codes are case-sensitive")

	assert.Equal(t, []string{"FR", "es", "fr"}, o.Languages())
}

func TestOrchestrator_StopClearsChannels(t *testing.T) {
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, &mockSource{})
	ctx := context.Background()

	o.StartWorkingTasks(ctx)
	require.NoError(t, o.AddLanguage("fr"))
	dial := subscriberServer(t, o.HandleConnectionRequest)
	conn := dial("fr")
	require.Eventually(t, func() bool { return o.ClientCount() == 1 }, time.Second, time.Millisecond)

	o.StopWorkingTasks(ctx)

	assert.Empty(t, o.Languages())
	assert.Equal(t, 0, o.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseGoingAway), "expected 1001, got %v", err)

	again := dial("fr")
	require.NoError(t, again.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = again.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseUnsupportedData), "expected 1003 after stop, got %v", err)
	assert.Equal(t, 0, o.ClientCount())
}

func TestOrchestrator_RestartNeedsLanguagesAgain(t *testing.T) {
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, &mockSource{})
	ctx := context.Background()

	require.NoError(t, o.AddLanguage("fr"))
	o.StartWorkingTasks(ctx)
	o.StopWorkingTasks(ctx)
	o.StartWorkingTasks(ctx)

	assert.Empty(t, o.Languages())
	dial := subscriberServer(t, o.HandleConnectionRequest)
	conn := dial("fr")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseUnsupportedData), "expected 1003, got %v", err)
}

func TestOrchestrator_UnknownLanguageRejected(t *testing.T) {
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, &mockSource{})
	dial := subscriberServer(t, o.HandleConnectionRequest)

	conn := dial("xx")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseUnsupportedData), "expected 1003, got %v", err)
	assert.Equal(t, 0, o.ClientCount())
}

func TestOrchestrator_TranscriptReachesEverySubscriber(t *testing.T) {
	src := &mockSource{}
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, src)
	ctx := context.Background()

	require.NoError(t, o.AddLanguage("fr"))
	o.StartWorkingTasks(ctx)

	dial := subscriberServer(t, o.HandleConnectionRequest)
	first := dial("fr")
	second := dial("fr")
	require.Eventually(t, func() bool { return o.ClientCount() == 2 }, time.Second, time.Millisecond)

	src.emit("hello")

	for _, conn := range []*ws.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, "fr", msg.Language)
		assert.Equal(t, "hello", msg.OriginalText)
		assert.Equal(t, "fr(hello)", msg.TranslatedText)
		assert.Equal(t, []byte("mp3:fr(hello)"), msg.Audio)
	}
}

func TestOrchestrator_FailingChannelIsolated(t *testing.T) {
	tr := &mockTranslator{translateFn: func(_ context.Context, text, lang string) (string, error) {
		if lang == "fr" {
			return "", errProvider
		}
		return "hola", nil
	}}
	sy := &mockSynthesizer{}
	src := &mockSource{}
	o := newTestOrchestrator(t, tr, sy, src)

	require.NoError(t, o.AddLanguage("fr"))
	require.NoError(t, o.AddLanguage("es"))
	o.StartWorkingTasks(context.Background())

	dial := subscriberServer(t, o.HandleConnectionRequest)
	fr := dial("fr")
	es := dial("es")
	require.Eventually(t, func() bool { return o.ClientCount() == 2 }, time.Second, time.Millisecond)

	src.emit("hello")

	frMsg := readMessage(t, fr)
	assert.Equal(t, domain.TranslationFailed, frMsg.TranslatedText)
	assert.Empty(t, frMsg.Audio)

	esMsg := readMessage(t, es)
	assert.Equal(t, "hola", esMsg.TranslatedText)
	assert.Equal(t, []byte("mp3:hola"), esMsg.Audio)
	assert.Equal(t, []string{"hola"}, sy.synthesized())
}

func TestOrchestrator_OnTranscriptRunsChannelsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	tr := &mockTranslator{translateFn: func(_ context.Context, text, lang string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return lang + ":" + text, nil
	}}
	o := newTestOrchestrator(t, tr, &mockSynthesizer{}, &mockSource{})
	for _, code := range []string{"de", "es", "fr"} {
		require.NoError(t, o.AddLanguage(code))
	}

	done := make(chan struct{})
	go func() {
		o.OnTranscript(context.Background(), "hello")
		close(done)
	}()

	require.Eventually(t, func() bool { return peak.Load() == 3 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("OnTranscript returned before every channel finished")
	default:
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnTranscript did not return")
	}
}

func TestOrchestrator_NoChannelsDropsTranscript(t *testing.T) {
	tr := &mockTranslator{}
	o := newTestOrchestrator(t, tr, &mockSynthesizer{}, &mockSource{})

	o.OnTranscript(context.Background(), "nobody listens")

	assert.Equal(t, 0, tr.callCount())
}

func TestOrchestrator_TranscriptIgnoredWhileStopped(t *testing.T) {
	tr := &mockTranslator{}
	src := &mockSource{}
	o := newTestOrchestrator(t, tr, &mockSynthesizer{}, src)
	require.NoError(t, o.AddLanguage("fr"))

	src.emit("too early")

	assert.Equal(t, 0, tr.callCount())
}

func TestOrchestrator_SupportedLanguages(t *testing.T) {
	o := newTestOrchestrator(t, &mockTranslator{}, &mockSynthesizer{}, &mockSource{})

	langs := o.SupportedLanguages()
	require.Len(t, langs, 2)
	assert.Equal(t, "fr", langs[0].Code)
}
