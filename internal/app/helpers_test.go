package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/pscheid92/livetranslate/internal/broadcast"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/stretchr/testify/require"
)

// subscriberServer upgrades /<lang> and hands the socket to accept.
func subscriberServer(t *testing.T, accept func(ctx context.Context, lang string, transport broadcast.Transport) error) func(lang string) *ws.Conn {
	t.Helper()

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		lang := strings.TrimPrefix(r.URL.Path, "/")
		if err := accept(context.Background(), lang, conn); errors.Is(err, domain.ErrUnknownLanguage) {
			_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseUnsupportedData, "unknown language"))
			conn.Close()
		}
	}))
	t.Cleanup(server.Close)

	return func(lang string) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/" + lang
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
}

// subscribe attaches a websocket subscriber directly to ch's manager.
func subscribe(t *testing.T, ch *LanguageChannel) *ws.Conn {
	t.Helper()
	dial := subscriberServer(t, func(ctx context.Context, _ string, transport broadcast.Transport) error {
		return ch.Manager().Accept(ctx, transport)
	})
	conn := dial(ch.Code())
	require.Eventually(t, func() bool { return ch.Manager().ConnectionCount() == 1 }, time.Second, time.Millisecond)
	return conn
}

// readMessage reads one broadcast and decodes it back into a domain.Message.
func readMessage(t *testing.T, conn *ws.Conn) domain.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var wire domain.WireMessage
	require.NoError(t, json.Unmarshal(raw, &wire))
	audio, err := base64.StdEncoding.DecodeString(wire.AudioContent)
	require.NoError(t, err)
	if len(audio) == 0 {
		audio = nil
	}
	return domain.Message{
		Language:       wire.Lang,
		OriginalText:   wire.OriginalText,
		TranslatedText: wire.TranslatedText,
		Audio:          audio,
	}
}
