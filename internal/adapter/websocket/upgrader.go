package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	closeWriteWait   = time.Second
	// control commands are short text frames
	controlReadLimit = 4096
)

// NewUpgrader builds the upgrader shared by subscriber and control sockets.
func NewUpgrader(checkOrigin func(r *http.Request) bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      checkOrigin,
	}
}

// CloseWith sends a close frame with code and reason, then closes conn.
func CloseWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	_ = conn.Close()
}

// LimitControlReads caps the frame size accepted on a control socket.
func LimitControlReads(conn *websocket.Conn) {
	conn.SetReadLimit(controlReadLimit)
}
