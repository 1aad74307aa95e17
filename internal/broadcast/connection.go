package broadcast

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// Transport is the part of *websocket.Conn a Connection relies on.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

var _ Transport = (*websocket.Conn)(nil)

// Connection wraps one subscriber transport. Writes go through a dedicated
// goroutine so a slow peer never blocks the delivery loop.
type Connection struct {
	id          uuid.UUID
	transport   Transport
	clock       clockwork.Clock
	remoteAddr  string
	connectedAt time.Time

	sendChannel chan []byte
	doneChannel chan struct{}
	closed      atomic.Bool
	wg          sync.WaitGroup

	onClose func(*Connection)
}

func newConnection(transport Transport, clock clockwork.Clock, onClose func(*Connection)) *Connection {
	remote := ""
	if addr := transport.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	c := &Connection{
		id:          uuid.New(),
		transport:   transport,
		clock:       clock,
		remoteAddr:  remote,
		connectedAt: clock.Now(),
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
		onClose:     onClose,
	}
	c.configurePongHandler()
	c.wg.Add(1)
	go c.run()
	return c
}

// ID returns the connection identity used for set membership.
func (c *Connection) ID() uuid.UUID { return c.id }

// RemoteAddr returns the peer address captured at accept time.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// IsOpen reports whether the connection has not been closed yet.
func (c *Connection) IsOpen() bool { return !c.closed.Load() }

// Send hands data to the writer goroutine. Best effort: a full buffer or a
// closed connection drops the data, and a full buffer closes the connection.
func (c *Connection) Send(data []byte) {
	if !c.IsOpen() {
		return
	}
	select {
	case c.sendChannel <- data:
	case <-c.doneChannel:
	default:
		slog.Warn("Disconnecting slow client", "remote_addr", c.remoteAddr, "connection_id", c.id.String())
		metrics.WebSocketSlowClientsEvicted.Inc()
		c.abort()
	}
}

// Receive blocks until a frame arrives. It returns false once the peer is gone.
func (c *Connection) Receive() ([]byte, bool) {
	if !c.IsOpen() {
		return nil, false
	}
	_, data, err := c.transport.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			slog.Debug("Subscriber read failed", "remote_addr", c.remoteAddr, "error", err)
		}
		return nil, false
	}
	c.updateReadDeadline()
	return data, true
}

// Close closes the connection with a normal closure frame. Closing twice is a no-op.
func (c *Connection) Close() {
	c.CloseWithReason(websocket.CloseNormalClosure, "")
}

// CloseWithReason sends a close frame with the given code before closing.
func (c *Connection) CloseWithReason(code int, reason string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	// Stop the writer first so the close frame is the only concurrent write
	close(c.doneChannel)
	c.wg.Wait()

	closeMsg := websocket.FormatCloseMessage(code, reason)
	c.updateWriteDeadline()
	_ = c.transport.WriteMessage(websocket.CloseMessage, closeMsg)
	_ = c.transport.Close()

	c.finish()
}

// abort closes without a close frame. Safe to call from the writer goroutine.
func (c *Connection) abort() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.doneChannel)
	_ = c.transport.Close()
	c.finish()
}

func (c *Connection) finish() {
	metrics.WebSocketConnectionDuration.Observe(c.clock.Since(c.connectedAt).Seconds())
	if c.onClose != nil {
		c.onClose(c)
	}
}

func (c *Connection) run() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChannel:
			start := c.clock.Now()
			c.updateWriteDeadline()
			if err := c.transport.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Info("Error sending message", "remote_addr", c.remoteAddr, "error", err)
				metrics.WebSocketSendFailures.Inc()
				c.abort()
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(c.clock.Since(start).Seconds())
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.transport.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				c.abort()
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

func (c *Connection) configurePongHandler() {
	c.updateReadDeadline()
	c.transport.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Connection) updateWriteDeadline() {
	_ = c.transport.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *Connection) updateReadDeadline() {
	_ = c.transport.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
