package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livetranslate/internal/domain"
	"github.com/pscheid92/livetranslate/internal/metrics"
)

// QueueCapacity is the fixed size of every channel's message queue.
const QueueCapacity = 512

// Manager owns the subscriber set of one language channel, its bounded
// message queue and the delivery loop that drains it.
type Manager struct {
	language         string
	clock            clockwork.Clock
	deliveryInterval time.Duration

	mu       sync.Mutex
	active   map[uuid.UUID]*Connection
	shutdown bool

	queue chan domain.Message

	loopMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	closed    chan struct{}
	closeOnce sync.Once

	// depthMu orders queue depth updates against the gauge removal in Close.
	depthMu      sync.Mutex
	depthRetired bool

	delivered atomic.Int64
}

// NewManager creates a manager for one language. The delivery loop is not started.
// deliveryInterval throttles deliveries: after each message the loop waits that long
// before taking the next one. Zero delivers as soon as a message is enqueued.
func NewManager(language string, clock clockwork.Clock, deliveryInterval time.Duration) *Manager {
	done := make(chan struct{})
	close(done)
	return &Manager{
		language:         language,
		clock:            clock,
		deliveryInterval: deliveryInterval,
		active:           make(map[uuid.UUID]*Connection),
		queue:            make(chan domain.Message, QueueCapacity),
		doneCh:           done,
		closed:           make(chan struct{}),
	}
}

// Accept registers the transport and blocks, reading frames purely for liveness,
// until the peer disconnects or ctx ends. The connection is closed on return.
func (m *Manager) Accept(ctx context.Context, transport Transport) error {
	conn := newConnection(transport, m.clock, m.unregister)
	if !m.register(conn) {
		conn.CloseWithReason(websocket.CloseGoingAway, "channel stopped")
		return domain.ErrManagerClosed
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, conn.Close)
	defer stop()

	for {
		if _, ok := conn.Receive(); !ok {
			return nil
		}
	}
}

// Enqueue appends msg to the queue, blocking while the queue is full.
// It gives up when ctx ends or the manager is closed.
func (m *Manager) Enqueue(ctx context.Context, msg domain.Message) error {
	select {
	case <-m.closed:
		return domain.ErrManagerClosed
	default:
	}

	select {
	case m.queue <- msg:
		m.setDepth(len(m.queue))
		return nil
	default:
	}

	slog.Warn("Channel queue full, producer waiting", "lang", m.language, "capacity", QueueCapacity)
	start := m.clock.Now()
	defer func() { metrics.ChannelEnqueueWaitDuration.Observe(m.clock.Since(start).Seconds()) }()

	select {
	case m.queue <- msg:
		m.setDepth(len(m.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.closed:
		return domain.ErrManagerClosed
	}
}

// Start launches the delivery loop. It reports false if a loop is already
// running or the manager is closed.
func (m *Manager) Start() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.running {
		return false
	}
	select {
	case <-m.closed:
		return false
	default:
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.running = true
	go m.run(m.stopCh, m.doneCh)
	return true
}

// Stop signals the delivery loop to exit. It does not wait; see Wait.
// Messages still queued when the loop exits are discarded.
func (m *Manager) Stop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

// Wait blocks until the most recently started delivery loop has exited.
func (m *Manager) Wait(ctx context.Context) error {
	m.loopMu.Lock()
	done := m.doneCh
	m.loopMu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a delivery loop is active.
func (m *Manager) Running() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	return m.running
}

// Close stops the loop, closes every connection and rejects further work.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
	m.Stop()

	m.mu.Lock()
	m.shutdown = true
	conns := make([]*Connection, 0, len(m.active))
	for _, c := range m.active {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.CloseWithReason(websocket.CloseGoingAway, "channel stopped")
	}
	m.retireDepth()

	slog.Info("Broadcast manager closed", "lang", m.language, "disconnected_clients", len(conns))
}

// ConnectionCount returns the number of registered connections.
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// QueueDepth returns the number of pending messages.
func (m *Manager) QueueDepth() int {
	return len(m.queue)
}

// Delivered returns how many messages the delivery loop has dequeued and fanned out.
func (m *Manager) Delivered() int64 {
	return m.delivered.Load()
}

func (m *Manager) register(conn *Connection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return false
	}
	m.active[conn.ID()] = conn
	metrics.WebSocketConnectionsCurrent.Inc()

	slog.Info("WebSocket connection accepted", "lang", m.language, "remote_addr", conn.RemoteAddr(), "total_clients", len(m.active))
	return true
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[conn.ID()]; !ok {
		return
	}
	delete(m.active, conn.ID())
	metrics.WebSocketConnectionsCurrent.Dec()

	slog.Info("Client disconnected", "lang", m.language, "remote_addr", conn.RemoteAddr(), "remaining_clients", len(m.active))
}

// snapshot returns the open connections, dropping any that closed without
// reaching unregister.
func (m *Manager) snapshot() []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns := make([]*Connection, 0, len(m.active))
	for id, c := range m.active {
		if !c.IsOpen() {
			delete(m.active, id)
			metrics.WebSocketConnectionsCurrent.Dec()
			continue
		}
		conns = append(conns, c)
	}
	return conns
}

func (m *Manager) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer m.discardPending()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Delivery loop panic recovered", "lang", m.language, "panic", r)
		}
	}()

	slog.Info("Broadcasting started", "lang", m.language)

	for {
		select {
		case <-stop:
			slog.Info("Broadcasting stopped", "lang", m.language)
			return
		case msg := <-m.queue:
			// Both cases may be ready at once; stop wins.
			select {
			case <-stop:
				slog.Info("Broadcasting stopped", "lang", m.language)
				return
			default:
			}
			m.deliver(msg)
		}

		if m.deliveryInterval > 0 {
			select {
			case <-stop:
				slog.Info("Broadcasting stopped", "lang", m.language)
				return
			case <-m.clock.After(m.deliveryInterval):
			}
		}
	}
}

func (m *Manager) deliver(msg domain.Message) {
	m.setDepth(len(m.queue))

	data, err := json.Marshal(msg.Wire())
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "lang", m.language, "error", err)
		return
	}

	conns := m.snapshot()
	for _, c := range conns {
		c.Send(data)
	}

	m.delivered.Add(1)
	metrics.ChannelMessagesDelivered.WithLabelValues(m.language).Inc()
	slog.Debug("Broadcasting data to clients", "lang", m.language, "clients", len(conns))
}

func (m *Manager) setDepth(n int) {
	m.depthMu.Lock()
	defer m.depthMu.Unlock()
	if !m.depthRetired {
		metrics.ChannelQueueDepth.WithLabelValues(m.language).Set(float64(n))
	}
}

// retireDepth removes the language's queue depth series for good.
func (m *Manager) retireDepth() {
	m.depthMu.Lock()
	defer m.depthMu.Unlock()
	m.depthRetired = true
	metrics.ChannelQueueDepth.DeleteLabelValues(m.language)
}

func (m *Manager) discardPending() {
	discarded := 0
	for {
		select {
		case <-m.queue:
			discarded++
		default:
			if discarded > 0 {
				metrics.ChannelMessagesDiscarded.WithLabelValues(m.language).Add(float64(discarded))
				slog.Info("Discarded queued messages", "lang", m.language, "count", discarded)
			}
			m.setDepth(0)
			return
		}
	}
}
