package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Channel Metrics
var (
	// ChannelsActive tracks number of registered language channels
	ChannelsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "channels_active",
			Help: "Number of registered language channels",
		},
	)

	// ChannelQueueDepth tracks pending messages per language channel
	ChannelQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_queue_depth",
			Help: "Pending messages in a language channel queue",
		},
		[]string{"lang"},
	)

	// ChannelMessagesDelivered tracks messages dequeued and fanned out to subscribers
	ChannelMessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_messages_delivered_total",
			Help: "Total messages dequeued and fanned out by language",
		},
		[]string{"lang"},
	)

	// ChannelMessagesDiscarded tracks queued messages dropped when a delivery loop stops
	ChannelMessagesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_messages_discarded_total",
			Help: "Total queued messages discarded on delivery loop stop",
		},
		[]string{"lang"},
	)

	// ChannelEnqueueWaitDuration tracks how long producers blocked on a full queue
	ChannelEnqueueWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "channel_enqueue_wait_seconds",
			Help:    "Time spent waiting for queue capacity",
			Buckets: []float64{.0001, .001, .01, .1, .5, 1, 5},
		},
	)
)

// Fan-out Metrics
var (
	// FanoutDuration tracks join-all duration of one transcript across all channels
	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_duration_seconds",
			Help:    "Time to run every channel pipeline for one transcript",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// FanoutPanicsTotal tracks recovered panics inside channel pipelines
	FanoutPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanout_panics_total",
			Help: "Total panics recovered inside channel pipelines",
		},
	)

	// TranscriptsReceivedTotal tracks finalized transcripts handed to the orchestrator
	TranscriptsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcripts_received_total",
			Help: "Total finalized transcripts received from the transcription source",
		},
	)
)

// External Call Metrics
var (
	// ExternalCallsTotal tracks translator/synthesizer calls by provider kind and result
	ExternalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_calls_total",
			Help: "Total external collaborator calls by kind and result",
		},
		[]string{"kind", "result"},
	)

	// ExternalCallDuration tracks collaborator latency in seconds
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_duration_seconds",
			Help:    "External collaborator call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// WebSocket Metrics
var (
	// WebSocketConnectionsCurrent tracks current number of subscriber connections
	WebSocketConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_current",
			Help: "Current number of subscriber WebSocket connections",
		},
	)

	// WebSocketConnectionsTotal tracks connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result",
		},
		[]string{"result"},
	)

	// WebSocketMessageSendDuration tracks time to write one frame
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "Time to write a WebSocket frame",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// WebSocketConnectionDuration tracks how long subscribers stay connected
	WebSocketConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_connection_duration_seconds",
			Help:    "WebSocket connection lifetime in seconds",
			Buckets: []float64{1, 10, 60, 300, 1800, 3600, 7200},
		},
	)

	// WebSocketSendFailures tracks frames that failed and closed their connection
	WebSocketSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_send_failures_total",
			Help: "Total failed WebSocket writes that closed the connection",
		},
	)

	// WebSocketSlowClientsEvicted tracks connections closed because their buffer was full
	WebSocketSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_clients_evicted_total",
			Help: "Total subscriber connections closed because their send buffer was full",
		},
	)

	// WebSocketPingFailures tracks failed ping writes
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total failed WebSocket ping writes",
		},
	)

	// WebSocketConnectionsRejected tracks rejected connections by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total rejected WebSocket connections by reason",
		},
		[]string{"reason"},
	)

	// WebSocketConnectionCapacity tracks global limiter utilization
	WebSocketConnectionCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connection_capacity_percent",
			Help: "Current subscriber connection capacity utilization",
		},
	)
)

// BuildInfo exposes version metadata as labels
var BuildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build information",
	},
	[]string{"version", "commit", "go_version"},
)
