package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Presence Engine Metrics
var (
	// PresenceEventsTotal tracks processed presence events by kind and status
	PresenceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_events_total",
			Help: "Total presence events processed by kind and status",
		},
		[]string{"kind", "status"},
	)

	// PresenceEventsDropped tracks events dropped because the engine queue was full
	PresenceEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_events_dropped_total",
			Help: "Total presence events dropped due to a full engine queue",
		},
	)

	// TrackedChannels tracks the number of channels with an active subscription
	TrackedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_tracked_channels",
			Help: "Number of voice channels with an active presence subscription",
		},
	)

	// RosterSize tracks current roster size per channel
	RosterSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_roster_size",
			Help: "Current roster size per voice channel",
		},
		[]string{"channel"},
	)

	// EngineCommandChannelDepth tracks queued engine commands
	EngineCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_engine_command_channel_depth",
			Help: "Number of commands queued in the engine command channel",
		},
	)
)

// Reconciler Metrics
var (
	// ReconcileRunsTotal tracks reconciliation ticks
	ReconcileRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_reconcile_runs_total",
			Help: "Total reconciliation ticks",
		},
	)

	// ReconcileDriftTotal tracks reconciliations that replaced a drifted roster
	ReconcileDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_reconcile_drift_total",
			Help: "Reconciliations that found and corrected roster drift, per channel",
		},
		[]string{"channel"},
	)

	// ReconcileFailuresTotal tracks per-channel snapshot fetch failures
	ReconcileFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_reconcile_failures_total",
			Help: "Snapshot fetch failures during reconciliation, per channel",
		},
		[]string{"channel"},
	)

	// SnapshotFetchDuration tracks snapshot fetch latency in seconds
	SnapshotFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presence_snapshot_fetch_duration_seconds",
			Help:    "Presence snapshot fetch duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// Roster Publishing Metrics
var (
	// RosterPublishesTotal tracks roster updates pushed to renderers
	RosterPublishesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_roster_publishes_total",
			Help: "Total roster updates published to the realtime node",
		},
	)

	// RosterPublishFailures tracks failed roster publishes
	RosterPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_roster_publish_failures_total",
			Help: "Total failed roster update publishes",
		},
	)

	// WebSocketActiveConnections tracks currently connected realtime clients
	WebSocketActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_active_connections",
			Help: "Currently connected realtime clients",
		},
	)
)

// Redis Operations Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
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
