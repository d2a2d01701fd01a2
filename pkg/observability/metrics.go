// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the event-streaming runtime.
package observability

import "github.com/prometheus/client_golang/prometheus"

// StreamLatencyBuckets defines histogram buckets suited for turn and
// subscription latencies, ranging from 10ms to 2 minutes.
var StreamLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrt_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamrt_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: StreamLatencyBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamrt_streaming_connections_active",
			Help: "Active SSE streaming connections",
		},
	)

	// TurnsTotal counts turns started by the coordinator, labeled by outcome
	// (completed, failed, canceled).
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrt_turns_total",
			Help: "Turns processed by outcome",
		},
		[]string{"outcome"},
	)

	// TurnDuration records turn processing duration in seconds, from
	// StartTurn to completion or cancellation.
	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamrt_turn_duration_seconds",
			Help:    "Turn processing duration",
			Buckets: StreamLatencyBuckets,
		},
	)

	// EventsEmittedTotal counts events appended to the buffer, labeled by kind.
	EventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrt_events_emitted_total",
			Help: "Events emitted into the buffer",
		},
		[]string{"kind"},
	)

	// BufferedEventsActive tracks the number of events currently retained
	// across all context buffers.
	BufferedEventsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamrt_buffered_events_active",
			Help: "Events currently retained in the replay buffer",
		},
	)

	// SubscriptionsActive tracks the number of live router subscriptions.
	SubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamrt_subscriptions_active",
			Help: "Active router subscriptions",
		},
	)

	// SlowSubscriberDisconnectsTotal counts subscriptions dropped because the
	// subscriber's sink channel could not keep up with the event rate.
	SlowSubscriberDisconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamrt_slow_subscriber_disconnects_total",
			Help: "Subscriptions dropped for falling behind the event rate",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrt_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		TurnsTotal,
		TurnDuration,
		EventsEmittedTotal,
		BufferedEventsActive,
		SubscriptionsActive,
		SlowSubscriberDisconnectsTotal,
		RateLimitRejectedTotal,
	)
}
