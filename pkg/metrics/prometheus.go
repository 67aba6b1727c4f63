// Package metrics provides Prometheus metrics for the scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus metric the service emits.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring pipeline
	scoresSubmitted  prometheus.Counter
	scoresDuplicate  prometheus.Counter
	actionsOpened    prometheus.Counter
	actionsClosed    prometheus.Counter
	varietySubmitted prometheus.Counter

	// Flow sequencing
	groupAdvances   prometheus.Counter
	eventsCompleted prometheus.Counter

	// Broadcast fan-out
	broadcastsSent    *prometheus.CounterVec
	broadcastsDropped *prometheus.CounterVec
	subscribers       *prometheus.GaugeVec

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "jjgame",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scoresSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_submitted_total",
		Help:      "Total number of judge scores recorded",
	})
	m.scoresDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_duplicate_total",
		Help:      "Total number of duplicate judge submissions rejected",
	})
	m.actionsOpened = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "actions_opened_total",
		Help:      "Total number of actions opened for scoring",
	})
	m.actionsClosed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "actions_closed_total",
		Help:      "Total number of actions closed on quorum",
	})
	m.varietySubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "variety_scores_total",
		Help:      "Total number of variety score submissions",
	})
	m.groupAdvances = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "group_advances_total",
		Help:      "Total number of group/round advances",
	})
	m.eventsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_completed_total",
		Help:      "Total number of events reaching the terminal state",
	})

	m.broadcastsSent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "broadcasts_sent_total",
			Help:      "Total number of notices delivered to subscribers",
		},
		[]string{"name"},
	)
	m.broadcastsDropped = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "broadcasts_dropped_total",
			Help:      "Total number of notices dropped for slow subscribers",
		},
		[]string{"name"},
	)
	m.subscribers = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "subscribers",
			Help:      "Current number of stream subscribers per event",
		},
		[]string{"event_id"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// GetRegistry returns the registry metrics are collected on, for
// serving via promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers operating on the global manager.

// RecordScoreSubmitted counts one recorded judge score.
func RecordScoreSubmitted() { globalManager.scoresSubmitted.Inc() }

// RecordScoreDuplicate counts one rejected duplicate submission.
func RecordScoreDuplicate() { globalManager.scoresDuplicate.Inc() }

// RecordActionOpened counts one action opened for scoring.
func RecordActionOpened() { globalManager.actionsOpened.Inc() }

// RecordActionClosed counts one quorum closure.
func RecordActionClosed() { globalManager.actionsClosed.Inc() }

// RecordVarietySubmitted counts one variety score submission.
func RecordVarietySubmitted() { globalManager.varietySubmitted.Inc() }

// RecordGroupAdvanced counts one group or round advance.
func RecordGroupAdvanced() { globalManager.groupAdvances.Inc() }

// RecordEventCompleted counts one event reaching the terminal state.
func RecordEventCompleted() { globalManager.eventsCompleted.Inc() }

// RecordBroadcastSent counts one delivered notice.
func RecordBroadcastSent(name string) {
	globalManager.broadcastsSent.WithLabelValues(name).Inc()
}

// RecordBroadcastDropped counts one dropped notice.
func RecordBroadcastDropped(name string) {
	globalManager.broadcastsDropped.WithLabelValues(name).Inc()
}

// UpdateSubscribers sets the subscriber gauge for an event.
func UpdateSubscribers(eventID string, n int) {
	globalManager.subscribers.WithLabelValues(eventID).Set(float64(n))
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes one HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}
