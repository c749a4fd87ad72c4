// Package metrics provides Prometheus instrumentation for the contact
// service: gauges for live gateway connections, counters for message and
// event throughput, and a histogram for request latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of gateway WebSocket
	// connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "contact_ws_connections",
		Help: "Current number of active WebSocket connections",
	})

	// MessagesSent counts persisted chat messages, labeled by kind
	// ("TEXT" or "SYSTEM").
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_messages_sent_total",
		Help: "Total number of messages persisted",
	}, []string{"kind"})

	// ConversationRequests counts contact requests by outcome
	// ("created", "reused", "duplicate", "blocked").
	ConversationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_conversation_requests_total",
		Help: "Total number of conversation requests by outcome",
	}, []string{"outcome"})

	// EventsPublished counts broadcaster events by type.
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_events_published_total",
		Help: "Total number of real-time events published",
	}, []string{"type"})

	// RequestDuration records REST handler latency in seconds by route.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contact_request_duration_seconds",
		Help:    "REST request latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"route"})

	// ReportsFiled counts moderation reports by reason.
	ReportsFiled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_reports_filed_total",
		Help: "Total number of moderation reports filed",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesSent,
		ConversationRequests,
		EventsPublished,
		RequestDuration,
		ReportsFiled,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
