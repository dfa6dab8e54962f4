package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_http_requests_total",
			Help: "HTTP requests by route and status class.",
		},
		[]string{"route", "method", "status"},
	)

	dragSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_drag_sessions_total",
			Help: "Drag sessions by terminal outcome.",
		},
		[]string{"outcome"},
	)

	assistantCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_assistant_commands_total",
			Help: "Interpreted assistant commands by kind and result.",
		},
		[]string{"kind", "result"},
	)

	assistantLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowcal_assistant_turn_seconds",
			Help:    "End-to-end latency of one assistant turn.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	activityRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowcal_activity_records_total",
			Help: "Activity records by stage (published, persisted, discarded).",
		},
		[]string{"stage"},
	)
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func TrackHTTPRequest(route, method, status string) {
	httpRequests.WithLabelValues(route, method, status).Inc()
}

func TrackDragSession(outcome string) {
	dragSessions.WithLabelValues(outcome).Inc()
}

func TrackAssistantCommand(kind, result string) {
	assistantCommands.WithLabelValues(kind, result).Inc()
}

func ObserveAssistantTurn(seconds float64) {
	assistantLatency.Observe(seconds)
}

func TrackActivityRecord(stage string) {
	activityRecords.WithLabelValues(stage).Inc()
}
