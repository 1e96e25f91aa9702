package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastbot_webhook_events_total",
			Help: "Inbound webhook events by gate outcome",
		},
		[]string{"outcome"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastbot_pipeline_runs_total",
			Help: "Forecast pipeline runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastbot_pipeline_duration_seconds",
			Help:    "End-to-end forecast pipeline latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastbot_upstream_calls_total",
			Help: "Outbound provider calls by service and result",
		},
		[]string{"service", "result"},
	)

	DedupWindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecastbot_dedup_window_entries",
			Help: "Message identifiers currently held by the in-memory dedup window",
		},
	)
)
