package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flocktwin_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flocktwin_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "route"},
	)

	// Alert engine metrics
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	AlertsUnread = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flocktwin_alerts_unread",
			Help: "Current number of unread alerts",
		},
	)

	AlertLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flocktwin_alert_log_size",
			Help: "Current number of alerts retained in memory",
		},
	)

	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_evaluations_total",
			Help: "Total number of metric evaluations",
		},
		[]string{"metric", "result"}, // result: alert, ok, rejected
	)

	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flocktwin_alert_subscribers",
			Help: "Current number of alert log subscribers",
		},
	)

	NoticeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_notice_failures_total",
			Help: "Total number of notices a sink failed to deliver",
		},
		[]string{"sink"},
	)

	// Monitoring driver metrics
	MonitorTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flocktwin_monitor_ticks_total",
			Help: "Total number of monitoring ticks",
		},
	)

	MonitorSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_monitor_samples_total",
			Help: "Total number of samples produced by the monitoring driver",
		},
		[]string{"metric"},
	)

	// Projection metrics
	ProjectionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_projection_requests_total",
			Help: "Total number of projection requests",
		},
		[]string{"kind", "status"}, // status: ok, invalid
	)

	ProjectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flocktwin_projection_duration_seconds",
			Help:    "Time taken to compute a projection",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// Stream metrics
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flocktwin_stream_clients",
			Help: "Current number of websocket clients",
		},
	)

	StreamDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flocktwin_stream_dropped_total",
			Help: "Total number of websocket clients dropped for a full send buffer",
		},
	)

	// Kafka notice publisher metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_kafka_publish_total",
			Help: "Total number of notices published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flocktwin_kafka_publish_duration_seconds",
			Help:    "Time taken to publish to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flocktwin_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	KafkaBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flocktwin_kafka_bytes_written_total",
			Help: "Total bytes written to Kafka",
		},
	)

	// Notice worker pool metrics
	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flocktwin_worker_processed_total",
			Help: "Total number of notices published by workers",
		},
	)

	WorkerFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flocktwin_worker_failed_total",
			Help: "Total number of notices workers failed to publish",
		},
	)

	WorkerBatchPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flocktwin_worker_batch_publish_duration_seconds",
			Help:    "Time taken to publish a batch of notices",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	WorkerQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flocktwin_worker_queue_dropped_total",
			Help: "Total number of notices dropped because the worker queue was full",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flocktwin_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
