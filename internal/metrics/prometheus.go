package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingest metrics
	IngestTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_ingest_ticks_total",
			Help: "Total number of trade observations ingested",
		},
		[]string{"source"}, // source: stream|backfill
	)

	IngestDiscards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_ingest_discards_total",
			Help: "Total number of records discarded during enrichment",
		},
		[]string{"reason"}, // reason: malformed_symbol|bad_price|expired|min_premium|market_closed
	)

	BackfillRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_backfill_runs_total",
			Help: "Total number of backfill runs",
		},
		[]string{"status"}, // status: success|error|skipped
	)

	// Vendor API metrics
	VendorAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_vendor_api_calls_total",
			Help: "Total number of vendor API calls",
		},
		[]string{"endpoint", "status"}, // status: success|unauthorized|rate_limited|timeout|error
	)

	VendorAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweepalgo_vendor_api_latency_seconds",
			Help:    "Vendor API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// Store metrics
	StoreSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweepalgo_store_size",
			Help: "Current number of flow records in the trade store",
		},
	)

	StoreEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_store_evictions_total",
			Help: "Total number of flow records evicted from the store",
		},
		[]string{"reason"}, // reason: capacity|age
	)

	// Broadcast metrics
	BroadcastSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweepalgo_broadcast_subscribers",
			Help: "Current number of connected live subscribers",
		},
	)

	BroadcastFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_broadcast_frames_total",
			Help: "Total number of frames pushed to subscribers",
		},
		[]string{"status"}, // status: sent|dropped
	)

	// Stream session metrics
	StreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_stream_reconnects_total",
			Help: "Total number of vendor stream reconnect attempts",
		},
		[]string{"status"}, // status: success|failed
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweepalgo_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sweepalgo_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweepalgo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweepalgo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
		[]string{"route"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(IngestTicks)
	prometheus.MustRegister(IngestDiscards)
	prometheus.MustRegister(BackfillRuns)

	prometheus.MustRegister(VendorAPICalls)
	prometheus.MustRegister(VendorAPILatency)

	prometheus.MustRegister(StoreSize)
	prometheus.MustRegister(StoreEvictions)

	prometheus.MustRegister(BroadcastSubscribers)
	prometheus.MustRegister(BroadcastFrames)

	prometheus.MustRegister(StreamReconnects)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordVendorAPICall records a vendor API call with its outcome
func RecordVendorAPICall(endpoint, status string, latency time.Duration) {
	VendorAPICalls.WithLabelValues(endpoint, status).Inc()
	VendorAPILatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordIngestDiscard increments the discard counter for a reason
func RecordIngestDiscard(reason string) {
	IngestDiscards.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(route, method, status string, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, method, status).Inc()
	HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}
