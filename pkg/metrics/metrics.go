package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rangedb_queue_depth",
			Help: "Number of pending items waiting to be flushed, by op kind",
		},
		[]string{"op"},
	)

	ItemsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangedb_items_enqueued_total",
			Help: "Total items enqueued by op kind",
		},
		[]string{"op"},
	)

	// Flush metrics
	FlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rangedb_flush_duration_seconds",
			Help:    "Time to shuffle, send, and collect responses for one flush, by op kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	FlushItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangedb_flush_items_total",
			Help: "Total items carried across all flushes, by op kind and outcome",
		},
		[]string{"op", "status"},
	)

	// Shuffle metrics
	HashMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rangedb_hash_miss_total",
			Help: "Total items dropped during shuffle because the hash function returned an invalid datastore id",
		},
	)

	// Transport metrics
	TransportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangedb_transport_errors_total",
			Help: "Total send/receive failures, by destination rank",
		},
		[]string{"dst_rank"},
	)

	TransportRoundTrip = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rangedb_transport_round_trip_seconds",
			Help:    "Round-trip time for one bulk request/response exchange, by op kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Datastore metrics
	DatastoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rangedb_datastore_ops_total",
			Help: "Total datastore operations, by datastore id and op kind",
		},
		[]string{"datastore_id", "op"},
	)

	DatastoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rangedb_datastore_op_duration_seconds",
			Help:    "Time spent inside one datastore bulk call, by datastore id and op kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"datastore_id", "op"},
	)

	// Histogram (estimator) metrics
	HistogramTotalCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rangedb_histogram_total_count",
			Help: "TotalCount() of a configured histogram, by datastore id and name",
		},
		[]string{"datastore_id", "name"},
	)

	HistogramCommitted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rangedb_histogram_committed",
			Help: "Whether a configured histogram has committed its bucket set (1) or is still filling (0)",
		},
		[]string{"datastore_id", "name"},
	)

	// Stats snapshot gauges, sampled periodically by a
	// Collector rather than updated inline.
	StatsNumPuts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rangedb_stats_num_puts",
			Help: "Lifetime NumPuts of a local datastore, by offset",
		},
		[]string{"datastore_offset"},
	)

	StatsNumGets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rangedb_stats_num_gets",
			Help: "Lifetime NumGets of a local datastore, by offset",
		},
		[]string{"datastore_offset"},
	)
)

func init() {
	prometheus.MustRegister(
		QueueDepth,
		ItemsEnqueuedTotal,
		FlushDuration,
		FlushItemsTotal,
		HashMissTotal,
		TransportErrorsTotal,
		TransportRoundTrip,
		DatastoreOpsTotal,
		DatastoreOpDuration,
		HistogramTotalCount,
		HistogramCommitted,
		StatsNumPuts,
		StatsNumGets,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
