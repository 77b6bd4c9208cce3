// Package metrics provides Prometheus metrics for copy operations.
//
// Every copy records its rows, bytes, duration and outcome, labelled by
// format and direction:
//
//	c := metrics.NewCollector("jsonlines", "from")
//	defer c.Finish(err)
//	c.AddRows(1)
//	c.AddBytes(n)
//
// Metrics are registered with the default Prometheus registry and served by
// Handler.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RowsProcessed counts rows decoded from or encoded to a copy stream.
	// Labels: format, direction (from/to)
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_copy_rows_total",
			Help: "Total number of rows copied",
		},
		[]string{"format", "direction"},
	)

	// BytesProcessed counts raw bytes read from sources or handed to sinks,
	// after compression.
	BytesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_copy_bytes_total",
			Help: "Total number of raw bytes read or written",
		},
		[]string{"format", "direction"},
	)

	// CopyDuration tracks the wall time of whole copy operations.
	// Labels: format, direction, status (success/failure)
	CopyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_copy_duration_seconds",
			Help:    "Copy operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms .. ~44min
		},
		[]string{"format", "direction", "status"},
	)

	// CopyErrors counts failed copies by error type.
	CopyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_copy_errors_total",
			Help: "Total number of failed copy operations",
		},
		[]string{"format", "direction", "type"},
	)

	// TruncatedBytes counts bytes of unterminated final lines that were
	// discarded at end of input.
	TruncatedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_copy_truncated_bytes_total",
			Help: "Bytes of unterminated final records discarded at end of input",
		},
		[]string{"format"},
	)

	// ActiveCopies tracks copies in progress.
	ActiveCopies = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebula_copy_active",
			Help: "Number of copy operations in progress",
		},
		[]string{"format", "direction"},
	)

	// Throughput tracks rows per second of the most recent copy window.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nebula_copy_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"format", "direction"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Collector records the metrics of one copy operation. It is safe for
// concurrent use.
type Collector struct {
	format    string
	direction string
	startTime time.Time

	rows  prometheus.Counter
	bytes prometheus.Counter

	mu       sync.Mutex
	finished bool
}

// NewCollector starts collecting for a copy and marks it active.
func NewCollector(format, direction string) *Collector {
	ActiveCopies.WithLabelValues(format, direction).Inc()
	return &Collector{
		format:    format,
		direction: direction,
		startTime: time.Now(),
		rows:      RowsProcessed.WithLabelValues(format, direction),
		bytes:     BytesProcessed.WithLabelValues(format, direction),
	}
}

// AddRows adds n copied rows.
func (c *Collector) AddRows(n int64) {
	if n > 0 {
		c.rows.Add(float64(n))
	}
}

// AddBytes adds n raw bytes.
func (c *Collector) AddBytes(n int64) {
	if n > 0 {
		c.bytes.Add(float64(n))
	}
}

// AddTruncated records a discarded unterminated final line.
func (c *Collector) AddTruncated(n int64) {
	if n > 0 {
		TruncatedBytes.WithLabelValues(c.format).Add(float64(n))
	}
}

// StartTime returns when the copy started.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Finish records the duration and outcome. errType labels the failure and
// is ignored when failed is false. Only the first call has an effect.
func (c *Collector) Finish(failed bool, errType string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startTime)
	if c.finished {
		return elapsed
	}
	c.finished = true

	status := "success"
	if failed {
		status = "failure"
		if errType == "" {
			errType = "unknown"
		}
		CopyErrors.WithLabelValues(c.format, c.direction, errType).Inc()
	}
	CopyDuration.WithLabelValues(c.format, c.direction, status).Observe(elapsed.Seconds())
	ActiveCopies.WithLabelValues(c.format, c.direction).Dec()
	return elapsed
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks rows per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	format    string
	direction string
}

// NewThroughputTracker creates a tracker for one format and direction.
func NewThroughputTracker(format, direction string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		format:    format,
		direction: direction,
	}
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the throughput since the last reset, publishes it
// and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.format, t.direction).Set(throughput)

	return throughput
}
