package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records cart synchronization activity.
type SyncMetrics struct {
	duration   *prometheus.HistogramVec
	attempts   *prometheus.CounterVec
	conflicts  prometheus.Counter
	queueDepth prometheus.Gauge
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of cart sync attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_attempts_total",
		Help: "Cart sync attempts by terminal status.",
	}, []string{"status"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_conflicts_total",
		Help: "Item conflicts detected during merges.",
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_offline_queue_depth",
		Help: "Actions waiting in the offline queue.",
	})
	reg.MustRegister(duration, attempts, conflicts, queueDepth)
	return &SyncMetrics{
		duration:   duration,
		attempts:   attempts,
		conflicts:  conflicts,
		queueDepth: queueDepth,
	}
}

// ObserveAttempt records one concluded sync attempt.
func (s *SyncMetrics) ObserveAttempt(status string, duration time.Duration) {
	if s == nil || s.attempts == nil {
		return
	}
	label := normalizeLabel(status)
	s.attempts.WithLabelValues(label).Inc()
	s.duration.WithLabelValues(label).Observe(duration.Seconds())
}

// AddConflicts counts conflicts found in one merge.
func (s *SyncMetrics) AddConflicts(n int) {
	if s == nil || s.conflicts == nil || n <= 0 {
		return
	}
	s.conflicts.Add(float64(n))
}

// SetQueueDepth records the current offline queue length.
func (s *SyncMetrics) SetQueueDepth(depth int) {
	if s == nil || s.queueDepth == nil {
		return
	}
	s.queueDepth.Set(float64(depth))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
