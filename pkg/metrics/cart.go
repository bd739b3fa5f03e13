package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics tracks cart mutations and guest merges.
type CartMetrics struct {
	mutations     *prometheus.CounterVec
	merges        *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	mergeDuration *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on reg. A nil registerer yields a
// no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation and result.",
	}, []string{"op", "result"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_total",
		Help: "Guest merges by kind and outcome.",
	}, []string{"kind", "status"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_skipped_items_total",
		Help: "Guest items dropped during merge by reason.",
	}, []string{"reason"})
	mergeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_merge_duration_seconds",
		Help:    "Duration of guest merges in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(mutations, merges, skipped, mergeDuration)
	return &CartMetrics{
		mutations:     mutations,
		merges:        merges,
		skipped:       skipped,
		mergeDuration: mergeDuration,
	}
}

// ObserveMutation counts one mutation; err decides the result label.
func (c *CartMetrics) ObserveMutation(op string, err error) {
	if c == nil || c.mutations == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.mutations.WithLabelValues(normalizeLabel(op), result).Inc()
}

// ObserveMerge records a merge outcome and its duration.
func (c *CartMetrics) ObserveMerge(kind, status string, duration time.Duration) {
	if c == nil || c.merges == nil {
		return
	}
	c.merges.WithLabelValues(normalizeLabel(kind), normalizeLabel(status)).Inc()
	c.mergeDuration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSkipped counts a guest item left out of a merge.
func (c *CartMetrics) IncSkipped(reason string) {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}
