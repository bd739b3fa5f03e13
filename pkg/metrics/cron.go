package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records runs of the scheduled maintenance jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	skipped  prometheus.Counter
	affected *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron metrics on reg. A nil registerer yields
// a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cartsync_cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_cron_job_runs_total",
		Help: "Cron job executions by result.",
	}, []string{"job", "result"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cartsync_cron_cycles_skipped_total",
		Help: "Cron cycles skipped because another worker held the lock.",
	})
	affected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_cron_rows_affected_total",
		Help: "Rows changed by cron jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, skipped, affected)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
		skipped:  skipped,
		affected: affected,
	}
}

// ObserveRun records the duration and result of one job execution.
func (c *CronJobMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func (c *CronJobMetrics) IncSkippedCycle() {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.Inc()
}

// AddAffected counts rows a job changed.
func (c *CronJobMetrics) AddAffected(job string, rows int64) {
	if c == nil || c.affected == nil || rows <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(job)).Add(float64(rows))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
