package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron run results recorded by CronJobMetrics.
const (
	CronResultSuccess = "success"
	CronResultFailure = "failure"
	CronResultSkipped = "skipped"
)

// CronJobMetrics records runs of the scheduled sweeps. The zero value and a
// nil pointer drop every observation.
type CronJobMetrics struct {
	duration  *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	processed *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cron",
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Wall time of one cron job run.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cron",
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Cron job runs by result.",
		}, []string{"job", "result"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cron",
			Subsystem: "job",
			Name:      "processed_total",
			Help:      "Records a cron job acted on (expired orders, income days, purged outbox rows).",
		}, []string{"job"}),
	}
	reg.MustRegister(m.duration, m.runs, m.processed)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(jobLabel(job)).Observe(d.Seconds())
}

// IncRun counts one run. An empty result is recorded as a failure.
func (c *CronJobMetrics) IncRun(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	if result == "" {
		result = CronResultFailure
	}
	c.runs.WithLabelValues(jobLabel(job), result).Inc()
}

func (c *CronJobMetrics) AddProcessed(job string, n int) {
	if c == nil || c.processed == nil || n <= 0 {
		return
	}
	c.processed.WithLabelValues(jobLabel(job)).Add(float64(n))
}

func jobLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
