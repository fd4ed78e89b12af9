package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// alert engine.
type Metrics struct {
	BulletinsParsed *prometheus.CounterVec // labels: product, outcome={success,error}
	GridFetches     *prometheus.CounterVec // labels: outcome={success,error,cached}
	GridLookups     *prometheus.CounterVec // labels: outcome={hit,gap,invalid}

	NotificationsSent    *prometheus.CounterVec // labels: channel={topic,token}, outcome={success,error,dry_run}
	CitiesAlerted        prometheus.Counter
	ThrottleTransitions  *prometheus.CounterVec // labels: direction={throttled,unthrottled}
	SubscriptionsExpired prometheus.Counter

	JobRuns          *prometheus.CounterVec // labels: job, outcome={success,error}
	JobDuration      *prometheus.HistogramVec
	SchedulerRunning prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.BulletinsParsed,
		m.GridFetches,
		m.GridLookups,
		m.NotificationsSent,
		m.CitiesAlerted,
		m.ThrottleTransitions,
		m.SubscriptionsExpired,
		m.JobRuns,
		m.JobDuration,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		BulletinsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "bulletins_parsed_total",
			Help:      "SWPC bulletins parsed by product and outcome.",
		}, []string{"product", "outcome"}),
		GridFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "grid_fetches_total",
			Help:      "OVATION grid fetches by outcome.",
		}, []string{"outcome"}),
		GridLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "grid_lookups_total",
			Help:      "Per-city grid lookups by outcome.",
		}, []string{"outcome"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "notifications_sent_total",
			Help:      "Push messages by channel and outcome.",
		}, []string{"channel", "outcome"}),
		CitiesAlerted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "cities_alerted_total",
			Help:      "Cities that crossed a broadcast tier boundary.",
		}),
		ThrottleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "throttle_transitions_total",
			Help:      "Free-tier throttle state transitions by direction.",
		}, []string{"direction"}),
		SubscriptionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions flipped inactive by the expiry job.",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aurora_engine",
			Name:      "job_runs_total",
			Help:      "Job executions by job name and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aurora_engine",
			Name:      "job_duration_seconds",
			Help:      "Duration of a complete job run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"job"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aurora_engine",
			Name:      "scheduler_running",
			Help:      "1 when the job scheduler is active, 0 when shut down.",
		}),
	}
}
