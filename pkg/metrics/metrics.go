package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Monitor metrics
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_probes_total",
			Help: "Total number of HTTP probes by outcome and error kind",
		},
		[]string{"outcome", "error_kind"},
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_probe_duration_seconds",
			Help:    "HTTP probe round-trip time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	MonitorTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_monitor_transitions_total",
			Help: "Monitor status transitions by from/to status",
		},
		[]string{"from", "to"},
	)

	// Incident metrics
	IncidentsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_incidents_opened_total",
			Help: "Total number of incidents opened by source kind",
		},
		[]string{"source"},
	)

	IncidentsResolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_incidents_resolved_total",
			Help: "Total number of incidents resolved",
		},
	)

	// Notification metrics
	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_notifications_sent_total",
			Help: "Notification deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// Task metrics
	TaskTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_task_transitions_total",
			Help: "Task status transitions by from/to status",
		},
		[]string{"from", "to"},
	)

	DeadTaskRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_dead_task_runs_total",
			Help: "Task runs declared dead after missing heartbeats",
		},
	)

	// Worker metrics
	WorkerCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_worker_cycle_duration_seconds",
			Help:    "Duration of one worker cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)

	WorkerBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_worker_batch_size",
			Help:    "Rows claimed per worker cycle",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 250, 500},
		},
		[]string{"worker"},
	)

	WorkerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_worker_errors_total",
			Help: "Worker cycle failures by worker",
		},
		[]string{"worker"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(MonitorTransitionsTotal)
	prometheus.MustRegister(IncidentsOpenedTotal)
	prometheus.MustRegister(IncidentsResolvedTotal)
	prometheus.MustRegister(NotificationsSentTotal)
	prometheus.MustRegister(TaskTransitionsTotal)
	prometheus.MustRegister(DeadTaskRunsTotal)
	prometheus.MustRegister(WorkerCycleDuration)
	prometheus.MustRegister(WorkerBatchSize)
	prometheus.MustRegister(WorkerErrorsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a worker cycle
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveCycle records the elapsed time for the named worker
func (t *Timer) ObserveCycle(worker string) {
	WorkerCycleDuration.WithLabelValues(worker).Observe(time.Since(t.start).Seconds())
}

// Elapsed returns the time since the timer started
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
