package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TaskRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xetl_task_runs_total",
		Help: "Total export task invocations",
	})
	TaskErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xetl_task_errors_total",
		Help: "Total export task failures by error kind",
	}, []string{"kind"})
	TaskDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "xetl_task_duration_seconds",
		Help:    "Export task duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	RecordsWritten = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xetl_records_written",
		Help: "Records in the last successfully written artifact",
	})
	Attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xetl_attempts_total",
		Help: "Scheduled attempts by outcome",
	}, []string{"status"})
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xetl_api_requests_total",
		Help: "X API requests by endpoint and status",
	}, []string{"endpoint", "status"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xetl_command_runs_total",
		Help: "CLI command invocations by outcome",
	}, []string{"command", "status"})
)

func init() {
	prometheus.MustRegister(TaskRuns, TaskErrors, TaskDuration, RecordsWritten, Attempts, APIRequests, CommandRuns)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveTaskDuration records a run duration.
func ObserveTaskDuration(start time.Time) {
	TaskDuration.Observe(time.Since(start).Seconds())
}

func IncTaskError(kind string) { TaskErrors.WithLabelValues(kind).Inc() }

func IncAttempt(status string) { Attempts.WithLabelValues(status).Inc() }

func ObserveAPIRequest(endpoint, status string) {
	APIRequests.WithLabelValues(endpoint, status).Inc()
}

func IncCommandRun(cmd, status string) { CommandRuns.WithLabelValues(cmd, status).Inc() }
