package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IntakeMetrics covers both sides of the service: file ingestion outcomes
// and background pipeline runs.
type IntakeMetrics struct {
	registry *prometheus.Registry

	ingestTotal      *prometheus.CounterVec
	watcherEvents    *prometheus.CounterVec
	pipelineTotal    *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	pipelineInFlight prometheus.Gauge
}

func NewIntakeMetrics(service string) *IntakeMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callintake",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Detected recording files by ingestion outcome.",
		},
		[]string{"service", "status"},
	)
	watcherEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callintake",
			Subsystem: "watcher",
			Name:      "events_total",
			Help:      "Filesystem events observed on the watched directory.",
		},
		[]string{"service", "type"},
	)
	pipelineTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callintake",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Background transcription pipeline runs by status.",
		},
		[]string{"service", "status"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "callintake",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	pipelineInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "callintake",
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of pipeline runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(ingestTotal, watcherEvents, pipelineTotal, pipelineDuration, pipelineInFlight)

	return &IntakeMetrics{
		registry:         registry,
		ingestTotal:      ingestTotal,
		watcherEvents:    watcherEvents,
		pipelineTotal:    pipelineTotal,
		pipelineDuration: pipelineDuration,
		pipelineInFlight: pipelineInFlight,
	}
}

func (m *IntakeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IntakeMetrics) ObserveIngest(service string, err error) {
	m.ingestTotal.WithLabelValues(service, statusLabel(err)).Inc()
}

func (m *IntakeMetrics) ObserveWatcherEvent(service, eventType string) {
	m.watcherEvents.WithLabelValues(service, eventType).Inc()
}

func (m *IntakeMetrics) StartPipelineRun() {
	m.pipelineInFlight.Inc()
}

func (m *IntakeMetrics) FinishPipelineRun(service string, duration time.Duration, err error) {
	m.pipelineInFlight.Dec()
	status := statusLabel(err)
	m.pipelineTotal.WithLabelValues(service, status).Inc()
	m.pipelineDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
