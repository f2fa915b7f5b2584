// Package metrics provides Prometheus instrumentation for OmniEngine:
// batches flushed, jobs processed, per-batch processing latency, and
// queue depth.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the runtime exposes.
type Metrics struct {
	BatchesFlushed   *prometheus.CounterVec
	BatchSize        *prometheus.HistogramVec
	JobsProcessed    *prometheus.CounterVec
	InferenceLatency *prometheus.HistogramVec
	BackendFaults    *prometheus.CounterVec
	IngressDepth     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers every OmniEngine metric.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		BatchesFlushed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniengine_batches_flushed_total",
				Help: "Total batches flushed, by worker.",
			},
			[]string{"worker_id"},
		),
		BatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omniengine_batch_real_jobs",
				Help:    "Number of real (non-dummy) jobs per flushed batch.",
				Buckets: prometheus.LinearBuckets(0, 1, 17),
			},
			[]string{"worker_id"},
		),
		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniengine_jobs_processed_total",
				Help: "Total real jobs completed, by worker and outcome.",
			},
			[]string{"worker_id", "outcome"},
		),
		InferenceLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omniengine_inference_duration_seconds",
				Help:    "Batch processing latency (stacking, preprocess, Engine.Infer, postprocess, split), by worker.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"worker_id"},
		),
		BackendFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omniengine_backend_faults_total",
				Help: "Total batches that ended in a backend fault, by worker.",
			},
			[]string{"worker_id"},
		),
		IngressDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "omniengine_ingress_queue_depth",
				Help: "Last observed length of the ingress list key.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.BatchesFlushed,
		m.BatchSize,
		m.JobsProcessed,
		m.InferenceLatency,
		m.BackendFaults,
		m.IngressDepth,
	)

	return m
}

// Handler returns an http.Handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordBatch records one flushed batch's size and outcome for a
// worker. faulted indicates the batch ended in errs.ErrBackendFault
// (or another pipeline-wide failure).
func (m *Metrics) RecordBatch(workerID string, realCount int, elapsed time.Duration, faulted bool) {
	m.BatchesFlushed.WithLabelValues(workerID).Inc()
	m.BatchSize.WithLabelValues(workerID).Observe(float64(realCount))
	m.InferenceLatency.WithLabelValues(workerID).Observe(elapsed.Seconds())

	outcome := "ok"
	if faulted {
		outcome = "fault"
		m.BackendFaults.WithLabelValues(workerID).Inc()
	}
	m.JobsProcessed.WithLabelValues(workerID, outcome).Add(float64(realCount))
}
