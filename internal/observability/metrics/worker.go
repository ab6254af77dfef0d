package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics instruments the document pipeline from queue pickup to
// indexed passages.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	passagesIndexed *prometheus.CounterVec
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Documents taken through extract, chunk, embed and index, by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "End-to-end processing time per document by status.",
			// Embedding dominates and scales with document length, so the
			// buckets run up to the processing deadline rather than the
			// default request-latency range.
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	passagesIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "passages_indexed_total",
			Help:      "Total passages chunked, embedded and indexed.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and the worker picking it up.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, passagesIndexed, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		passagesIndexed: passagesIndexed,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

// FinishDocument records the outcome of one processing attempt. Documents
// that ran out the processing deadline count as "timeout" so they are not
// lost among ordinary failures.
func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) AddPassagesIndexed(service string, count int) {
	if count <= 0 {
		return
	}
	m.passagesIndexed.WithLabelValues(service).Add(float64(count))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
