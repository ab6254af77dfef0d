package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal           *prometheus.CounterVec
	askDuration        *prometheus.HistogramVec
	retrievedPassages  *prometheus.HistogramVec
	retrievalHitTotal  *prometheus.CounterVec
	noContextTotal     *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ckb",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "retrieval",
			Name:      "ask_total",
			Help:      "Total answered questions by retrieval mode.",
		},
		[]string{"service", "mode"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "retrieval",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end ask duration in seconds by retrieval mode.",
			// Cache hits answer in milliseconds, full retrieval in seconds;
			// the mode label keeps the two distributions apart.
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "mode"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ckb",
			Subsystem: "retrieval",
			Name:      "passages",
			Help:      "Distribution of cited passages per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 13},
		},
		[]string{"service"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total questions answered with at least one cited passage.",
		},
		[]string{"service"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total questions answered without retrieved passages.",
		},
		[]string{"service"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ckb",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ckb",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Total circuit breaker state transitions.",
		},
		[]string{"service", "operation", "from", "to"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askTotal,
		askDuration,
		retrievedPassages,
		retrievalHitTotal,
		noContextTotal,
		breakerState,
		breakerTransitions,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		askTotal:           askTotal,
		askDuration:        askDuration,
		retrievedPassages:  retrievedPassages,
		retrievalHitTotal:  retrievalHitTotal,
		noContextTotal:     noContextTotal,
		breakerState:       breakerState,
		breakerTransitions: breakerTransitions,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAskObservation(service, mode string, passageCount int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.askTotal.WithLabelValues(service, mode).Inc()
	m.askDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
	m.retrievedPassages.WithLabelValues(service).Observe(float64(passageCount))

	if passageCount > 0 {
		m.retrievalHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.noContextTotal.WithLabelValues(service).Inc()
}

// RecordBreakerTransition feeds the breaker state change hook. State gauge
// encodes closed=0, half_open=1, open=2.
func (m *HTTPServerMetrics) RecordBreakerTransition(service, operation, from, to string) {
	m.breakerTransitions.WithLabelValues(service, operation, from, to).Inc()
	m.breakerState.WithLabelValues(service, operation).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open", "half-open":
		return 1
	default:
		return 0
	}
}

// RegisterCacheGauges exposes live query cache stats without polling.
func (m *HTTPServerMetrics) RegisterCacheGauges(service string, stats func() (entries int, hitRate float64)) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "ckb",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current query cache entries.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		func() float64 {
			entries, _ := stats()
			return float64(entries)
		},
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "ckb",
			Subsystem: "cache",
			Name:      "hit_rate_percent",
			Help:      "Query cache hit rate since startup.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		func() float64 {
			_, hitRate := stats()
			return hitRate
		},
	))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
