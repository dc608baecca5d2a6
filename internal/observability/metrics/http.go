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
	rateLimited     *prometheus.CounterVec

	routeTotal        *prometheus.CounterVec
	routeFallback     *prometheus.CounterVec
	routeDegraded     *prometheus.CounterVec
	routeChunks       *prometheus.HistogramVec
	routeDuration     *prometheus.HistogramVec
	chatRequestsTotal *prometheus.CounterVec
	chatNoContext     *prometheus.CounterVec
	corpusChunks      *prometheus.GaugeVec
	corpusSwaps       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "regrag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "regrag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rateLimited := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected before reaching a handler, by reason.",
		},
		[]string{"service", "reason"},
	)
	routeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "router",
			Name:      "routes_total",
			Help:      "Total routed queries by query type and handler.",
		},
		[]string{"service", "query_type", "handler"},
	)
	routeFallback := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "router",
			Name:      "fallback_total",
			Help:      "Routed queries answered by the semantic fallback.",
		},
		[]string{"service", "query_type"},
	)
	routeDegraded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "router",
			Name:      "degraded_total",
			Help:      "Routed queries whose classification or retrieval failed.",
		},
		[]string{"service"},
	)
	routeChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "regrag",
			Subsystem: "router",
			Name:      "retrieved_chunks",
			Help:      "Distribution of chunks returned per routed query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "handler"},
	)
	routeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "regrag",
			Subsystem: "router",
			Name:      "duration_seconds",
			Help:      "Routing and retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "handler"},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total successful chat requests.",
		},
		[]string{"service", "endpoint"},
	)
	chatNoContext := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "chat",
			Name:      "no_context_total",
			Help:      "Total chat requests answered without retrieved sources.",
		},
		[]string{"service", "endpoint"},
	)
	corpusChunks := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "regrag",
			Subsystem: "corpus",
			Name:      "chunks",
			Help:      "Chunks held by the active corpus snapshot.",
		},
		[]string{"service"},
	)
	corpusSwaps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regrag",
			Subsystem: "corpus",
			Name:      "swaps_total",
			Help:      "Corpus snapshot reloads by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rateLimited,
		routeTotal,
		routeFallback,
		routeDegraded,
		routeChunks,
		routeDuration,
		chatRequestsTotal,
		chatNoContext,
		corpusChunks,
		corpusSwaps,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		rateLimited:       rateLimited,
		routeTotal:        routeTotal,
		routeFallback:     routeFallback,
		routeDegraded:     routeDegraded,
		routeChunks:       routeChunks,
		routeDuration:     routeDuration,
		chatRequestsTotal: chatRequestsTotal,
		chatNoContext:     chatNoContext,
		corpusChunks:      corpusChunks,
		corpusSwaps:       corpusSwaps,
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

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.rateLimited.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordRoute(service, queryType, handler string, fallback, degraded bool, chunks int, elapsed time.Duration) {
	if queryType == "" {
		queryType = "unknown"
	}
	m.routeTotal.WithLabelValues(service, queryType, handler).Inc()
	m.routeChunks.WithLabelValues(service, handler).Observe(float64(chunks))
	m.routeDuration.WithLabelValues(service, handler).Observe(elapsed.Seconds())
	if fallback {
		m.routeFallback.WithLabelValues(service, queryType).Inc()
	}
	if degraded {
		m.routeDegraded.WithLabelValues(service).Inc()
	}
}

// RouteObserver binds the router metrics to one service label.
func (m *HTTPServerMetrics) RouteObserver(service string) *RouteObserver {
	return &RouteObserver{metrics: m, service: service}
}

func (m *HTTPServerMetrics) RecordChat(service, endpoint string, sourceCount int) {
	m.chatRequestsTotal.WithLabelValues(service, endpoint).Inc()
	if sourceCount == 0 {
		m.chatNoContext.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordCorpusSwap(service string, chunks int, err error) {
	if err != nil {
		m.corpusSwaps.WithLabelValues(service, "error").Inc()
		return
	}
	m.corpusSwaps.WithLabelValues(service, "success").Inc()
	m.corpusChunks.WithLabelValues(service).Set(float64(chunks))
}

type RouteObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func (o *RouteObserver) ObserveRoute(queryType, handler string, fallback, degraded bool, chunks int, elapsed time.Duration) {
	o.metrics.RecordRoute(o.service, queryType, handler, fallback, degraded, chunks, elapsed)
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
