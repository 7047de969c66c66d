package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultOffline = "offline"
)

// Metrics holds Prometheus counters for the relay. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	responsesTotal   *prometheus.CounterVec
	extractionsTotal *prometheus.CounterVec
	proxiedBytes     prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsrelay_requests_total",
		Help: "Relay requests by classified kind",
	}, []string{"kind"})
	responsesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsrelay_responses_total",
		Help: "Relay responses by kind and status code",
	}, []string{"kind", "code"})
	extractionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsrelay_extractions_total",
		Help: "Extraction attempts by step and result (hit, miss, offline); a rising miss rate with few offline results hints at an upstream format change",
	}, []string{"step", "result"})
	proxiedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hlsrelay_segment_bytes_total",
		Help: "Bytes streamed from upstream segment responses",
	})

	registry.MustRegister(
		requestsTotal,
		responsesTotal,
		extractionsTotal,
		proxiedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		responsesTotal:   responsesTotal,
		extractionsTotal: extractionsTotal,
		proxiedBytes:     proxiedBytes,
	}
}

func (m *Metrics) IncRequests(kind string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncResponses(kind string, code int) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(kind, strconv.Itoa(code)).Inc()
}

func (m *Metrics) IncExtractions(step, result string) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(step, result).Inc()
}

func (m *Metrics) AddProxiedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.proxiedBytes.Add(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
