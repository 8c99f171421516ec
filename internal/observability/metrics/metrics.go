// Package metrics exposes prometheus instruments for the HTTP layer and the
// document pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics instruments inbound requests.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batipilot_http_requests_total",
			Help: "Inbound HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batipilot_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	for _, collector := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}

	return m, nil
}

// GinMiddleware records request counts and latency.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// DocumentMetrics counts lifecycle events on quotes and invoices.
type DocumentMetrics struct {
	transitions *prometheus.CounterVec
	exports     *prometheus.CounterVec
}

func NewDocumentMetrics(reg prometheus.Registerer) (*DocumentMetrics, error) {
	m := &DocumentMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batipilot_document_transitions_total",
			Help: "Status transitions by document type and target status.",
		}, []string{"document", "status"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batipilot_document_exports_total",
			Help: "Document exports by format.",
		}, []string{"document", "format"}),
	}

	for _, collector := range []prometheus.Collector{m.transitions, m.exports} {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *DocumentMetrics) RecordTransition(document, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(document, status).Inc()
}

func (m *DocumentMetrics) RecordExport(document, format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(document, format).Inc()
}
