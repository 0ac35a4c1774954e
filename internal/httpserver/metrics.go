package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the server.
type Metrics struct {
	registry      *prometheus.Registry
	AuthTotal     *prometheus.CounterVec
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the auth metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		AuthTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credauth_auth_operations_total",
				Help: "Auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credauth_http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
	}

	reg.MustRegister(m.AuthTotal)
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return promhttp.InstrumentHandlerCounter(m.RequestsTotal, next)
}
