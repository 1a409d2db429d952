// Package metrics exposes Prometheus counters for the signing proxy.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeLocal    = "local"
	OutcomeSigned   = "signed"
	OutcomeProxied  = "proxied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the proxy's collectors on a private registry.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	signingsTotal      *prometheus.CounterVec
	downstreamDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jsonrpc_requests_total",
				Help:      "JSON-RPC requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		signingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signing_operations_total",
				Help:      "Transaction signing operations by result",
			},
			[]string{"result"},
		),
		downstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "downstream_request_duration_seconds",
				Help:      "Latency of requests forwarded to the downstream node",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.signingsTotal,
		m.downstreamDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RecordRequest(method, outcome string) {
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) RecordSigning(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.signingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDownstream(method string, elapsed time.Duration) {
	m.downstreamDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MetricsServer serves /metrics on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// New serves the registry of m on listenAddr.
func New(m *Metrics, listenAddr string) (*MetricsServer, error) {
	if m == nil {
		return nil, errors.New("metrics server requires metrics")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
