// Package metrics exposes bot counters in the Prometheus text format.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/llm"
)

const namespace = "dietbot"

// Metrics registers its collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	updates     *prometheus.CounterVec
	lookups     *prometheus.CounterVec
	llmRequests *prometheus.CounterVec
	llmCost     *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Chat updates handled, by kind.",
		}, []string{"kind"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nutrition_lookups_total",
			Help:      "Nutrition provider lookups, by provider and outcome.",
		}, []string{"source", "result"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Model calls, by request type and status.",
		}, []string{"request_type", "status"}),
		llmCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Model spend in USD, by request type.",
		}, []string{"request_type"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model call latency including retries.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"request_type"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.lookups, m.llmRequests, m.llmCost, m.llmDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Update counts one inbound update: "text", "photo", "command" or "callback".
func (m *Metrics) Update(kind string) {
	m.updates.WithLabelValues(kind).Inc()
}

// ObserveLookup has the shape of nutrition.Observer.
func (m *Metrics) ObserveLookup(provider, outcome string) {
	m.lookups.WithLabelValues(provider, outcome).Inc()
}

// RecordUsage satisfies llm.UsageRecorder.
func (m *Metrics) RecordUsage(_ context.Context, u llm.Usage) error {
	status := "ok"
	if u.Err != nil {
		status = "error"
	}
	m.llmRequests.WithLabelValues(u.RequestType, status).Inc()
	m.llmCost.WithLabelValues(u.RequestType).Add(u.CostUSD)
	m.llmDuration.WithLabelValues(u.RequestType).Observe(u.Duration.Seconds())
	return nil
}
