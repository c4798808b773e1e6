package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors the engine registers for
// LLM calls, CRUD calls, and per-node latency. Grounded on hector's
// pkg/observability.PrometheusMetrics shape; condensed to the counters
// this module's components actually emit, since SPEC_FULL.md has no
// HTTP/gRPC transport layer of its own to instrument.
type Metrics struct {
	nodeDuration   *prometheus.HistogramVec
	llmCallsTotal  *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	llmTokensTotal *prometheus.CounterVec
	crudCallsTotal *prometheus.CounterVec
}

// NewMetrics registers the collector set against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "alfred_node_duration_seconds",
			Help: "Duration of one pipeline node invocation.",
		}, []string{"node"}),
		llmCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alfred_llm_calls_total",
			Help: "Total call_llm invocations by node, model, and outcome.",
		}, []string{"node", "model", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "alfred_llm_call_duration_seconds",
			Help: "Duration of one call_llm invocation.",
		}, []string{"node", "model"}),
		llmTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alfred_llm_tokens_total",
			Help: "Tokens consumed by call_llm, by node and direction.",
		}, []string{"node", "direction"}),
		crudCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alfred_crud_calls_total",
			Help: "Total CRUD executor calls by tool and table.",
		}, []string{"tool", "table"}),
	}
	reg.MustRegister(m.nodeDuration, m.llmCallsTotal, m.llmDuration, m.llmTokensTotal, m.crudCallsTotal)
	return m
}

// NoopMetrics returns a Metrics value backed by a private, unregistered
// registry — safe to use in tests or when metrics export is disabled,
// since no exporter ever scrapes it.
func NoopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func (m *Metrics) ObserveNode(node string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (m *Metrics) ObserveLLMCall(node, model, outcome string, d time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmCallsTotal.WithLabelValues(node, model, outcome).Inc()
	m.llmDuration.WithLabelValues(node, model).Observe(d.Seconds())
	m.llmTokensTotal.WithLabelValues(node, "input").Add(float64(inputTokens))
	m.llmTokensTotal.WithLabelValues(node, "output").Add(float64(outputTokens))
}

func (m *Metrics) ObserveCrudCall(tool, table string) {
	if m == nil {
		return
	}
	m.crudCallsTotal.WithLabelValues(tool, table).Inc()
}
