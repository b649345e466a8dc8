// Package observability assembles the zap, Prometheus and OpenTelemetry adapters into one provider.
package observability

import (
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Instruments creates labelled vectors; *prometrics.Registry satisfies it.
type Instruments interface {
	Counter(name, help string, labelKeys ...string) observability.Counter
	Histogram(name, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

func (p provider) Tracer() observability.Tracer   { return p.tracer }
func (p provider) Logger() observability.Logger   { return p.logger }
func (p provider) Metrics() observability.Metrics { return p.metrics }

// New builds a provider; nil parts fall back to their no-op versions.
func New(tracer observability.Tracer, logger observability.Logger, metrics observability.Metrics) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return provider{tracer: tracer, logger: logger, metrics: metrics}
}

type metricSet struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m metricSet) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (m metricSet) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}

type counterDef struct {
	key    observability.MetricKey
	help   string
	labels []string
}

type histogramDef struct {
	counterDef
	buckets []float64
}

var (
	counterDefs = []counterDef{
		{observability.MUsecaseRequests, "Use case invocations by outcome.", []string{"use_case", "outcome"}},
		{observability.MHTTPRequests, "HTTP requests by route and status.", []string{"method", "route", "status"}},
		{observability.MExternalRequests, "Calls to external peers (payment provider, cache, broker).", []string{"peer", "endpoint", "outcome"}},
		{observability.MWebhookEvents, "Payment webhook deliveries by event type and outcome.", []string{"type", "outcome"}},
		{observability.MReservationsExpired, "Reservations released by the expiry sweeper.", []string{"outcome"}},
	}
	histogramDefs = []histogramDef{
		{counterDef{observability.MUsecaseDuration, "Use case latency in seconds.", []string{"use_case"}}, prometheus.DefBuckets},
		{counterDef{observability.MHTTPRequestDuration, "HTTP request latency in seconds.", []string{"method", "route", "status"}}, prometheus.DefBuckets},
		{counterDef{observability.MExternalRequestDuration, "External call latency in seconds.", []string{"peer", "endpoint"}}, prometheus.DefBuckets},
	}
)

// NewWithRegistry registers every marketplace instrument on inst and returns a provider exposing them.
func NewWithRegistry(tracer observability.Tracer, logger observability.Logger, inst Instruments) observability.Observability {
	m := metricSet{
		counters:   make(map[observability.MetricKey]observability.Counter, len(counterDefs)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(histogramDefs)),
	}
	for _, d := range counterDefs {
		m.counters[d.key] = inst.Counter(string(d.key), d.help, d.labels...)
	}
	for _, d := range histogramDefs {
		m.histograms[d.key] = inst.Histogram(string(d.key), d.help, d.buckets, d.labels...)
	}
	return New(tracer, logger, m)
}
