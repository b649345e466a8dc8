// Package prometrics backs observability counters and histograms with Prometheus vectors on a
// dedicated registry, served at /metrics.
package prometrics

import (
	"net/http"
	"sync"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg       *prometheus.Registry
	namespace string

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New returns a registry preloaded with the Go runtime and process collectors.
func New(namespace string) *Registry {
	r := NewBare(namespace)
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// NewBare returns an empty registry, for tests.
func NewBare(namespace string) *Registry {
	return &Registry{
		reg:        prometheus.NewRegistry(),
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Counter registers name once; later calls with the same name return the same vector.
func (r *Registry) Counter(name, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.counters[name]
	if !ok {
		v = prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: r.namespace, Name: name, Help: help}, labelKeys)
		r.reg.MustRegister(v)
		r.counters[name] = v
	}
	return counter{v: v, keys: labelKeys}
}

func (r *Registry) Histogram(name, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.histograms[name]
	if !ok {
		v = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace, Name: name, Help: help, Buckets: buckets,
		}, labelKeys)
		r.reg.MustRegister(v)
		r.histograms[name] = v
	}
	return histogram{v: v, keys: labelKeys}
}

type counter struct {
	v    *prometheus.CounterVec
	keys []string
}

func (c counter) Add(d float64, ls ...observability.Label) {
	c.v.With(labels(c.keys, ls)).Add(d)
}

func (c counter) Bind(ls ...observability.Label) observability.BoundCounter {
	return c.v.With(labels(c.keys, ls))
}

type histogram struct {
	v    *prometheus.HistogramVec
	keys []string
}

func (h histogram) Observe(x float64, ls ...observability.Label) {
	h.v.With(labels(h.keys, ls)).Observe(x)
}

func (h histogram) Bind(ls ...observability.Label) observability.BoundHistogram {
	return h.v.With(labels(h.keys, ls))
}

// labels maps ls onto the declared keys. Missing keys become "" and undeclared ones are dropped, so a
// call site can never make With panic on a label mismatch.
func labels(keys []string, ls []observability.Label) prometheus.Labels {
	out := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		out[k] = ""
	}
	for _, l := range ls {
		if _, ok := out[l.Key]; ok {
			out[l.Key] = l.Value
		}
	}
	return out
}
