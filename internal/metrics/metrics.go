// Package metrics wires up the Prometheus collectors exposed by the new
// /metrics built-in handler, alongside the spec-mandated /statistics
// handler. It is additive: nothing in the connection engine depends on it,
// it only observes the same counters the server package already tracks.
package metrics

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/expfmt"
)

// Registry holds the process's Prometheus collectors. One Registry is
// shared by both the HTTP and HTTPS listeners.
type Registry struct {
	reg *prometheus.Registry

	ExecutedTotal   *prometheus.CounterVec
	ActiveConns     prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// New builds and registers the server's collector set.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ExecutedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_executed_requests_total",
			Help: "Requests that reached the EXECUTING state, by listener.",
		}, []string{"listener"}),
		ActiveConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_active_connections",
			Help: "Connections currently present in a server loop's connection table.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_connections_accepted_total",
			Help: "Connections accepted since process start, across both listeners.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_resource_cache_hits_total",
			Help: "Static resource lookups that resolved to a file, whether served from memory or read from disk.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_resource_cache_misses_total",
			Help: "Static resource lookups that found no file.",
		}),
	}

	reg.MustRegister(r.ExecutedTotal, r.ActiveConns, r.ConnectionsTotal, r.CacheHits, r.CacheMisses)
	return r
}

// Gather renders the current collector state in Prometheus's text exposition
// format, the body the /metrics handler writes back.
func (r *Registry) Gather() ([]byte, string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, "", err
		}
	}
	return buf.Bytes(), string(expfmt.FmtText), nil
}
