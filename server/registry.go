package server

import (
	"strconv"
	"sync/atomic"

	"github.com/youfantan/Nexus/internal/conn"
	"github.com/youfantan/Nexus/internal/httpx"
	"github.com/youfantan/Nexus/internal/logging"
	"github.com/youfantan/Nexus/internal/metrics"
	"github.com/youfantan/Nexus/internal/rescache"
)

// Registry is the path -> {GET, POST} handler table (C8). Per the
// concurrency model, it is written only while building a Server, before any
// loop starts, and read-only for the remainder of the process; no
// synchronization guards lookups.
type Registry struct {
	handlers map[string]conn.Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]conn.Handler)}
}

// AddHandler registers h under path, overwriting any existing entry. This
// mirrors add_handler<H>(path) registering {H::doGet, H::doPost}: callers
// that only implement one method leave the other field nil.
func (r *Registry) AddHandler(path string, h conn.Handler) {
	r.handlers[path] = h
}

func (r *Registry) lookup(path string) (conn.Handler, bool) {
	h, ok := r.handlers[path]
	return h, ok
}

// Stats holds the process-wide atomic counters the design notes call for,
// mirroring the teacher's server.Stats struct (shockwave's BytesRead and
// BytesWritten counters included): executed_http and executed_https live
// here, by reference, rather than as package-level globals, so a
// statistics handler captures this struct (or the Context wrapping it)
// instead of reaching for process state.
type Stats struct {
	ExecutedHTTP  atomic.Uint64
	ExecutedHTTPS atomic.Uint64

	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64

	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64
}

// Context implements conn.Context: the handler table, static resource
// cache, executed-request/byte counters, and structured logger a drive
// tick needs, bundled so internal/conn never imports the server package
// directly.
type Context struct {
	registry *Registry
	cache    *rescache.Cache
	stats    *Stats
	metrics  *metrics.Registry
	log      *logging.Logger
}

// NewContext builds a Context over the given registry, cache, stats,
// metrics registry, and logger. log is tagged with the "conn" component so
// every event Drive emits through this Context is attributable to it.
func NewContext(registry *Registry, cache *rescache.Cache, stats *Stats, reg *metrics.Registry, log *logging.Logger) *Context {
	return &Context{registry: registry, cache: cache, stats: stats, metrics: reg, log: log.With("conn")}
}

func (c *Context) Lookup(path string) (conn.Handler, bool) {
	return c.registry.lookup(path)
}

func (c *Context) Locate(path string) (rescache.Result, error) {
	res, err := c.cache.Locate(path)
	if err == nil {
		if res.Valid {
			c.metrics.CacheHits.Inc()
		} else {
			c.metrics.CacheMisses.Inc()
		}
	}
	return res, err
}

func (c *Context) CountExecuted(isTLS bool) {
	if isTLS {
		c.stats.ExecutedHTTPS.Add(1)
	} else {
		c.stats.ExecutedHTTP.Add(1)
	}
	listener := "http"
	if isTLS {
		listener = "https"
	}
	c.metrics.ExecutedTotal.WithLabelValues(listener).Inc()
}

func (c *Context) RecordBytesRead(n int)    { c.stats.BytesRead.Add(uint64(n)) }
func (c *Context) RecordBytesWritten(n int) { c.stats.BytesWritten.Add(uint64(n)) }

func (c *Context) LogDebug(msg string, fields map[string]any) { c.log.Debug(msg, fields) }
func (c *Context) LogInfo(msg string, fields map[string]any)  { c.log.Info(msg, fields) }

// registerBuiltins installs the /statistics handler (required by §6) and
// the /metrics handler (the new Prometheus exposition endpoint) on both
// listeners' shared registry.
func registerBuiltins(r *Registry, stats *Stats, reg *metrics.Registry) {
	r.AddHandler("/statistics", conn.Handler{
		Get: func(httpx.GetRequest) httpx.Response {
			sum := stats.ExecutedHTTP.Load() + stats.ExecutedHTTPS.Load()
			return httpx.NewResponse("200 OK", "text/plain", []byte(strconv.FormatUint(sum, 10)))
		},
	})
	r.AddHandler("/metrics", conn.Handler{
		Get: func(httpx.GetRequest) httpx.Response {
			body, contentType, err := reg.Gather()
			if err != nil {
				return httpx.Response{Status: "500 Internal Server Error"}
			}
			return httpx.NewResponse("200 OK", contentType, body)
		},
	})
}
