// Package server ties the readiness multiplexer, connection state machine,
// work-dispatch pool, handler registry, and static resource cache into the
// two listener loops (C7) the spec calls for: one cleartext, one TLS,
// sharing a single work pool, handler table, and resource cache.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/youfantan/Nexus/internal/logging"
	"github.com/youfantan/Nexus/internal/metrics"
	"github.com/youfantan/Nexus/internal/mux"
	"github.com/youfantan/Nexus/internal/rescache"
	"github.com/youfantan/Nexus/internal/tlsutil"
	"github.com/youfantan/Nexus/internal/workpool"
)

// Config is the Server's construction-time configuration (§6's
// configuration surface, expanded in SPEC_FULL.md).
type Config struct {
	HTTPAddr      string
	HTTPSAddr     string
	CertFile      string
	KeyFile       string
	StaticDir     string
	Workers       int
	PollMs        int
	ConnTimeoutMs int64
	CacheCapacity int
}

// Server owns both listener loops plus the state they share.
type Server struct {
	cfg Config
	log *logging.Logger

	registry *Registry
	cache    *rescache.Cache
	stats    *Stats
	metrics  *metrics.Registry
	pool     *workpool.Pool

	http  *loop
	https *loop

	wg      sync.WaitGroup
	stopped chan struct{}
}

// New constructs both listener loops. Bind/listen and TLS-context
// construction failures are fatal per the error-handling design: the
// caller is expected to log.Fatal and exit if New returns an error (this
// package itself never calls os.Exit).
func New(cfg Config, registry *Registry, log *logging.Logger) (*Server, error) {
	stats := &Stats{}
	metricsReg := metrics.New()
	registerBuiltins(registry, stats, metricsReg)

	cache := rescache.New(cfg.StaticDir, cfg.CacheCapacity)
	ctx := NewContext(registry, cache, stats, metricsReg, log)
	pool := workpool.New(cfg.Workers)

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		cache:    cache,
		stats:    stats,
		metrics:  metricsReg,
		pool:     pool,
		stopped:  make(chan struct{}),
	}

	httpMux, err := newMultiplexer()
	if err != nil {
		return nil, err
	}
	s.http, err = newLoop("http", cfg.HTTPAddr, false, nil, httpMux, pool, ctx, stats, metricsReg, cfg.ConnTimeoutMs, log.With("http"))
	if err != nil {
		return nil, err
	}

	tlsCfg, err := tlsutil.NewConfig(cfg.CertFile, cfg.KeyFile).Build()
	if err != nil {
		s.http.close()
		return nil, fmt.Errorf("server: tls context: %w", err)
	}
	httpsMux, err := newMultiplexer()
	if err != nil {
		s.http.close()
		return nil, err
	}
	s.https, err = newLoop("https", cfg.HTTPSAddr, true, tlsCfg, httpsMux, pool, ctx, stats, metricsReg, cfg.ConnTimeoutMs, log.With("https"))
	if err != nil {
		s.http.close()
		return nil, err
	}

	return s, nil
}

// newMultiplexer picks the poll-style backend, the cross-platform default;
// the select-style backend (internal/mux's SelectBackend, Linux-only) is
// reachable for callers that explicitly construct it, but isn't the
// server's default since poll scales past the select backend's fd-count
// ceiling.
func newMultiplexer() (mux.Multiplexer, error) {
	return mux.NewPollBackend(), nil
}

// Start runs both listener loops' tick cycles on their own goroutines until
// Close is called.
func (s *Server) Start() {
	s.wg.Add(2)
	go s.run(s.http)
	go s.run(s.https)
}

func (s *Server) run(l *loop) {
	defer s.wg.Done()
	interval := time.Duration(s.cfg.PollMs) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopped:
			return
		case <-ticker.C:
			if err := l.tick(); err != nil {
				s.log.Warn("loop tick error", map[string]any{"listener": l.name, "error": err.Error()})
			}
		}
	}
}

// Close stops both loops, drains their connection tables, and joins the
// work pool, in that order: the work pool is closed last so any drive still
// in flight when a loop stopped ticking finishes before Close returns.
func (s *Server) Close() {
	close(s.stopped)
	s.wg.Wait()
	s.http.close()
	s.https.close()
	s.pool.Close()
}

// Stats returns the shared counters (executed_http/https, connection
// totals) for callers outside the /statistics and /metrics handlers, e.g.
// structured shutdown logging.
func (s *Server) Stats() *Stats { return s.stats }

// HTTPAddr returns the cleartext listener's bound address (useful when the
// configured address used port 0).
func (s *Server) HTTPAddr() net.Addr { return s.http.addr() }

// HTTPSAddr returns the TLS listener's bound address.
func (s *Server) HTTPSAddr() net.Addr { return s.https.addr() }
