package server

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/youfantan/Nexus/internal/conn"
	"github.com/youfantan/Nexus/internal/logging"
	"github.com/youfantan/Nexus/internal/metrics"
	"github.com/youfantan/Nexus/internal/mux"
	"github.com/youfantan/Nexus/internal/workpool"
)

// loop is one server-loop instance (C7): one per listener, each owning its
// own listening socket, multiplexer registration, and connection table, but
// sharing the work pool and handler/cache/stats context with its sibling.
type loop struct {
	name       string
	listener   *net.TCPListener
	listenerFd int
	m          mux.Multiplexer
	pool       *workpool.Pool
	ctx        *Context
	stats      *Stats
	metrics    *metrics.Registry
	timeoutMs  int64
	isTLS      bool
	tlsCfg     *tls.Config
	log        *logging.Logger

	order []int
	table map[int]*conn.Record
}

// newLoop binds addr and registers the listener for read-readiness. For
// TLS, tlsCfg must already be built (server.crt/server.key loaded).
func newLoop(name, addr string, isTLS bool, tlsCfg *tls.Config, m mux.Multiplexer, pool *workpool.Pool, ctx *Context, stats *Stats, metricsReg *metrics.Registry, timeoutMs int64, log *logging.Logger) (*loop, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: resolve %s: %w", addr, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", addr, err)
	}

	fd, err := listenerFd(ln)
	if err != nil {
		ln.Close()
		return nil, err
	}
	if err := m.Add(fd, mux.Read); err != nil {
		ln.Close()
		return nil, err
	}

	return &loop{
		name:       name,
		listener:   ln,
		listenerFd: fd,
		m:          m,
		pool:       pool,
		ctx:        ctx,
		stats:      stats,
		metrics:    metricsReg,
		timeoutMs:  timeoutMs,
		isTLS:      isTLS,
		tlsCfg:     tlsCfg,
		log:        log,
		table:      make(map[int]*conn.Record),
	}, nil
}

// tick runs one poll(0) + accept/dispatch + sweep cycle.
func (l *loop) tick() error {
	events, err := l.m.Poll(0)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if ev.Fd == l.listenerFd {
			l.acceptAll()
			continue
		}
		rec, ok := l.table[ev.Fd]
		if !ok {
			continue
		}
		l.post(rec)
	}

	l.sweep()
	return nil
}

func (l *loop) acceptAll() {
	for {
		tcpConn, err := l.listener.AcceptTCP()
		if err != nil {
			return
		}

		var sock conn.Socket
		if l.isTLS {
			ts, err := conn.NewTLSSocket(tcpConn, l.tlsCfg)
			if err != nil {
				l.log.Warn("tls socket setup failed", map[string]any{"error": err.Error()})
				tcpConn.Close()
				continue
			}
			sock = ts
		} else {
			s, err := conn.NewSocket(tcpConn)
			if err != nil {
				l.log.Warn("socket setup failed", map[string]any{"error": err.Error()})
				tcpConn.Close()
				continue
			}
			sock = s
		}

		if err := l.m.Add(sock.Fd(), mux.Read|mux.Write); err != nil {
			l.log.Warn("multiplexer registration failed", map[string]any{"error": err.Error()})
			sock.Close()
			continue
		}

		rec := conn.NewRecord(sock, tcpConn.RemoteAddr(), l.isTLS)
		l.table[sock.Fd()] = rec
		l.order = append(l.order, sock.Fd())

		l.stats.TotalConnections.Add(1)
		l.stats.ActiveConnections.Add(1)
		l.metrics.ConnectionsTotal.Inc()
		l.metrics.ActiveConns.Inc()
		l.log.Debug("accepted", map[string]any{"listener": l.name, "peer": rec.Peer.String()})
	}
}

func (l *loop) post(rec *conn.Record) {
	ctx := l.ctx
	l.pool.Post(func() {
		conn.Drive(rec, ctx)
	})
}

// sweep walks the connection table in insertion order, dropping connections
// that finished or timed out and re-posting a drive for anything still
// EXECUTING (so a handler mid-flight keeps making progress even without a
// fresh readiness event).
func (l *loop) sweep() {
	nowMs := time.Now().UnixMilli()
	kept := l.order[:0]

	for _, fd := range l.order {
		rec, ok := l.table[fd]
		if !ok {
			continue
		}

		switch {
		case rec.Finished():
			l.drop(fd)
			continue
		case rec.Expired(nowMs, l.timeoutMs):
			rec.Mu.Lock()
			if rec.Socket != nil {
				rec.Socket.Close()
				rec.Socket = nil
			}
			rec.Mu.Unlock()
			l.drop(fd)
			continue
		}

		rec.Mu.Lock()
		stillExecuting := rec.State == conn.StateExecuting
		rec.Mu.Unlock()
		if stillExecuting {
			l.post(rec)
		}

		kept = append(kept, fd)
	}
	l.order = kept
}

func (l *loop) drop(fd int) {
	_ = l.m.Remove(fd)
	delete(l.table, fd)
	l.stats.ActiveConnections.Add(-1)
	l.metrics.ActiveConns.Dec()
}

// addr returns the listener's bound address, useful when the configured
// address used port 0 and the OS picked an ephemeral port.
func (l *loop) addr() net.Addr { return l.listener.Addr() }

// close drains the connection table, closing every socket, then the
// listener and multiplexer themselves.
func (l *loop) close() {
	for fd, rec := range l.table {
		rec.Mu.Lock()
		if rec.Socket != nil {
			rec.Socket.Close()
		}
		rec.Mu.Unlock()
		delete(l.table, fd)
	}
	_ = l.m.Close()
	_ = l.listener.Close()
}

func listenerFd(ln *net.TCPListener) (int, error) {
	raw, err := ln.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	err = raw.Control(func(p uintptr) { fd = int(p) })
	if err != nil {
		return 0, err
	}
	return fd, nil
}
