package conn

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// tlsSocket is the secure-port Socket. It layers crypto/tls's record layer
// over the same TCP connection rawSocket would use, reusing the
// immediate-deadline would-block probe for Handshake/Read/Write alike so the
// HANDSHAKE state can poll the handshake step exactly like READ/RESPONSE
// poll the record read/write steps.
type tlsSocket struct {
	tcp  *net.TCPConn
	tls  *tls.Conn
	fd   int
	done bool
}

// NewTLSSocket wraps an accepted TCP connection in a server-side TLS
// session. The handshake itself is driven later via Handshake, not here.
func NewTLSSocket(c *net.TCPConn, cfg *tls.Config) (*tlsSocket, error) {
	fd, err := fdOf(c)
	if err != nil {
		return nil, err
	}
	return &tlsSocket{tcp: c, tls: tls.Server(c, cfg), fd: fd}, nil
}

// Handshake attempts one non-blocking step of the TLS handshake. It returns
// ErrWouldBlock if the handshake needs more bytes than have arrived yet (or
// the peer hasn't drained a flight); the HANDSHAKE state stays put on that
// result and retries on the next readiness tick.
func (s *tlsSocket) Handshake() error {
	if err := s.tcp.SetDeadline(time.Now()); err != nil {
		return err
	}
	err := s.tls.HandshakeContext(context.Background())
	if isTimeout(err) {
		return ErrWouldBlock
	}
	if err == nil {
		s.done = true
	}
	return err
}

func (s *tlsSocket) Read(buf []byte) (int, error) {
	if err := s.tcp.SetReadDeadline(time.Now()); err != nil {
		return 0, err
	}
	n, err := s.tls.Read(buf)
	if isTimeout(err) {
		return n, ErrWouldBlock
	}
	return n, err
}

func (s *tlsSocket) Write(buf []byte) (int, error) {
	if err := s.tcp.SetWriteDeadline(time.Now()); err != nil {
		return 0, err
	}
	n, err := s.tls.Write(buf)
	if isTimeout(err) {
		return n, ErrWouldBlock
	}
	return n, err
}

func (s *tlsSocket) Fd() int { return s.fd }

func (s *tlsSocket) Close() error {
	if s.done {
		_ = s.tls.CloseWrite()
	}
	return s.tls.Close()
}
