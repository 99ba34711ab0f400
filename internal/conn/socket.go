// Package conn implements the per-connection state machine (C4): the
// cleartext and TLS transitions a single accepted client walks through from
// first byte to teardown, driven one tick at a time by Drive.
//
// The readiness multiplexer (internal/mux) tells a server loop which socket
// handles are ready; Drive then performs non-blocking reads or writes in
// that tick until the socket would block or the state's work is done.
// Go's net.Conn has no native "would it block" probe, so
// Socket arms an immediate deadline before every Read/Write and treats the
// resulting timeout as the would-block signal the state machine needs -- the
// same shape as the primitive's "would-block" result described for the
// socket and TLS read/write steps. The actual wait for readiness still
// happens in the multiplexer, not here; the deadline only prevents a single
// attempted Read/Write from blocking the worker that's driving it.
package conn

import (
	"errors"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by Socket.Read/Write when the underlying
// primitive has no data/room ready right now. It is not a connection
// failure: the caller should leave the connection in its current state and
// wait for the next readiness tick.
var ErrWouldBlock = errors.New("conn: would block")

// Socket is the transport a connection drives I/O through. Both the
// cleartext and TLS records layers implement it so Drive's READ/RESPONSE
// logic doesn't need to know which one it holds.
type Socket interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Fd() int
	Close() error
}

// rawSocket is the cleartext Socket: a *net.TCPConn driven with the
// immediate-deadline would-block probe described above.
type rawSocket struct {
	conn *net.TCPConn
	fd   int
}

// NewSocket wraps an accepted TCP connection. It extracts the file
// descriptor once (for multiplexer registration) and sets it non-blocking at
// the OS level as a second line of defense alongside the deadline trick.
func NewSocket(c *net.TCPConn) (Socket, error) {
	fd, err := fdOf(c)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	return &rawSocket{conn: c, fd: fd}, nil
}

func (s *rawSocket) Read(buf []byte) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, err
	}
	n, err := s.conn.Read(buf)
	if isTimeout(err) {
		return n, ErrWouldBlock
	}
	return n, err
}

func (s *rawSocket) Write(buf []byte) (int, error) {
	if err := s.conn.SetWriteDeadline(time.Now()); err != nil {
		return 0, err
	}
	n, err := s.conn.Write(buf)
	if isTimeout(err) {
		return n, ErrWouldBlock
	}
	return n, err
}

func (s *rawSocket) Fd() int     { return s.fd }
func (s *rawSocket) Close() error { return s.conn.Close() }

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func fdOf(c *net.TCPConn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(p uintptr) {
		fd = int(p)
	})
	if err != nil {
		return 0, err
	}
	return fd, ctrlErr
}
