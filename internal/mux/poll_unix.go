//go:build unix

package mux

import (
	"sync"

	"golang.org/x/sys/unix"
)

// PollBackend is the poll(2)-based Multiplexer. It has no fixed handle-count
// limit (unlike SelectBackend) and is the default general-purpose backend.
type PollBackend struct {
	mu     sync.Mutex
	closed bool
	fds    map[int]Interest
}

// NewPollBackend constructs an empty PollBackend.
func NewPollBackend() *PollBackend {
	return &PollBackend{fds: make(map[int]Interest)}
}

func toPollEvents(in Interest) int16 {
	var e int16
	if in&Read != 0 {
		e |= unix.POLLIN
	}
	if in&Write != 0 {
		e |= unix.POLLOUT
	}
	if in&Except != 0 {
		e |= unix.POLLPRI
	}
	return e
}

func fromPollEvents(e int16) Ready {
	var r Ready
	if e&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		r |= Read
	}
	if e&unix.POLLOUT != 0 {
		r |= Write
	}
	if e&(unix.POLLPRI|unix.POLLERR) != 0 {
		r |= Except
	}
	return r
}

func (p *PollBackend) Add(fd int, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.fds[fd] = interest
	return nil
}

func (p *PollBackend) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	delete(p.fds, fd)
	return nil
}

func (p *PollBackend) Poll(waitMs int) ([]Event, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if len(p.fds) == 0 {
		p.mu.Unlock()
		sleepMs(waitMs)
		return nil, nil
	}
	fds := make([]unix.PollFd, 0, len(p.fds))
	for fd, in := range p.fds {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: toPollEvents(in)})
	}
	p.mu.Unlock()

	n, err := unix.Poll(fds, waitMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]Event, 0, n)
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		if _, stillRegistered := p.fds[fd]; !stillRegistered {
			continue
		}
		events = append(events, Event{Fd: fd, Ready: fromPollEvents(pfd.Revents)})
	}
	return events, nil
}

func (p *PollBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.fds = nil
	return nil
}
