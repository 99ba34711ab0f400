//go:build unix

package mux

import (
	"os"
	"testing"
)

func TestPollBackendReportsReadable(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	pb := NewPollBackend()
	defer pb.Close()

	if err := pb.Add(int(r.Fd()), Read); err != nil {
		t.Fatalf("add: %v", err)
	}

	if events, _ := pb.Poll(0); len(events) != 0 {
		t.Fatalf("expected no events before write, got %v", events)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	events, err := pb.Poll(1000)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 1 || events[0].Fd != int(r.Fd()) || events[0].Ready&Read == 0 {
		t.Fatalf("events = %+v, want one readable event for %d", events, r.Fd())
	}
}

func TestPollBackendRemoveStopsReporting(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	pb := NewPollBackend()
	defer pb.Close()

	if err := pb.Add(int(r.Fd()), Read); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := pb.Remove(int(r.Fd())); err != nil {
		t.Fatalf("remove: %v", err)
	}

	events, err := pb.Poll(0)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events after remove, got %v", events)
	}
}

func TestPollBackendDoubleCloseIsNoop(t *testing.T) {
	pb := NewPollBackend()
	if err := pb.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := pb.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := pb.Poll(0); err != ErrClosed {
		t.Fatalf("poll after close = %v, want ErrClosed", err)
	}
}
