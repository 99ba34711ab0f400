package conn

import (
	"bytes"
	"io"
	"testing"

	"github.com/youfantan/Nexus/internal/httpx"
	"github.com/youfantan/Nexus/internal/rescache"
)

// fakeSocket is an in-memory Socket: inbound bytes are fed via in, outbound
// writes accumulate in out. Read reports ErrWouldBlock once in is drained,
// matching what a real non-blocking socket reports when nothing more has
// arrived yet.
type fakeSocket struct {
	in     *bytes.Buffer
	out    bytes.Buffer
	closed bool
}

func newFakeSocket(request string) *fakeSocket {
	return &fakeSocket{in: bytes.NewBufferString(request)}
}

func (s *fakeSocket) Read(buf []byte) (int, error) {
	n, err := s.in.Read(buf)
	if err == io.EOF {
		return n, ErrWouldBlock
	}
	return n, err
}

func (s *fakeSocket) Write(buf []byte) (int, error) {
	return s.out.Write(buf)
}

func (s *fakeSocket) Fd() int { return -1 }

func (s *fakeSocket) Close() error {
	s.closed = true
	return nil
}

type fakeContext struct {
	handlers  map[string]Handler
	staticDir map[string]rescache.Result
	executed  int

	bytesRead    int
	bytesWritten int
	debugLogs    int
	infoLogs     int
}

func (c *fakeContext) Lookup(path string) (Handler, bool) {
	h, ok := c.handlers[path]
	return h, ok
}

func (c *fakeContext) Locate(path string) (rescache.Result, error) {
	if r, ok := c.staticDir[path]; ok {
		return r, nil
	}
	return rescache.Result{Valid: false}, nil
}

func (c *fakeContext) CountExecuted(isTLS bool) { c.executed++ }

func (c *fakeContext) RecordBytesRead(n int)    { c.bytesRead += n }
func (c *fakeContext) RecordBytesWritten(n int) { c.bytesWritten += n }

func (c *fakeContext) LogDebug(msg string, fields map[string]any) { c.debugLogs++ }
func (c *fakeContext) LogInfo(msg string, fields map[string]any)  { c.infoLogs++ }

func driveUntilResponse(t *testing.T, rec *Record, ctx Context) {
	t.Helper()
	for i := 0; i < 10 && rec.State != StateResponse && rec.State != StateFinished; i++ {
		Drive(rec, ctx)
	}
}

func driveUntilFinished(t *testing.T, rec *Record, ctx Context) {
	t.Helper()
	for i := 0; i < 10 && rec.State != StateFinished; i++ {
		Drive(rec, ctx)
	}
}

func TestDriveStaticFileHit(t *testing.T) {
	sock := newFakeSocket("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	rec := NewRecord(sock, nil, false)
	ctx := &fakeContext{
		handlers:  map[string]Handler{},
		staticDir: map[string]rescache.Result{"/": {Bytes: []byte("hello"), Mime: "text/html", Valid: true}},
	}

	driveUntilFinished(t, rec, ctx)

	want := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 5\r\n\r\nhello"
	if sock.out.String() != want {
		t.Fatalf("got %q, want %q", sock.out.String(), want)
	}
	if !sock.closed {
		t.Fatal("expected socket closed after one-shot response")
	}
	if ctx.bytesRead == 0 {
		t.Fatal("expected request bytes to be recorded")
	}
	if ctx.bytesWritten == 0 {
		t.Fatal("expected response bytes to be recorded")
	}
	if ctx.debugLogs == 0 {
		t.Fatal("expected at least one debug-level transition event")
	}
	if ctx.infoLogs != 1 {
		t.Fatalf("infoLogs = %d, want exactly 1 for the terminal FINISHED transition", ctx.infoLogs)
	}
}

func TestDriveStaticFileMiss(t *testing.T) {
	sock := newFakeSocket("GET /nope HTTP/1.1\r\nHost: x\r\n\r\n")
	rec := NewRecord(sock, nil, false)
	ctx := &fakeContext{handlers: map[string]Handler{}, staticDir: map[string]rescache.Result{}}

	driveUntilFinished(t, rec, ctx)

	want := "HTTP/1.1 404 Not Found\r\nContent-Type: text/html\r\nContent-Length: 75\r\n\r\n" +
		notFoundHTML
	if sock.out.String() != want {
		t.Fatalf("got %q, want %q", sock.out.String(), want)
	}
}

func TestDrivePostUnregisteredPath(t *testing.T) {
	sock := newFakeSocket("POST /missing HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	rec := NewRecord(sock, nil, false)
	ctx := &fakeContext{handlers: map[string]Handler{}, staticDir: map[string]rescache.Result{}}

	driveUntilFinished(t, rec, ctx)

	want := "HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\nContent-Length: " +
		"32\r\n\r\n" + handlerNotFoundText
	if sock.out.String() != want {
		t.Fatalf("got %q, want %q", sock.out.String(), want)
	}
}

func TestDrivePostMissingContentLength(t *testing.T) {
	sock := newFakeSocket("POST /x HTTP/1.1\r\nHost: x\r\n\r\n")
	rec := NewRecord(sock, nil, false)
	ctx := &fakeContext{handlers: map[string]Handler{}, staticDir: map[string]rescache.Result{}}

	driveUntilFinished(t, rec, ctx)

	want := "HTTP/1.1 400 Bad Request\r\n\r\n"
	if sock.out.String() != want {
		t.Fatalf("got %q, want %q", sock.out.String(), want)
	}
}

func TestDriveUnsupportedMethod(t *testing.T) {
	sock := newFakeSocket("PUT / HTTP/1.1\r\n\r\n")
	rec := NewRecord(sock, nil, false)
	ctx := &fakeContext{handlers: map[string]Handler{}, staticDir: map[string]rescache.Result{}}

	driveUntilFinished(t, rec, ctx)

	want := "HTTP/1.1 405 Method Not Allowed\r\n\r\n"
	if sock.out.String() != want {
		t.Fatalf("got %q, want %q", sock.out.String(), want)
	}
}

func TestDriveRegisteredGetHandler(t *testing.T) {
	sock := newFakeSocket("GET /statistics HTTP/1.1\r\n\r\n")
	rec := NewRecord(sock, nil, false)
	ctx := &fakeContext{
		handlers: map[string]Handler{
			"/statistics": {Get: func(httpx.GetRequest) httpx.Response {
				return httpx.NewResponse("200 OK", "text/plain", []byte("1"))
			}},
		},
		staticDir: map[string]rescache.Result{},
	}

	driveUntilFinished(t, rec, ctx)

	want := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 1\r\n\r\n1"
	if sock.out.String() != want {
		t.Fatalf("got %q, want %q", sock.out.String(), want)
	}
	if ctx.executed != 1 {
		t.Fatalf("executed = %d, want 1", ctx.executed)
	}
}

func TestDrivePostShortReadStaysInRead(t *testing.T) {
	sock := newFakeSocket("POST /echo HTTP/1.1\r\nContent-Length: 5\r\n\r\nab")
	rec := NewRecord(sock, nil, false)
	ctx := &fakeContext{handlers: map[string]Handler{}, staticDir: map[string]rescache.Result{}}

	Drive(rec, ctx)
	if rec.State != StateRead {
		t.Fatalf("state = %v, want READ after short body", rec.State)
	}

	// More body bytes arrive on a later readiness tick.
	sock.in.WriteString("cde")
	Drive(rec, ctx)
	if rec.State != StateExecuting {
		t.Fatalf("state = %v, want EXECUTING once full body arrived", rec.State)
	}
}
