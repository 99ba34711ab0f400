package conn

import (
	"errors"

	"github.com/youfantan/Nexus/internal/httpx"
)

const (
	notFoundHTML        = "<html><body><h1>404 Not Found</h1><p>Server: Nexus@BetaV1</p></body></html>"
	handlerNotFoundText = "Handler Not Found | Nexus@BetaV1"
)

// Drive executes exactly one tick of the connection state machine against
// rec, using ctx for handler/resource/counter lookups. It holds rec.Mu for
// its whole body: the server loop posts a drive for every readiness event
// without checking whether one is already mid-tick, so the lock is what
// serializes drives of the same connection.
//
// Every state transition emits one debug-level event through ctx
// (component=conn, state, sock); the terminal FINISHED transition instead
// emits an info-level summary carrying the connection's total bytes read
// and written.
func Drive(rec *Record, ctx Context) {
	rec.Mu.Lock()
	defer rec.Mu.Unlock()

	prev := rec.State
	fd := -1
	if rec.Socket != nil {
		fd = rec.Socket.Fd()
	}

	switch prev {
	case StateHandshake:
		driveHandshake(rec)
	case StateRead:
		driveRead(rec, ctx)
	case StateExecuting:
		driveExecuting(rec, ctx)
	case StateResponse:
		driveResponse(rec, ctx)
	case StateFinished:
		// Idempotent: nothing to do.
	}

	if rec.State == prev {
		return
	}

	if rec.State == StateFinished {
		ctx.LogInfo("connection finished", map[string]any{
			"state":         rec.State.String(),
			"sock":          fd,
			"bytes_read":    rec.bytesRead,
			"bytes_written": rec.bytesWritten,
		})
		return
	}

	ctx.LogDebug("state transition", map[string]any{
		"from":  prev.String(),
		"state": rec.State.String(),
		"sock":  fd,
	})
}

func driveHandshake(rec *Record) {
	ts, ok := rec.Socket.(*tlsSocket)
	if !ok {
		rec.State = StateRead
		return
	}
	err := ts.Handshake()
	switch {
	case err == nil:
		rec.State = StateRead
	case errors.Is(err, ErrWouldBlock):
		// Stay in HANDSHAKE; retry on next readiness tick.
	default:
		rec.cleanup()
		rec.State = StateFinished
	}
}

func driveRead(rec *Record, ctx Context) {
	var chunk [readChunk]byte
	for {
		n, err := rec.Socket.Read(chunk[:])
		if n > 0 {
			rec.bytesRead += int64(n)
			ctx.RecordBytesRead(n)
			if _, werr := rec.ReqPool.WriteNext(chunk[:n]); werr != nil {
				rec.cleanup()
				rec.State = StateFinished
				return
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, ErrWouldBlock) {
			break
		}
		rec.cleanup()
		rec.State = StateFinished
		return
	}

	if !rec.Parser.HeaderEnded() {
		return
	}

	switch rec.Parser.Method() {
	case httpx.MethodGET:
		rec.State = StateExecuting
		return
	case httpx.MethodPOST:
		n, ok, err := rec.Parser.ContentLength()
		if err != nil {
			emit400(rec)
			return
		}
		if !ok {
			emit400(rec)
			return
		}
		rec.contentLength = n
		rec.contentLengthOK = true
		have := int64(rec.ReqPool.Limit() - rec.Parser.HeaderEndOffset())
		if have >= n {
			rec.State = StateExecuting
		}
		// Otherwise remain in READ: the next readiness tick drains more
		// body bytes through this same branch.
		return
	default:
		emit405(rec)
	}
}

func emit400(rec *Record) {
	writeAndEnterResponse(rec, httpx.Response{Status: "400 Bad Request"})
}

func emit405(rec *Record) {
	writeAndEnterResponse(rec, httpx.Response{Status: "405 Method Not Allowed"})
}

func driveExecuting(rec *Record, ctx Context) {
	ctx.CountExecuted(rec.IsTLS)

	path := rec.Parser.RoutePath()
	handler, found := ctx.Lookup(path)

	switch rec.Parser.Method() {
	case httpx.MethodGET:
		if found && handler.Get != nil {
			resp := handler.Get(httpx.GetRequest{Headers: rec.Parser.Headers()})
			writeAndEnterResponse(rec, resp)
			return
		}
		res, err := ctx.Locate(path)
		if err != nil || !res.Valid {
			writeAndEnterResponse(rec, httpx.NewResponse("404 Not Found", "text/html", []byte(notFoundHTML)))
			return
		}
		writeAndEnterResponse(rec, httpx.NewResponse("200 OK", res.Mime, res.Bytes))

	case httpx.MethodPOST:
		if found && handler.Post != nil {
			body, err := readBody(rec)
			if err != nil {
				rec.cleanup()
				rec.State = StateFinished
				return
			}
			resp := handler.Post(httpx.PostRequest{Headers: rec.Parser.Headers(), Body: body})
			writeAndEnterResponse(rec, resp)
			return
		}
		// POST to an unregistered path is an unconditional 404: no static
		// fallback for writes.
		writeAndEnterResponse(rec, httpx.NewResponse("404 Not Found", "text/plain", []byte(handlerNotFoundText)))
	}
}

func readBody(rec *Record) ([]byte, error) {
	off := rec.Parser.HeaderEndOffset()
	holder, err := rec.ReqPool.ReadAt(off, int(rec.contentLength))
	if err != nil {
		return nil, err
	}
	return holder.Bytes(), nil
}

func writeAndEnterResponse(rec *Record, resp httpx.Response) {
	if err := httpx.WriteResponse(rec.RespPool, resp); err != nil {
		rec.cleanup()
		rec.State = StateFinished
		return
	}
	rec.RespPool.Rewind()
	rec.State = StateResponse
}

func driveResponse(rec *Record, ctx Context) {
	for {
		holder, rerr := rec.RespPool.ReadNext(readChunk)
		if rerr != nil {
			// ErrEOF: the whole response has drained onto the socket.
			// Anything else is a pool fault; either way the response is
			// complete as far as this connection is concerned.
			rec.cleanup()
			rec.State = StateFinished
			return
		}

		n, werr := rec.Socket.Write(holder.Bytes())
		if n > 0 {
			rec.bytesWritten += int64(n)
			ctx.RecordBytesWritten(n)
		}
		switch {
		case werr == nil:
			if rec.IsTLS {
				// TLS write completion is one-shot: any successful write
				// ends the connection, precluding keep-alive.
				rec.cleanup()
				rec.State = StateFinished
				return
			}
		case errors.Is(werr, ErrWouldBlock):
			return
		default:
			rec.cleanup()
			rec.State = StateFinished
			return
		}
	}
}
