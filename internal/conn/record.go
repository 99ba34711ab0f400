package conn

import (
	"net"
	"sync"
	"time"

	"github.com/youfantan/Nexus/internal/bufpool"
	"github.com/youfantan/Nexus/internal/httpx"
)

// initialPoolCapacity is the starting size for a connection's request and
// response pools; both carry AutoExpand so a larger request or response
// simply grows the backing buffer.
const initialPoolCapacity = 4096

// readChunk is the size of one READ-state socket drain / RESPONSE-state
// socket write, per tick.
const readChunk = 1024

// Record is the connection record (C4's "connection record" entity): the
// state a server loop's connection table keys by socket handle and a worker
// drives one tick at a time. At most one worker may be inside Drive for a
// given Record at once; Mu enforces that (the server loop can post a second
// drive while one is still pending, and Mu makes the two run one after the
// other).
type Record struct {
	Mu sync.Mutex

	Socket    Socket
	Peer      net.Addr
	CreatedAt int64 // unix milliseconds
	IsTLS     bool

	ReqPool  *bufpool.Pool
	RespPool *bufpool.Pool
	Parser   *httpx.Parser

	State State

	contentLength   int64
	contentLengthOK bool

	bytesRead    int64
	bytesWritten int64
}

// NewRecord builds a Record for a freshly accepted socket. TLS connections
// start in StateHandshake; cleartext connections start in StateRead.
func NewRecord(sock Socket, peer net.Addr, isTLS bool) *Record {
	reqPool := bufpool.New(initialPoolCapacity)
	reqPool.SetSettings(bufpool.AutoExpand)
	respPool := bufpool.New(initialPoolCapacity)
	respPool.SetSettings(bufpool.AutoExpand)

	state := StateRead
	if isTLS {
		state = StateHandshake
	}

	return &Record{
		Socket:    sock,
		Peer:      peer,
		CreatedAt: time.Now().UnixMilli(),
		IsTLS:     isTLS,
		ReqPool:   reqPool,
		RespPool:  respPool,
		Parser:    httpx.NewParser(reqPool),
		State:     state,
	}
}

// ContentLength returns the declared POST Content-Length once the READ
// state has parsed it, and whether it was present at all.
func (r *Record) ContentLength() (value int64, ok bool) {
	return r.contentLength, r.contentLengthOK
}

// Expired reports whether the connection has outlived the 10-second
// wall-clock budget the server-loop sweep enforces.
func (r *Record) Expired(nowMs, timeoutMs int64) bool {
	return nowMs-r.CreatedAt > timeoutMs
}

// Finished reports whether the connection has reached terminal state.
func (r *Record) Finished() bool {
	return r.State == StateFinished
}

// cleanup performs the idempotent FINISHED-state teardown: close the
// socket, leave the record safe for repeated calls.
func (r *Record) cleanup() {
	if r.Socket == nil {
		return
	}
	_ = r.Socket.Close()
	r.Socket = nil
}
