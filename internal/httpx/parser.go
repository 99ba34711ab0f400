package httpx

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/youfantan/Nexus/internal/bufpool"
)

var crlfcrlf = []byte("\r\n\r\n")

// ErrInvalidContentLength is returned by ContentLength when the
// Content-Length header is present but not a valid non-negative integer.
var ErrInvalidContentLength = errors.New("httpx: invalid Content-Length")

// Parser incrementally parses the request-line and header block at the
// front of a byte pool. It caches its result the first time the full header
// block is seen (terminated by CRLF CRLF); further calls to HeaderEnded are
// then idempotent and never re-parse, per the pool's read-many/write-once
// discipline during a single connection's READ phase.
type Parser struct {
	pool *bufpool.Pool

	cached        bool
	method        Method
	path          string // raw request-target, including any query string
	routePath     string // path with the query string, if any, stripped
	headers       Header
	headerEndOff  int
}

// NewParser constructs a Parser reading from pool. pool is referenced, not
// copied; the parser observes whatever bytes have been written to it by the
// time HeaderEnded is called.
func NewParser(pool *bufpool.Pool) *Parser {
	return &Parser{pool: pool}
}

// HeaderEnded reports whether a complete request-line + header block is
// present in the pool. Once it returns true, the parsed method, path, and
// headers are fixed for the lifetime of this Parser. Malformed input for
// which no CRLF CRLF terminator has yet appeared returns false without
// mutating any parser state ("not yet ended").
func (p *Parser) HeaderEnded() bool {
	if p.cached {
		return true
	}

	limit := p.pool.Limit()
	if limit == 0 {
		return false
	}
	h, err := p.pool.ReadAt(0, limit)
	if err != nil {
		return false
	}
	buf := h.Bytes()

	idx := bytes.Index(buf, crlfcrlf)
	if idx == -1 {
		return false
	}
	headerEnd := idx + len(crlfcrlf)

	p.parse(buf[:headerEnd])
	p.headerEndOff = headerEnd
	p.cached = true
	return true
}

// parse fills in method/path/headers from a complete request-line+headers
// block. It never fails: a malformed request line yields MethodUnsupported
// and an empty path, and malformed header lines are simply skipped, so the
// state machine can still frame a response (400/405) instead of hanging.
func (p *Parser) parse(block []byte) {
	lineEnd := bytes.Index(block, []byte("\r\n"))
	if lineEnd == -1 {
		p.method = MethodUnsupported
		return
	}
	line := block[:lineEnd]
	rest := block[lineEnd+2:]

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 == -1 {
		p.method = MethodUnsupported
		return
	}
	p.method = parseMethod(string(line[:sp1]))

	uriAndProto := line[sp1+1:]
	sp2 := bytes.IndexByte(uriAndProto, ' ')
	var uri []byte
	if sp2 == -1 {
		uri = uriAndProto
	} else {
		uri = uriAndProto[:sp2]
	}
	p.path = string(uri)
	if q := bytes.IndexByte(uri, '?'); q != -1 {
		p.routePath = string(uri[:q])
	} else {
		p.routePath = p.path
	}

	p.parseHeaders(rest)
}

func (p *Parser) parseHeaders(buf []byte) {
	pos := 0
	for pos < len(buf) {
		if buf[pos] == '\r' {
			break // trailing CRLF before the CRLFCRLF terminator
		}
		lineEnd := bytes.Index(buf[pos:], []byte("\r\n"))
		if lineEnd == -1 {
			break
		}
		lineEnd += pos
		line := buf[pos:lineEnd]
		pos = lineEnd + 2

		sep := bytes.Index(line, []byte(": "))
		if sep == -1 {
			continue
		}
		name := string(line[:sep])
		value := string(line[sep+2:])
		p.headers.Add(name, value)
	}
}

// Method returns the parsed method, valid only once HeaderEnded is true.
func (p *Parser) Method() Method { return p.method }

// Path returns the raw request-target, including any query string.
func (p *Parser) Path() string { return p.path }

// RoutePath returns the request-target with any query string stripped; this
// is what the handler table and the static resource resolver key on.
func (p *Parser) RoutePath() string { return p.routePath }

// Headers returns the parsed header collection.
func (p *Parser) Headers() *Header { return &p.headers }

// HeaderEndOffset returns the byte index in the pool at which the body
// begins (the first byte past the terminating CRLF CRLF).
func (p *Parser) HeaderEndOffset() int { return p.headerEndOff }

// ContentLength parses the Content-Length header, if present. ok is false
// if the header is absent; err is non-nil if present but unparseable.
func (p *Parser) ContentLength() (value int64, ok bool, err error) {
	if !p.headers.Has("Content-Length") {
		return 0, false, nil
	}
	raw := p.headers.Get("Content-Length")
	n, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil || n < 0 {
		return 0, true, ErrInvalidContentLength
	}
	return n, true, nil
}
