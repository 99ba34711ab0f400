package httpx

import (
	"testing"

	"github.com/youfantan/Nexus/internal/bufpool"
)

func TestParserPartialThenComplete(t *testing.T) {
	pool := bufpool.New(256)
	pool.SetSettings(bufpool.AutoExpand)
	p := NewParser(pool)

	if _, err := pool.WriteNext([]byte("GET /index.html?x=1 HTTP/1.1\r\nHost: exa")); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if p.HeaderEnded() {
		t.Fatal("HeaderEnded true on partial headers")
	}

	if _, err := pool.WriteNext([]byte("mple.com\r\n\r\n")); err != nil {
		t.Fatalf("write rest: %v", err)
	}
	if !p.HeaderEnded() {
		t.Fatal("HeaderEnded false on complete headers")
	}
	if p.Method() != MethodGET {
		t.Fatalf("method = %v, want GET", p.Method())
	}
	if p.Path() != "/index.html?x=1" {
		t.Fatalf("path = %q", p.Path())
	}
	if p.RoutePath() != "/index.html" {
		t.Fatalf("routepath = %q", p.RoutePath())
	}
	if got := p.Headers().Get("Host"); got != "example.com" {
		t.Fatalf("host header = %q", got)
	}
}

func TestParserIdempotentAfterCached(t *testing.T) {
	pool := bufpool.New(256)
	pool.SetSettings(bufpool.AutoExpand)
	p := NewParser(pool)
	pool.WriteNext([]byte("GET / HTTP/1.1\r\n\r\n"))

	if !p.HeaderEnded() {
		t.Fatal("expected ended")
	}
	method1, path1 := p.Method(), p.Path()

	// Mutate the pool further; the parser must not re-parse.
	pool.WriteNext([]byte("garbage"))

	if !p.HeaderEnded() {
		t.Fatal("expected still ended")
	}
	if p.Method() != method1 || p.Path() != path1 {
		t.Fatal("parser re-parsed after caching")
	}
}

func TestParserContentLength(t *testing.T) {
	pool := bufpool.New(256)
	pool.SetSettings(bufpool.AutoExpand)
	p := NewParser(pool)
	pool.WriteNext([]byte("POST /x HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc"))
	if !p.HeaderEnded() {
		t.Fatal("expected ended")
	}
	n, ok, err := p.ContentLength()
	if err != nil || !ok || n != 3 {
		t.Fatalf("n=%d ok=%v err=%v", n, ok, err)
	}
}

func TestParserNoTerminatorNotEnded(t *testing.T) {
	pool := bufpool.New(256)
	pool.SetSettings(bufpool.AutoExpand)
	p := NewParser(pool)
	pool.WriteNext([]byte("GET / HTTP/1.1\r\nHost: x"))
	if p.HeaderEnded() {
		t.Fatal("expected not ended without CRLFCRLF")
	}
}
