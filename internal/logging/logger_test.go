package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogBelowMinIsDropped(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Info("should not appear", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestLogIncludesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug).With("server")
	l.Info("accepted", map[string]any{"peer": "127.0.0.1:1234"})

	out := buf.String()
	if !strings.Contains(out, `"component":"server"`) {
		t.Fatalf("missing component: %s", out)
	}
	if !strings.Contains(out, `"msg":"accepted"`) {
		t.Fatalf("missing msg: %s", out)
	}
	if !strings.Contains(out, `"peer":"127.0.0.1:1234"`) {
		t.Fatalf("missing field: %s", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if ParseLevel("bogus") != LevelInfo {
		t.Fatal("expected unrecognized level to default to info")
	}
	if ParseLevel("debug") != LevelDebug {
		t.Fatal("expected debug to parse")
	}
}
