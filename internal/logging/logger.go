// Package logging provides the structured JSON line logger used across the
// server package: accept/sweep events, connection state transitions,
// startup/shutdown notices, and fatal construction failures all flow
// through here.
//
// Style grounded on MiraiMindz-watt/bolt/middleware/logger.go's structured
// JSON access log (a plain struct encoded one line per entry via an
// io.Writer-backed encoder); this carries the same shape for the whole
// server rather than just the HTTP access log. goccy/go-json substitutes
// for encoding/json as the encoder since it's already in the dependency
// set the rest of the server draws on, not a new library introduced just
// for this package.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Level is a log severity. Levels below the logger's configured minimum are
// dropped before encoding.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel maps a config string to a Level, defaulting to LevelInfo for
// anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// entry is the wire shape of one log line.
type entry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger writes one JSON object per line to an underlying io.Writer. It is
// safe for concurrent use by the accept loops and worker-pool goroutines
// alike.
type Logger struct {
	mu        sync.Mutex
	w         io.Writer
	min       Level
	component string
}

// New builds a Logger writing to w at or above min severity.
func New(w io.Writer, min Level) *Logger {
	return &Logger{w: w, min: min}
}

// NewStdout is the common case: a Logger writing to os.Stdout.
func NewStdout(min Level) *Logger {
	return New(os.Stdout, min)
}

// With returns a Logger that tags every entry with the given component
// name, sharing the same output and level floor.
func (l *Logger) With(component string) *Logger {
	return &Logger{w: l.w, min: l.min, component: component}
}

func (l *Logger) log(level Level, msg string, fields map[string]any) {
	if level < l.min {
		return
	}
	e := entry{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Component: l.component,
		Message:   msg,
		Fields:    fields,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	enc := json.NewEncoder(l.w)
	_ = enc.Encode(e)
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(LevelError, msg, fields) }

// Fatal logs at LevelFatal unconditionally (bypassing the min-level floor,
// since a fatal is by definition worth recording) then exits the process
// with status 1. Used for bind/listen and TLS context construction
// failures per the error-handling design's "fatal: log and exit" entries.
func (l *Logger) Fatal(msg string, fields map[string]any) {
	e := entry{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Level:     LevelFatal.String(),
		Component: l.component,
		Message:   msg,
		Fields:    fields,
	}
	l.mu.Lock()
	enc := json.NewEncoder(l.w)
	_ = enc.Encode(e)
	l.mu.Unlock()
	os.Exit(1)
}
