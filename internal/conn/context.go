package conn

import (
	"github.com/youfantan/Nexus/internal/httpx"
	"github.com/youfantan/Nexus/internal/rescache"
)

// Handler is the {GET callable, POST callable} pair C8 registers per path.
// Either field may be nil, meaning that method isn't registered for the
// path even though the other is.
type Handler struct {
	Get  func(httpx.GetRequest) httpx.Response
	Post func(httpx.PostRequest) httpx.Response
}

// Context is everything Drive needs from the server loop beyond the
// connection record itself: the handler table, the static resource cache,
// the executed-request counters, the byte counters, and the structured
// logger. The server package implements this; conn only depends on the
// interface, avoiding an import cycle.
type Context interface {
	Lookup(path string) (Handler, bool)
	Locate(path string) (rescache.Result, error)
	CountExecuted(isTLS bool)

	// RecordBytesRead/RecordBytesWritten feed the process-wide byte
	// counters every successful socket Read/Write contributes to.
	RecordBytesRead(n int)
	RecordBytesWritten(n int)

	// LogDebug/LogInfo emit one structured log event through C10. Drive
	// calls LogDebug on every state transition and LogInfo once, with the
	// connection's final byte counts, on the terminal FINISHED transition.
	LogDebug(msg string, fields map[string]any)
	LogInfo(msg string, fields map[string]any)
}
