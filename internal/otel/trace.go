package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is read on the UI goroutine and written by tests.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("OPSTREAM_TRACE") != "")
}

// TraceEnabled reports whether OPSTREAM_TRACE is set. When it is, the UI
// emits one debug event per handled message.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
