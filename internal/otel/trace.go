package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates per-keypress events, which are too chatty for normal runs.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("STAFFPROOF_TRACE") != "")
}

// TraceEnabled reports whether key tracing is on. STAFFPROOF_TRACE turns it
// on at startup.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTrace turns per-keypress events on or off.
func SetTrace(v bool) {
	traceEnabled.Store(v)
}
