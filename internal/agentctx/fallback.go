package agentctx

import "sync"

// The current-value pattern above is insufficient for worker threads
// that third-party LLM client libraries spawn without propagating a
// context.Context (spec.md §9: "current-value for this logical
// execution, with a guarded process-wide fallback for unparented
// threads"). This cell is that fallback: a single mutable value guarded
// by a lock, opt-in only.
//
// Decision (spec.md §9 open question (a) analogue for C2): the fallback
// defaults to disabled. A process running more than one session
// concurrently (tests, or a future in-process multi-session mode) would
// have sibling runs silently read each other's fallback value if it were
// on by default; callers that know only one run is ever in flight on a
// goroutine without a propagated context may opt in explicitly.
var (
	fallbackMu      sync.RWMutex
	fallbackCtx     *Context
	fallbackEnabled bool
)

// EnableFallback installs ctx as the process-wide fallback value.
func EnableFallback(ctx *Context) {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	fallbackCtx = ctx
	fallbackEnabled = true
}

// DisableFallback clears the process-wide fallback value.
func DisableFallback() {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	fallbackCtx = nil
	fallbackEnabled = false
}

func fallbackGet() (*Context, bool) {
	fallbackMu.RLock()
	defer fallbackMu.RUnlock()
	if !fallbackEnabled || fallbackCtx == nil {
		return nil, false
	}
	return fallbackCtx, true
}
