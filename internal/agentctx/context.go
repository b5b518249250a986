// Package agentctx binds {session, workspace, stores} into a single
// value tool functions and middleware read via a scoped lookup, per
// spec.md §4.2.
package agentctx

import (
	"context"
	"fmt"

	"github.com/agentexec/core/internal/store"
)

type contextKey struct{}

// Context is the value bound into a context.Context for the duration of
// one run.
type Context struct {
	SessionID     string
	WorkspaceID   string
	WorkspacePath string
	Events        store.EventStore
	Messages      store.MessageStore
	TraceID       string
	Tags          map[string]string
}

// With returns a copy of parent carrying ctx as the current value.
func With(parent context.Context, ctx *Context) context.Context {
	if ctx == nil {
		return parent
	}
	return context.WithValue(parent, contextKey{}, ctx)
}

// Current returns the Context bound to ctx, or an error if none is set.
// Falls back to the guarded process-wide cell (see fallback.go) only if
// a caller has opted in via EnableFallback.
func Current(ctx context.Context) (*Context, error) {
	if v, ok := ctx.Value(contextKey{}).(*Context); ok && v != nil {
		return v, nil
	}
	if v, ok := fallbackGet(); ok {
		return v, nil
	}
	return nil, fmt.Errorf("agentctx: not set")
}

// WithContext runs fn with ctx bound as the current value for the
// duration of the call, restoring the parent's value on return. Scopes
// in sibling goroutines never observe each other's context because each
// carries its own context.Context value rather than mutating shared
// state.
func WithContext(parent context.Context, ctx *Context, fn func(context.Context) error) error {
	return fn(With(parent, ctx))
}
