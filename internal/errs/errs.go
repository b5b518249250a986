// Package errs implements the error taxonomy of the Agent Execution
// Core: InvariantError, PersistenceError, ToolError, ModelError,
// TimeoutError, AuthError and TransportError. Each wraps an underlying
// error so errors.Is/errors.As compose normally with stdlib wrapping.
package errs

import "fmt"

// Kind classifies a core error for propagation-policy decisions (see
// spec.md §7): which errors abort a run, which are retried, and which
// never touch the Store.
type Kind string

const (
	KindInvariant   Kind = "invariant"
	KindPersistence Kind = "persistence"
	KindTool        Kind = "tool"
	KindModel       Kind = "model"
	KindTimeout     Kind = "timeout"
	KindAuth        Kind = "auth"
	KindTransport   Kind = "transport"
)

// Error is a typed, wrapped core error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invariant wraps a programmer-error: the run aborts, emitting
// agent_error then finish{failed}.
func Invariant(op string, err error) error { return newErr(KindInvariant, op, err) }

// Persistence wraps a store I/O failure: retried with bounded
// back-off by the caller, then finish{failed}.
func Persistence(op string, err error) error { return newErr(KindPersistence, op, err) }

// Tool wraps a tool execution failure: surfaced to the LLM as a tool
// message with an error marker; never fails the run.
func Tool(op string, err error) error { return newErr(KindTool, op, err) }

// Model wraps an LLM provider failure: retried bounded, then
// agent_error + finish{failed} on exhaustion.
func Model(op string, err error) error { return newErr(KindModel, op, err) }

// Timeout wraps a deadline exceeded: surfaced as finish{timeout}.
func Timeout(op string, err error) error { return newErr(KindTimeout, op, err) }

// Auth wraps an HTTP-layer authentication/authorization failure: 401/403,
// never enters the Store.
func Auth(op string, err error) error { return newErr(KindAuth, op, err) }

// Transport wraps an SSE client disconnect: the task continues, the
// stream can be resumed.
func Transport(op string, err error) error { return newErr(KindTransport, op, err) }

// Is reports whether err (or any error it wraps) is of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
