package engine

import "fmt"

// Code classifies an Error the way the teacher's storage.Error does
// (open-policy-agent-opa/v1/storage): a small enum plus a free-form
// message, so callers can switch on Code without parsing strings.
type Code string

const (
	// CodeStructural mirrors eval's structural Fault (spec.md §7 kind 1).
	CodeStructural Code = "structural"
	// CodeIO mirrors eval's io Fault (spec.md §7 kind 3).
	CodeIO Code = "io"
	// CodeFunctor mirrors eval's functor Fault (spec.md §7 kind 4).
	CodeFunctor Code = "functor"
	// CodeConfig reports a misconfigured Engine (missing main
	// subroutine, duplicate relation name) — never raised by eval, only
	// by New.
	CodeConfig Code = "config"
)

// Error is what ExecuteMain and New return for every fatal condition
// spec.md §7 describes. A *Fault recovered from eval is translated to
// one of these rather than re-panicking, so callers never need to know
// eval exists.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine: %s error: %s", e.Code, e.Message)
}

func newConfigError(format string, args ...any) *Error {
	return &Error{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}
