// Package mcmerr implements the dataplane engine's flat error-code
// taxonomy: argument errors, configuration errors, lifecycle errors,
// transient errors, and the reserved "not implemented" code. Every
// code crossing the public SDK boundary is one of these constants.
package mcmerr

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// Code is a stable, cross-language error code. Values start at 1000 so
// they never collide with a caller's own error-code space.
type Code int

const (
	BadClientPtr Code = 1000 + iota
	BadConnPtr
	BadConfigPtr
	BadBufPtr
	BadBufLen
	ClientConfigInval
	MaxConn
	FoundAllocated
	ConnFailed
	ConnConfigInval
	ConnConfigIncompat
	ConnClosed
	Timeout
	NotImplemented
)

var names = map[Code]string{
	BadClientPtr:       "BAD_CLIENT_PTR",
	BadConnPtr:         "BAD_CONN_PTR",
	BadConfigPtr:       "BAD_CONFIG_PTR",
	BadBufPtr:          "BAD_BUF_PTR",
	BadBufLen:          "BAD_BUF_LEN",
	ClientConfigInval:  "CLIENT_CONFIG_INVAL",
	MaxConn:            "MAX_CONN",
	FoundAllocated:     "FOUND_ALLOCATED",
	ConnFailed:         "CONN_FAILED",
	ConnConfigInval:    "CONN_CONFIG_INVAL",
	ConnConfigIncompat: "CONN_CONFIG_INCOMPAT",
	ConnClosed:         "CONN_CLOSED",
	Timeout:            "TIMEOUT",
	NotImplemented:     "NOT_IMPLEMENTED",
}

// String implements fmt.Stringer, returning the canonical label, e.g.
// "CONN_CONFIG_INCOMPAT". Unknown codes are rendered numerically.
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN_CODE(%d)", int(c))
}

// Err2Str mirrors the public err2str(code) entry point of §6: a
// human-readable label for any code, known or not.
func Err2Str(c Code) string {
	return c.String()
}

// Error wraps a Code with an operation label and an optional
// underlying cause, following the Op/Err wrapping idiom used
// throughout the retrieval pack's own error types.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error for the given code and operation, optionally
// wrapping a cause.
func New(code Code, op string, cause error) error {
	return &Error{Code: code, Op: op, Err: cause}
}

// CodeOf extracts the Code carried by err, if any, and whether one was
// found. Context deadline/cancellation errors are mapped to Timeout and
// ConnClosed respectively so callers don't need to special-case stdlib
// context errors at every call site.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return 0, false
	}
	var me *Error
	if stdErrors.As(err, &me) {
		return me.Code, true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return Timeout, true
	}
	if stdErrors.Is(err, context.Canceled) {
		return ConnClosed, true
	}
	return 0, false
}

// Is reports whether err carries the given code, directly or wrapped.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
