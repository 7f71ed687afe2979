// Package simerr provides the structured error taxonomy the core packages
// that return errors use: object, event, buffer and scheduler.
package simerr

import "fmt"

// Code is the high-level category of a core error.
type Code string

const (
	CodeInvalidArgument    Code = "invalid argument"
	CodeBadAggregation     Code = "bad aggregation"
	CodeNotInitialised     Code = "not initialised"
	CodeAlreadyInitialised Code = "already initialised"
	CodeNotRegistered      Code = "not registered"
	CodeAlreadyRegistered  Code = "already registered"
	CodeNoSuchInterface    Code = "no such interface"
	CodeOutOfMemory        Code = "out of memory"
	CodeConnectionLimit    Code = "connection limit"
)

// Error is the structured error type returned by every core operation that
// can fail. Op names the failing operation (e.g. "Registry.Create"), Code
// is the high-level category callers should branch on, Msg is a
// human-readable detail, and Inner optionally wraps a causing error.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is(err, simerr.New(op, code, msg)): any *Error
// target with the same Code matches, whatever its Op and Msg. A bare
// Code is not an error value and cannot be a target; use HasCode to
// check for a code directly.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// New constructs an Error for the given operation, code and message.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Newf is New with a formatted message.
func Newf(op string, code Code, format string, args ...any) *Error {
	return &Error{Op: op, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches op/code context to an inner error without losing it.
// When inner is already an *Error, its own Code and Msg are kept and
// code is ignored.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ie.Code, Msg: ie.Msg, Inner: ie}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// HasCode reports whether err is a *Error (directly or wrapped) carrying code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Code == code {
				return true
			}
			err = e.Inner
			continue
		}
		break
	}
	return false
}
