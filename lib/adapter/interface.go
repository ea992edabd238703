package adapter

import "fmt"

// --------------------------------------------------------------------------
// External Status
// --------------------------------------------------------------------------

// Status is the only outcome the benchmark harness observes per operation.
// Every internal failure cause is collapsed into StatusError; the specific
// cause is logged with its return code before collapsing.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Internal Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Operation executed successfully.
	RetCPoolUninitialized                // 1: The pool singleton was never installed (bootstrap failed or never ran).
	RetCNotFound                         // 2: The key has no dictionary entry.
	RetCConnection                       // 3: A session could not be acquired.
	RetCInvalidOperation                 // 4: The operation was called with arguments outside its contract.
	RetCEngineError                      // 5: The storage engine reported a fault.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCPoolUninitialized:
		return "PoolUninitialized"
	case RetCNotFound:
		return "NotFound"
	case RetCConnection:
		return "Connection"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCEngineError:
		return "EngineError"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a classified adapter error. It carries a return code for
// diagnostics and optionally wraps the underlying cause.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message
	Cause error   // The underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("AdapterError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("AdapterError (code %s): %s", e.Code, e.Msg)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// WrapError creates a new Error wrapping an underlying cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}
