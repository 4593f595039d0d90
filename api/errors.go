// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-mempool.

package api

import "fmt"

// Recoverable errors, returned as ordinary values.
var (
	ErrInvalidCapacity    = fmt.Errorf("invalid pool capacity")
	ErrInvalidSize        = fmt.Errorf("invalid allocation size")
	ErrPoolExhausted      = fmt.Errorf("pool exhausted")
	ErrPoolClosed         = fmt.Errorf("pool is closed")
	ErrHandlesOutstanding = fmt.Errorf("outstanding handles prevent teardown")
	ErrDetached           = fmt.Errorf("handle detached from closed pool")
)

// Fatal misuse errors, used as panic values. Masking these would reintroduce
// the double-free/use-after-free bug classes the pool exists to eliminate.
var (
	ErrDoubleRelease   = fmt.Errorf("slot released twice")
	ErrHandleReleased  = fmt.Errorf("handle used after release")
	ErrIndexOutOfRange = fmt.Errorf("handle element index out of range")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidCapacity
	ErrCodeInvalidSize
	ErrCodeExhausted
	ErrCodeClosed
	ErrCodeOutstanding
	ErrCodeDetached
	ErrCodeDoubleRelease
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Unwrap maps structured codes back to their sentinels so callers can use
// errors.Is on either form.
func (e *Error) Unwrap() error {
	switch e.Code {
	case ErrCodeInvalidCapacity:
		return ErrInvalidCapacity
	case ErrCodeInvalidSize:
		return ErrInvalidSize
	case ErrCodeExhausted:
		return ErrPoolExhausted
	case ErrCodeClosed:
		return ErrPoolClosed
	case ErrCodeOutstanding:
		return ErrHandlesOutstanding
	case ErrCodeDetached:
		return ErrDetached
	case ErrCodeDoubleRelease:
		return ErrDoubleRelease
	default:
		return nil
	}
}
