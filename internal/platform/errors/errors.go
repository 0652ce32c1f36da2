package errors

import stderrors "errors"

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Message safe to return to callers
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first domain error in err's chain, or
// CodeUnknown when there is none.
func CodeOf(err error) Code {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// MessageOf returns the caller-facing message of the first domain error in
// err's chain. Errors outside the taxonomy yield a generic message so internal
// details never leak to clients.
func MessageOf(err error) string {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// HasCode reports whether err carries a domain error with the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
