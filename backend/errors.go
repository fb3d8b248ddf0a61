package backend

import (
	"errors"
	"fmt"
)

// Kind classifies backend failures.
type Kind string

const (
	KindAuth       Kind = "AuthError"
	KindQuery      Kind = "QueryError"
	KindUpload     Kind = "UploadError"
	KindProcedure  Kind = "ProcedureError"
	KindValidation Kind = "ValidationError"
)

// ErrNotFound is wrapped by query errors for missing rows.
var ErrNotFound = errors.New("record not found")

// Error is a classified backend error. Error() is the user-facing message.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// NewError builds a classified error. msg falls back to err's text when empty.
func NewError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Validationf reports bad input caught before any backend work.
func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail includes the operation and cause, for logs.
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Error(), e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Error())
}

// KindOf returns the kind of a backend error, or "" for anything else.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsNotFound reports whether err is a missing-row query error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
