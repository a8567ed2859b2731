package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindStorage        ErrorKind = "storage"
	KindNotFound       ErrorKind = "not_found"
	KindConsistencyGap ErrorKind = "consistency_gap"
)

// Error is the error type surfaced to callers of the engine: a message plus
// optional detail, classified by Kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so callers can test
// errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrStorage        = &Error{Kind: KindStorage}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConsistencyGap = &Error{Kind: KindConsistencyGap}
)

var (
	ErrSizeExceeded = errors.New("size exceeded")
	ErrInvalidType  = errors.New("invalid type")
)

func NewValidationError(message, detail string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Detail: detail, Err: err}
}

func NewStorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found", Detail: id}
}

func NewConsistencyGap(gap ConsistencyGap) *Error {
	return &Error{
		Kind:    KindConsistencyGap,
		Message: gap.Reason,
		Detail:  fmt.Sprintf("audit %s: %s", gap.AuditID, gap.Path),
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
