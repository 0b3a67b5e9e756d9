// Package errors defines the typed error every layer returns. The Code
// decides the HTTP status and public message; the message and cause stay
// server-side unless the code allows details.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeStateConflict    Code = "STATE_CONFLICT"
	CodeInvalidTurn      Code = "INVALID_TURN"
	CodeExpired          Code = "NEGOTIATION_EXPIRED"
	CodeAlreadyTerminal  Code = "ALREADY_TERMINAL"
	CodeAlreadyConverted Code = "ALREADY_CONVERTED"
	CodeUpstream         Code = "UPSTREAM_FAILURE"
	CodeIdempotency      Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit        Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeDependency       Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type metaOption func(*Metadata)

func retryable(m *Metadata) { m.Retryable = true }
func detailed(m *Metadata)  { m.DetailsAllowed = true }

func meta(status int, public string, opts ...metaOption) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:       meta(http.StatusBadRequest, "validation failed", detailed),
	CodeUnauthorized:     meta(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:        meta(http.StatusForbidden, "access denied"),
	CodeNotFound:         meta(http.StatusNotFound, "resource not found"),
	CodeConflict:         meta(http.StatusConflict, "conflict detected", detailed),
	CodeStateConflict:    meta(http.StatusUnprocessableEntity, "state transition disallowed", detailed),
	CodeInvalidTurn:      meta(http.StatusConflict, "waiting for the other party to respond", detailed),
	CodeExpired:          meta(http.StatusGone, "negotiation has expired", detailed),
	CodeAlreadyTerminal:  meta(http.StatusConflict, "negotiation is no longer active", detailed),
	CodeAlreadyConverted: meta(http.StatusConflict, "negotiation already checked out", detailed),
	CodeUpstream:         meta(http.StatusBadGateway, "upstream service failed", retryable, detailed),
	CodeIdempotency:      meta(http.StatusConflict, "idempotency key reused", detailed),
	CodeRateLimit:        meta(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:         meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:       meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, detailed),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err as the cause. A nil err degrades to New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error with the same code, so stdlib errors.Is works
// against a bare New(code, "") target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the outermost code carried by err, or CodeInternal for
// untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	return err != nil && stdErrors.Is(err, &Error{code: code})
}
