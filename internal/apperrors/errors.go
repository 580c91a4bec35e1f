package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified application error. Kind drives the HTTP status and
// whether a reconciliation worker should consider the failure transient.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

type Kind int

const (
	KindValidation Kind = iota
	KindDuplicateContent
	KindNotFound
	KindPayloadTooLarge
	KindConfiguration
	KindExternalService
	KindDatabase
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error        { return &Error{Kind: KindValidation, Message: msg} }
func DuplicateContent(msg string) error  { return &Error{Kind: KindDuplicateContent, Message: msg} }
func NotFound(msg string) error          { return &Error{Kind: KindNotFound, Message: msg} }
func PayloadTooLarge(msg string) error   { return &Error{Kind: KindPayloadTooLarge, Message: msg} }
func Configuration(msg string) error     { return &Error{Kind: KindConfiguration, Message: msg} }
func Database(msg string, err error) error {
	return &Error{Kind: KindDatabase, Message: msg, Err: err}
}

// ExternalService wraps a failure from the object store, index service or
// converter. retryable marks errors the caller may expect a later worker pass
// to resolve (rate limits, timeouts); terminal errors are persisted verbatim.
func ExternalService(msg string, err error, retryable bool) error {
	return &Error{Kind: KindExternalService, Message: msg, Err: &retryableErr{err: err, retryable: retryable}}
}

type retryableErr struct {
	err       error
	retryable bool
}

func (r *retryableErr) Error() string {
	if r.err == nil {
		return "external service error"
	}
	return r.err.Error()
}

func (r *retryableErr) Unwrap() error { return r.err }

// IsRetryable reports whether err carries the transient marker.
func IsRetryable(err error) bool {
	var r *retryableErr
	return errors.As(err, &r) && r.retryable
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Status maps an error to the HTTP status code the API should return.
// Unclassified errors degrade to 500 without exposing internals.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation, KindConfiguration:
		return http.StatusBadRequest
	case KindDuplicateContent:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe error text: the classified message
// without its wrapped cause. Database and unclassified errors get a generic
// message so internals never reach a client.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindDatabase {
		return "internal server error"
	}
	return e.Message
}
