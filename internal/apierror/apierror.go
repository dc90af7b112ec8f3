// Package apierror provides the typed error taxonomy shared by every engine
// operation, plus the canonical JSON envelope used when an error reaches HTTP.
// Callers branch on Kind; Code carries the specific business reason.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the calling layer.
type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindInvalidState Kind = "InvalidState"
	KindValidation   Kind = "ValidationError"
	KindConflict     Kind = "Conflict"
	KindInternal     Kind = "Internal"
)

// Business reason codes.
const (
	CodeRegisterNotFound      = "RegisterNotFound"
	CodeTransactionNotFound   = "TransactionNotFound"
	CodeProductNotFound       = "ProductNotFound"
	CodeComboNotFound         = "ComboNotFound"
	CodePaymentMethodNotFound = "PaymentMethodNotFound"
	CodeClosureNotFound       = "ClosureNotFound"
	CodeOperatorNotFound      = "OperatorNotFound"
	CodeActivityNotFound      = "ActivityNotFound"

	CodeAlreadyOpen  = "AlreadyOpen"
	CodeNotOpen      = "NotOpen"
	CodeInvalidState = "InvalidState"

	CodeInvalidRequest      = "InvalidRequest"
	CodeInsufficientPayment = "InsufficientPayment"
	CodeMissingReference    = "MissingReference"
	CodeInsufficientStock   = "InsufficientStock"
	CodeInactiveProduct     = "InactiveProduct"

	CodeHasTransactions         = "HasTransactions"
	CodeDuplicateRegisterNumber = "DuplicateRegisterNumber"

	CodeInternal = "InternalError"
)

// Error is the error type returned by every service operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Details carries render-ready context (entity id, requested vs available, fields).
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s(%s): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail adds a key-value pair to Details and returns e.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// NotFound builds a NotFound error for entity/id.
func NotFound(code, entity string, id any) *Error {
	return newError(KindNotFound, code, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// InvalidState reports an operation attempted in the wrong lifecycle state.
func InvalidState(code, msg string) *Error {
	return newError(KindInvalidState, code, msg)
}

// Validation reports an invalid request or a violated business precondition.
func Validation(code, msg string) *Error {
	return newError(KindValidation, code, msg)
}

// ValidationFields wraps per-field validation failures.
func ValidationFields(fields map[string]string) *Error {
	return newError(KindValidation, CodeInvalidRequest, "invalid request").WithDetail("fields", fields)
}

// Conflict reports a write blocked by existing or dependent records.
func Conflict(code, msg string) *Error {
	return newError(KindConflict, code, msg)
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return newError(KindInternal, CodeInternal, "internal error").WithCause(err)
}

// As extracts *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HasCode reports whether err carries the given business code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// HTTPStatus maps an error to the status a transport layer should use.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string         `json:"detail"`
	Code   string         `json:"code,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// New builds a bare envelope.
func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Envelope renders err for a client without leaking internal causes.
func Envelope(err error) *APIError {
	e, ok := As(err)
	if !ok || e.Kind == KindInternal {
		return New("internal server error")
	}
	return &APIError{Detail: e.Message, Code: e.Code, Fields: e.Details}
}
