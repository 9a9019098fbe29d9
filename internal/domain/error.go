package domain

import (
	"errors"
	"fmt"
)

// Error codes. Each maps to one HTTP status in the handler package.
const (
	EINVALID      = "invalid"          // 400
	EUNAUTHORIZED = "unauthorized"     // 401
	EPAYMENT      = "payment_required" // 402
	EFORBIDDEN    = "forbidden"        // 403
	ENOTFOUND     = "not_found"        // 404
	ECONFLICT     = "conflict"         // 409: stock, slot, concurrent update
	ETOOLARGE     = "too_large"        // 413
	ERATELIMIT    = "rate_limit"       // 429
	EINTERNAL     = "internal"         // 500, details hidden from clients
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is a workflow failure.
//
// Code picks the HTTP class and Reason is the stable symbol clients branch
// on (see reasons.go). Message is safe to show. Details itemizes the failure,
// e.g. one entry per unavailable cart line. Op and Err are for logs only.
type Error struct {
	Code    string
	Reason  string
	Message string
	Details map[string]string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any domain error with the same non-empty Reason, so a sentinel
// matches its scoped copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason != "" && e.Reason == t.Reason
}

// With returns a copy of e scoped to op, carrying details when non-nil.
// The receiver is never modified.
func (e *Error) With(op string, details map[string]string) *Error {
	c := *e
	c.Op = op
	if details != nil {
		c.Details = details
	}
	return &c
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ErrorCode returns err's code: "" for nil, EINTERNAL for foreign errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the client-facing message. Internal and foreign
// errors get a generic one.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

func ErrorReason(err error) string {
	if e, ok := asError(err); ok {
		return e.Reason
	}
	return ""
}

func ErrorDetails(err error) map[string]string {
	if e, ok := asError(err); ok {
		return e.Details
	}
	return nil
}

// ErrorOp returns the operation that failed, for logging.
func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	return ""
}

func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Errorf builds an error without a reason.
func Errorf(code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Forbidden(op, message string) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Internal wraps a failure the client cannot act on. Message goes to logs;
// clients see a generic message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// ValidationError carries per-field input problems.
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	var msg string
	if len(e.Fields) == 1 {
		for field, m := range e.Fields {
			msg = field + ": " + m
		}
	} else {
		msg = fmt.Sprintf("validation failed for %d fields", len(e.Fields))
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// NewValidationError reports a single bad field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

// AddFieldError adds field to err when it is a ValidationError, and
// otherwise starts a new one.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return &ValidationError{Fields: map[string]string{field: message}}
}

// GetValidationFields returns the field errors, or nil for other errors.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
