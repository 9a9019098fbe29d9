// Package handler holds the HTTP plumbing shared by the API and webhook
// handlers: the error envelope and JSON helpers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/telemetry"
)

// errorBody is the JSON error envelope: {"error": {...}}.
type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string            `json:"code"`
	Reason  string            `json:"reason,omitempty"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// ErrorResponse logs err and writes the JSON error envelope. Internal errors
// are reported to Sentry and rendered with a generic message; their details
// never reach the client.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if fields := domain.GetValidationFields(err); fields != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	logger := domain.LoggerFromContext(r.Context())
	attrs := []any{
		"error", err,
		"code", code,
		"reason", domain.ErrorReason(err),
		"op", domain.ErrorOp(err),
		"status", status,
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", attrs...)
		telemetry.CaptureErrorFromContext(r.Context(), err, map[string]any{
			"op":   domain.ErrorOp(err),
			"path": r.URL.Path,
		})
	} else {
		logger.InfoContext(r.Context(), "request rejected", attrs...)
	}

	payload := errorPayload{
		Code:    code,
		Reason:  domain.ErrorReason(err),
		Message: domain.ErrorMessage(err),
	}
	if code != domain.EINTERNAL {
		payload.Details = domain.ErrorDetails(err)
	}
	WriteJSON(w, status, errorBody{Error: payload})
}

// ValidationErrorResponse writes field-level validation failures. Errors that
// are not a domain.ValidationError fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	WriteJSON(w, http.StatusBadRequest, errorBody{Error: errorPayload{
		Code:    domain.EINVALID,
		Reason:  domain.ReasonValidation,
		Message: "Request validation failed",
		Fields:  fields,
	}})
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Unauthorized("", "Authentication required"))
}

// ForbiddenResponse is a convenience wrapper for 403 errors.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Forbidden("", "You don't have permission to access this resource"))
}

// InternalErrorResponse logs err and returns a generic 500 response.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errors.New("unspecified internal error")
	}
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields and
// trailing data. Failures come back as EINVALID domain errors.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return domain.Invalid("", "Request body must not be empty")
		case errors.As(err, &maxErr):
			return domain.Invalid("", fmt.Sprintf("Request body must not exceed %d bytes", maxErr.Limit))
		case errors.As(err, &syntaxErr):
			return domain.Invalid("", fmt.Sprintf("Malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return domain.Invalid("", fmt.Sprintf("Field %q has the wrong type", typeErr.Field))
		default:
			return domain.Invalid("", "Invalid request body: "+err.Error())
		}
	}
	if dec.More() {
		return domain.Invalid("", "Request body must contain a single JSON object")
	}
	return nil
}
