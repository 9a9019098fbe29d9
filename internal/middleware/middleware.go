// Package middleware provides the HTTP middleware shared by the API routes:
// request ids, request-scoped loggers, actor resolution, limits and metrics.
//
// Rejections use the same JSON envelope as the handlers.
package middleware

import (
	"net/http"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler"
)

var (
	errAuthRequired = domain.Unauthorized("", "Authentication required")
	errStaffOnly    = domain.Forbidden("", "This action is limited to staff")
	errTooMany      = domain.Errorf(domain.ERATELIMIT, "", "Too many requests")
	errBodyTooLarge = domain.Errorf(domain.ETOOLARGE, "", "Request body too large")
)

func reject(w http.ResponseWriter, r *http.Request, err error) {
	handler.ErrorResponse(w, r, err)
}
