// Package api implements the JSON API over the commerce workflows. Identity
// comes from the gateway headers resolved by middleware.WithActor; every
// handler checks that the actor owns the resource unless it is staff.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler"
	"github.com/dukerupert/motorworks/internal/repository"
)

// SessionIDHeader carries the anonymous cart session issued by the storefront.
const SessionIDHeader = "X-Session-ID"

const maxSessionIDLength = 128

// dateLayout is the civil date format accepted in requests.
const dateLayout = "2006-01-02"

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("", "Invalid "+name+": must be a UUID")
	}
	return id, nil
}

// canAccess reports whether the actor in ctx may see a resource owned by ownerID.
func canAccess(ctx context.Context, ownerID uuid.UUID) bool {
	if domain.IsStaff(ctx) {
		return true
	}
	return domain.UserIDFromContext(ctx) == ownerID
}

// pageFromQuery reads limit/offset, clamped to the repository bounds.
func pageFromQuery(r *http.Request) repository.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}
	return repository.Page{
		Limit:  min(limit, repository.MaxPageSize),
		Offset: max(offset, 0),
	}
}

// parseDate parses a YYYY-MM-DD civil date.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, domain.NewValidationError("", field, "is required")
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError("", field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

// decodeOptional decodes a body that callers may omit entirely.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return handler.DecodeJSON(r, dst)
}
