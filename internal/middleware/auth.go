package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/domain"
)

// Headers set by the upstream auth gateway. The core trusts them as-is;
// deployments must strip them from client traffic at the edge.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
)

// WithActor reads the gateway identity headers and adds the actor to the
// request context. Anonymous requests pass through without an actor; a
// malformed user id is rejected.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			reject(w, r, domain.Invalid("", "Invalid "+UserIDHeader+" header"))
			return
		}

		role := domain.RoleCustomer
		if strings.EqualFold(r.Header.Get(UserRoleHeader), domain.RoleStaff) {
			role = domain.RoleStaff
		}

		ctx := domain.NewContextWithActor(r.Context(), &domain.Actor{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor rejects requests without an authenticated actor with 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			reject(w, r, errAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff answers 401 without an actor and 403 for non-staff actors.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			reject(w, r, errAuthRequired)
			return
		}
		if !domain.IsStaff(r.Context()) {
			reject(w, r, errStaffOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}
