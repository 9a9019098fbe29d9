// Package domain provides the core business types, status machines, error
// taxonomy and context helpers for motorworks.
//
// Context helpers centralize request-scoped data access so that handlers and
// services agree on who is acting without threading ids through every call.
package domain

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// actorContextKey stores the authenticated caller.
	actorContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey

	loggerContextKey
)

// Roles assigned by the upstream auth gateway.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// Actor is the authenticated caller of a request.
// Identity is owned by an external gateway; this is the minimal view the core needs.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// --- Actor Context Helpers ---

// NewContextWithActor returns a new context with the actor attached.
func NewContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the actor from context.
// Returns nil if no actor is present.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey).(*Actor)
	return actor
}

// UserIDFromContext retrieves the acting user's ID from context.
// Returns uuid.Nil if no actor is present.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if actor := ActorFromContext(ctx); actor != nil {
		return actor.UserID
	}
	return uuid.Nil
}

// IsAuthenticated returns true if there is an actor with a user ID in context.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != uuid.Nil
}

// IsStaff returns true if the actor in context has the staff role.
func IsStaff(ctx context.Context) bool {
	actor := ActorFromContext(ctx)
	return actor != nil && actor.Role == RoleStaff
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

// --- Logger Context Helpers ---

// NewContextWithLogger attaches a request-scoped logger.
func NewContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// LoggerFromContext returns the request-scoped logger, or slog.Default().
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
