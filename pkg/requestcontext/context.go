// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services consume them. Keeping the package
// free of net/http dependencies lets domain services read the acting club or
// the request time without pulling in transport code.
//
// Usage in services (read values):
//
//	clubID := requestcontext.ActorClubID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithActorClubID(ctx, clubID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "fedoffice/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorClubIDKey struct{}
	actorRoleKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyActorClubID = actorClubIDKey{}
	ContextKeyActorRole   = actorRoleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Role names carried in session claims.
const (
	RoleClub  = "club"
	RoleAdmin = "admin"
)

// ActorClubID retrieves the authenticated club from the context.
// Returns the zero value (nil UUID) for administrators and unauthenticated requests.
func ActorClubID(ctx context.Context) id.ClubID {
	if clubID, ok := ctx.Value(ContextKeyActorClubID).(id.ClubID); ok {
		return clubID
	}
	return id.ClubID{}
}

// WithActorClubID injects the acting club into the context.
func WithActorClubID(ctx context.Context, clubID id.ClubID) context.Context {
	return context.WithValue(ctx, ContextKeyActorClubID, clubID)
}

// ActorRole retrieves the authenticated role ("club" or "admin") from the context.
func ActorRole(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyActorRole).(string); ok {
		return role
	}
	return ""
}

// WithActorRole injects the acting role into the context.
func WithActorRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyActorRole, role)
}

// IsAdmin reports whether the request is authenticated as a federation administrator.
func IsAdmin(ctx context.Context) bool {
	return ActorRole(ctx) == RoleAdmin
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts like workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full middleware chain, and for workers that need
// consistent time within a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
