package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "fedoffice/pkg/domain"
	"fedoffice/pkg/requestcontext"
)

// TokenValidator defines the interface for validating session tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*SessionClaims, error)
}

// SessionClaims represents the claims we expect from the token validator.
type SessionClaims struct {
	ClubID id.ClubID
	Role   string
}

// sessionCookieName is where the dashboards store the session token.
const sessionCookieName = "fedoffice_session"

// extractToken pulls the session token from the Authorization header or,
// failing that, the session cookie.
func extractToken(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok {
		return after
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth validates the session token and injects the acting club and
// role into the request context. Requests without a valid session get 401.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := extractToken(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing session token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired session token")
				return
			}

			ctx = requestcontext.WithActorClubID(ctx, claims.ClubID)
			ctx = requestcontext.WithActorRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates administrative routes. It must run after RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !requestcontext.IsAdmin(ctx) {
				logger.WarnContext(ctx, "forbidden - administrator role required",
					"request_id", requestcontext.RequestID(ctx),
					"role", requestcontext.ActorRole(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"Administrator role required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
