package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sakif/greeting-cards/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the actor stored under it.
type contextKey string

const actorKey contextKey = "actor"

// CookieName is the HttpOnly cookie that carries the JWT.
const CookieName = "token"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It takes the JWT from the Authorization header ("Bearer <jwt>") or, failing
// that, from the "token" cookie, validates it and stores the actor in the
// request context. A missing or invalid token is answered with 401 and the
// chain stops.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := extractActor(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "UnauthorizedError", "valid authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// OptionalAuth extracts the actor if a valid token is present but never
// blocks the request. Public card routes use it: anonymous visitors browse
// active cards, while a signed-in reviewer sees more.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor, err := extractActor(r, tokens); err == nil {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole lets a request through only if the actor (set by RequireAuth,
// which must run first) holds at least role min. Admins pass every check.
func RequireRole(min model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor.IsAnonymous() {
				writeAuthError(w, http.StatusUnauthorized, "UnauthorizedError", "valid authentication required")
				return
			}
			if !actor.Role.AtLeast(min) {
				writeAuthError(w, http.StatusForbidden, "ForbiddenError", "requires the "+string(min)+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated actor, or model.Anonymous when
// the request carried no valid token.
func ActorFromContext(ctx context.Context) model.Actor {
	if actor, ok := ctx.Value(actorKey).(model.Actor); ok {
		return actor
	}
	return model.Anonymous
}

// UserIDFromContext retrieves the authenticated user's ID from the request
// context. Returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	actor := ActorFromContext(ctx)
	return actor.ID, !actor.IsAnonymous()
}

// extractActor reads the token, preferring the Authorization header over
// the cookie, and validates it.
func extractActor(r *http.Request, tokens *TokenService) (model.Actor, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tokens.Validate(strings.TrimSpace(token))
		}
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return model.Actor{}, err
	}
	return tokens.Validate(cookie.Value)
}

// writeAuthError writes the same {"error","message"} body the handlers use.
// It lives here because handler imports auth, not the other way round.
func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
