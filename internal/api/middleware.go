// Package api implements the Jotter REST API using chi.
package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/starford/jotter/internal/models"
)

// UserHeader names the caller when the server sits behind an authenticating
// proxy. Without it the configured default user is assumed.
const UserHeader = "X-User"

// AuthOptions configures request authentication and identity.
type AuthOptions struct {
	// Enabled enforces "Authorization: Bearer <Token>".
	Enabled bool
	Token   string
	// DefaultUser is used when a request carries no UserHeader.
	DefaultUser string
	// Admins lists usernames with admin rights.
	Admins []string
}

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user stored in ctx.
func UserFrom(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey{}).(models.User)
	return u, ok
}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityMiddleware resolves the calling user and stores it in the request
// context. Requests without any identity are rejected. A UserHeader naming an
// admin grants admin rights only when gated is set, i.e. the request already
// passed the bearer check. The configured default user keeps its rights.
func IdentityMiddleware(defaultUser string, admins []string, gated bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := strings.TrimSpace(r.Header.Get(UserHeader))
			trusted := gated
			if name == "" {
				name, trusted = defaultUser, true
			}
			if name == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("user is required"))
				return
			}
			u := models.User{Name: name, IsAdmin: trusted && slices.Contains(admins, name)}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func currentUser(r *http.Request) models.User {
	u, _ := UserFrom(r.Context())
	return u
}

// SubscriberOwner scopes an SSE subscription to the caller. Admins receive
// every owner's events.
func SubscriberOwner(r *http.Request) string {
	u, ok := UserFrom(r.Context())
	if !ok || u.IsAdmin {
		return ""
	}
	return u.Name
}
