package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"WardWatchAPI/internal/models"
)

type contextKey struct{}

var identityKey = contextKey{}

// Authenticator resolves a bearer token into the caller's identity.
type Authenticator interface {
	Authenticate(token string) (models.Identity, error)
}

// Auth requires a valid bearer token. Browsers cannot set headers on a
// websocket handshake, so the token query parameter is accepted as well.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			id, err := a.Authenticate(bearerToken(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			// An identity without an organization is incomplete, same as the hub's attach check.
			if id.OrgID == "" {
				writeError(w, http.StatusUnauthorized, "Token is not bound to an organization")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers whose identity lacks role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if id.Role != role {
				writeError(w, http.StatusForbidden, "Requires role "+role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// MustIdentity returns the caller identity or models.ErrUnauthorized.
func MustIdentity(ctx context.Context) (models.Identity, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return models.Identity{}, fmt.Errorf("no identity in request context: %w", models.ErrUnauthorized)
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
