package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"keepit/internal/apperr"
	"keepit/internal/auth"
	"keepit/internal/models"
)

// Authenticator resolves request credentials to an identity.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, raw string) (*auth.Identity, error)
	AuthenticateAPIKey(ctx context.Context, raw string) (*auth.Identity, error)
}

// Auth accepts an X-API-Key header or a Bearer JWT and stores the caller's
// identity in the request context. The API key wins when both are sent.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  *auth.Identity
				err error
			)
			if key := r.Header.Get("X-API-Key"); key != "" {
				id, err = a.AuthenticateAPIKey(r.Context(), key)
			} else if token, ok := bearer(r); ok {
				id, err = a.AuthenticateToken(r.Context(), token)
			} else {
				err = apperr.ErrUnauthenticated.WithMessage("a bearer token or X-API-Key header is required")
			}
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequirePermission rejects API-key callers whose key lacks perm. JWT
// sessions pass through.
func RequirePermission(perm models.APIKeyPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, apperr.ErrUnauthenticated)
				return
			}
			if !id.Can(perm) {
				writeError(w, apperr.ErrMissingAPIKeyCap.WithMessage("api key requires permission %s", perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionOnly rejects requests authenticated by API key.
func SessionOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.FromContext(r.Context()); ok && id.ViaAPIKey() {
			writeError(w, apperr.ErrNotAuthorized.WithMessage("this endpoint requires a user session"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	msg, code := apperr.Public(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
