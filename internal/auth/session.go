package auth

import (
	"context"

	"keepit/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller of a request. APIKeyID is zero for
// JWT sessions, which carry every capability.
type Identity struct {
	UserID            int64
	Email             string
	APIKeyID          int64
	APIKeyPermissions []models.APIKeyPermission
}

func (id *Identity) ViaAPIKey() bool {
	return id.APIKeyID != 0
}

// Can reports whether the identity may use capability perm.
func (id *Identity) Can(perm models.APIKeyPermission) bool {
	if !id.ViaAPIKey() {
		return true
	}
	for _, p := range id.APIKeyPermissions {
		if p == perm {
			return true
		}
	}
	return false
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
