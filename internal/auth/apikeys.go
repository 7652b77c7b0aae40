package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"
)

const (
	APIKeyPrefix = "ak_"
	// displayPrefixLen covers "ak_" plus the first 8 hex chars.
	displayPrefixLen = 11
	apiKeyNameMax    = 100
)

// GenerateAPIKey returns a new raw key: "ak_" followed by 64 hex chars.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(b), nil
}

// HashAPIKey is the lookup form stored in place of the raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// APIKeyRequest describes a key to create.
type APIKeyRequest struct {
	Name        string
	Permissions []models.APIKeyPermission
	ExpiresAt   *time.Time
}

// CreateAPIKey stores a new key for userID. The raw key is set on the
// returned value and never retrievable again.
func (s *Service) CreateAPIKey(ctx context.Context, userID int64, req APIKeyRequest) (*models.APIKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > apiKeyNameMax {
		return nil, apperr.Validation("name must be 1-%d characters", apiKeyNameMax)
	}
	if len(req.Permissions) == 0 {
		return nil, apperr.Validation("at least one permission is required")
	}
	seen := make(map[models.APIKeyPermission]bool, len(req.Permissions))
	var perms []models.APIKeyPermission
	for _, p := range req.Permissions {
		if !p.Valid() {
			return nil, apperr.Validation("unknown permission %q", p)
		}
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, apperr.Validation("expiresAt must be in the future")
	}

	raw, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	key := &models.APIKey{
		UserID:      userID,
		Name:        name,
		Prefix:      raw[:displayPrefixLen],
		Permissions: perms,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.store.CreateAPIKey(ctx, key, HashAPIKey(raw)); err != nil {
		s.log.Error().Err(err).Str("op", "CreateAPIKey").Int64("actor_id", userID).Msg("create api key failed")
		return nil, err
	}
	key.Key = raw
	s.log.Info().Int64("actor_id", userID).Int64("api_key_id", key.ID).Msg("api key created")
	return key, nil
}

// ListAPIKeys returns the user's keys; only prefixes are visible.
func (s *Service) ListAPIKeys(ctx context.Context, userID int64) ([]models.APIKey, error) {
	return s.store.ListAPIKeys(ctx, userID)
}

func (s *Service) DeleteAPIKey(ctx context.Context, id, userID int64) error {
	err := s.store.DeleteAPIKey(ctx, id, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrAPIKeyNotFound
	}
	return err
}

func AvailablePermissions() []models.APIKeyPermission {
	return append([]models.APIKeyPermission(nil), models.AllAPIKeyPermissions...)
}
