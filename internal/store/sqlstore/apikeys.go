package sqlstore

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"keepit/internal/models"
)

const apiKeyColumns = "id, user_id, name, prefix, expires_at, last_used_at, created_at"

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var (
		k          models.APIKey
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
	)
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &expiresAt, &lastUsedAt, &k.CreatedAt); err != nil {
		return nil, err
	}
	k.ExpiresAt = timePtr(expiresAt)
	k.LastUsedAt = timePtr(lastUsedAt)
	return &k, nil
}

// CreateAPIKey stores the key row and its permission set. Only keyHash is
// persisted; key.Key is left untouched for the caller to hand out once.
func (s *SQLStore) CreateAPIKey(ctx context.Context, key *models.APIKey, keyHash string) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = s.now()
	}
	return s.withTx(ctx, "CreateAPIKey", func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx,
			"INSERT INTO api_keys (user_id, name, key_hash, prefix, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			key.UserID, key.Name, keyHash, key.Prefix, nullTime(key.ExpiresAt), key.CreatedAt)
		if err != nil {
			return err
		}
		key.ID = id
		for _, p := range key.Permissions {
			if _, err := s.exec(ctx, tx,
				"INSERT INTO api_key_permissions (api_key_id, permission) VALUES (?, ?)", id, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	k, err := scanAPIKey(s.queryRow(ctx, s.db, "SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash = ?", keyHash))
	if err != nil {
		return nil, mapErr(err)
	}
	keys := []models.APIKey{*k}
	if err := s.loadAPIKeyPermissions(ctx, keys); err != nil {
		return nil, err
	}
	return &keys[0], nil
}

func (s *SQLStore) ListAPIKeys(ctx context.Context, userID int64) ([]models.APIKey, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+apiKeyColumns+" FROM api_keys WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	keys := []models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, *k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadAPIKeyPermissions(ctx, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *SQLStore) loadAPIKeyPermissions(ctx context.Context, keys []models.APIKey) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, len(keys))
	index := make(map[int64]int, len(keys))
	for i := range keys {
		args[i] = keys[i].ID
		index[keys[i].ID] = i
		keys[i].Permissions = []models.APIKeyPermission{}
	}
	rows, err := s.query(ctx, s.db,
		"SELECT api_key_id, permission FROM api_key_permissions WHERE api_key_id IN ("+placeholders(len(keys))+")", args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			perm models.APIKeyPermission
		)
		if err := rows.Scan(&id, &perm); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			keys[i].Permissions = append(keys[i].Permissions, perm)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range keys {
		sortPermissions(keys[i].Permissions)
	}
	return nil
}

// sortPermissions orders a permission set the way AllAPIKeyPermissions lists it.
func sortPermissions(perms []models.APIKeyPermission) {
	slices.SortFunc(perms, func(a, b models.APIKeyPermission) int {
		return slices.Index(models.AllAPIKeyPermissions, a) - slices.Index(models.AllAPIKeyPermissions, b)
	})
}

func (s *SQLStore) DeleteAPIKey(ctx context.Context, id, userID int64) error {
	return s.withTx(ctx, "DeleteAPIKey", func(tx *sql.Tx) error {
		if err := s.execOne(ctx, tx, "DELETE FROM api_keys WHERE id = ? AND user_id = ?", id, userID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, "DELETE FROM api_key_permissions WHERE api_key_id = ?", id)
		return err
	})
}

func (s *SQLStore) TouchAPIKey(ctx context.Context, id int64, now time.Time) error {
	return s.execOne(ctx, s.db, "UPDATE api_keys SET last_used_at = ? WHERE id = ?", now, id)
}

// CountAPIKeys counts keys owned by userID, or all keys when userID is zero.
func (s *SQLStore) CountAPIKeys(ctx context.Context, userID int64) (int, error) {
	if userID == 0 {
		return s.count(ctx, s.db, "SELECT COUNT(*) FROM api_keys")
	}
	return s.count(ctx, s.db, "SELECT COUNT(*) FROM api_keys WHERE user_id = ?", userID)
}
