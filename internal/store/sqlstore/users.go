package sqlstore

import (
	"context"
	"database/sql"

	"keepit/internal/models"
)

func (s *SQLStore) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	u := &models.User{Email: email, PasswordHash: passwordHash, CreatedAt: s.now()}
	id, err := s.insert(ctx, s.db, "INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)",
		u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = id
	return u, nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email)
}

func (s *SQLStore) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	if err := s.queryRow(ctx, s.db, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *SQLStore) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, s.db, "SELECT COUNT(*) FROM users")
}

// DeleteUser removes the user. Owned notes, ledger rows and keys go with it
// through ON DELETE CASCADE; notes the user had been granted are re-flagged.
func (s *SQLStore) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, "DeleteUser", func(tx *sql.Tx) error {
		noteIDs, err := s.ids(ctx, tx, "SELECT note_id FROM note_access WHERE user_id = ?", id)
		if err != nil {
			return err
		}

		if err := s.execOne(ctx, tx, "DELETE FROM users WHERE id = ?", id); err != nil {
			return err
		}
		for _, noteID := range noteIDs {
			if err := s.refreshShared(ctx, tx, noteID); err != nil {
				return err
			}
		}
		return nil
	})
}
