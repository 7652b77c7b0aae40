package sqlstore

import (
	"context"

	"keepit/internal/models"
)

func (s *SQLStore) CreateWebhook(ctx context.Context, hook *models.Webhook) error {
	if hook.CreatedAt.IsZero() {
		hook.CreatedAt = s.now()
	}
	id, err := s.insert(ctx, s.db, "INSERT INTO webhooks (user_id, action, url, created_at) VALUES (?, ?, ?, ?)",
		hook.UserID, hook.Action, hook.URL, hook.CreatedAt)
	if err != nil {
		return err
	}
	hook.ID = id
	return nil
}

func (s *SQLStore) ListWebhooks(ctx context.Context, userID int64) ([]models.Webhook, error) {
	return s.listWebhooks(ctx, "SELECT id, user_id, action, url, created_at FROM webhooks WHERE user_id = ? ORDER BY id ASC", userID)
}

func (s *SQLStore) ListWebhooksForAction(ctx context.Context, userID int64, action models.WebhookAction) ([]models.Webhook, error) {
	return s.listWebhooks(ctx,
		"SELECT id, user_id, action, url, created_at FROM webhooks WHERE user_id = ? AND action = ? ORDER BY id ASC",
		userID, action)
}

func (s *SQLStore) listWebhooks(ctx context.Context, query string, args ...any) ([]models.Webhook, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hooks := []models.Webhook{}
	for rows.Next() {
		var h models.Webhook
		if err := rows.Scan(&h.ID, &h.UserID, &h.Action, &h.URL, &h.CreatedAt); err != nil {
			return nil, err
		}
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}

func (s *SQLStore) DeleteWebhook(ctx context.Context, id, userID int64) error {
	return s.execOne(ctx, s.db, "DELETE FROM webhooks WHERE id = ? AND user_id = ?", id, userID)
}

// CountWebhooks counts hooks owned by userID, or all hooks when userID is zero.
func (s *SQLStore) CountWebhooks(ctx context.Context, userID int64) (int, error) {
	if userID == 0 {
		return s.count(ctx, s.db, "SELECT COUNT(*) FROM webhooks")
	}
	return s.count(ctx, s.db, "SELECT COUNT(*) FROM webhooks WHERE user_id = ?", userID)
}
