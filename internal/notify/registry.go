package notify

import (
	"context"
	"errors"
	"strings"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"
)

// HookStore persists webhook registrations.
type HookStore interface {
	CreateWebhook(ctx context.Context, hook *models.Webhook) error
	ListWebhooks(ctx context.Context, userID int64) ([]models.Webhook, error)
	DeleteWebhook(ctx context.Context, id, userID int64) error
}

// Registry manages a user's webhook registrations.
type Registry struct {
	store        HookStore
	allowPrivate bool
}

func NewRegistry(st HookStore, allowPrivate bool) *Registry {
	return &Registry{store: st, allowPrivate: allowPrivate}
}

func (r *Registry) Create(ctx context.Context, userID int64, action models.WebhookAction, rawURL string) (*models.Webhook, error) {
	if !action.Valid() {
		return nil, apperr.Validation("action must be note_created, note_updated or note_deleted")
	}
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL, r.allowPrivate); err != nil {
		if errors.Is(err, ErrInternalURL) {
			return nil, apperr.Validation("webhook url must not point to an internal host")
		}
		return nil, apperr.Validation("webhook url must be a valid http or https url")
	}
	hook := &models.Webhook{UserID: userID, Action: action, URL: rawURL}
	if err := r.store.CreateWebhook(ctx, hook); err != nil {
		return nil, err
	}
	return hook, nil
}

func (r *Registry) List(ctx context.Context, userID int64) ([]models.Webhook, error) {
	return r.store.ListWebhooks(ctx, userID)
}

func (r *Registry) Delete(ctx context.Context, id, userID int64) error {
	err := r.store.DeleteWebhook(ctx, id, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrWebhookNotFound
	}
	return err
}
