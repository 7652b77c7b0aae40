package api

import (
	"net/http"
	"time"

	"keepit/internal/auth"
	"keepit/internal/models"
)

func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string                    `json:"name"`
		Permissions []models.APIKeyPermission `json:"permissions"`
		ExpiresAt   *time.Time                `json:"expires_at"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	userID := identity(r).UserID
	if err := h.gate.CheckAPIKeys(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	key, err := h.auth.CreateAPIKey(r.Context(), userID, auth.APIKeyRequest{
		Name:        body.Name,
		Permissions: body.Permissions,
		ExpiresAt:   body.ExpiresAt,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (h *Handlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.auth.ListAPIKeys(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handlers) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.DeleteAPIKey(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) APIKeyPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.AvailablePermissions())
}

func (h *Handlers) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action models.WebhookAction `json:"action"`
		URL    string               `json:"url"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	userID := identity(r).UserID
	if err := h.gate.CheckWebhooks(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	hook, err := h.webhooks.Create(r.Context(), userID, body.Action, body.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

func (h *Handlers) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.List(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hooks)
}

func (h *Handlers) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.webhooks.Delete(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
