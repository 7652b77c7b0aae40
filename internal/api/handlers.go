package api

import (
	"net/http"
	"time"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.gate.CheckUsers(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.auth.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	token, u, err := h.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.Me(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	cfg := h.gate.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      cfg.InstanceName,
		"version":   h.version,
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"plan":      cfg.Plan,
	})
}
