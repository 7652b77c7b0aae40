package api

import (
	"net/http"
	"strings"

	"keepit/internal/apperr"
	"keepit/internal/auth"
	"keepit/internal/models"
	"keepit/internal/quota"
	"keepit/internal/sharing"

	"github.com/gorilla/mux"
)

const (
	defaultInviteDays = 7
	maxInviteDays     = 30
)

type inviteBody struct {
	Email         string            `json:"email"`
	Permission    models.Permission `json:"permission"`
	Message       string            `json:"message"`
	ExpiresInDays *int              `json:"expires_in_days"`
}

// normalize lowercases the email, defaults the permission to READ and
// validates the fields the sharing service leaves to its callers.
func (b *inviteBody) normalize() (int, error) {
	b.Email = strings.ToLower(strings.TrimSpace(b.Email))
	if !auth.ValidEmail(b.Email) {
		return 0, apperr.Validation("a valid email is required")
	}
	if b.Permission == "" {
		b.Permission = models.PermissionRead
	}
	return b.days()
}

func (b inviteBody) days() (int, error) {
	if b.ExpiresInDays == nil {
		return defaultInviteDays, nil
	}
	d := *b.ExpiresInDays
	if d < 1 || d > maxInviteDays {
		return 0, apperr.Validation("expires_in_days must be between 1 and %d", maxInviteDays)
	}
	return d, nil
}

func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body inviteBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	days, err := body.normalize()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.gate.RequireFeature(quota.FeatureSharing); err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err := h.sharing.CreateInvitation(r.Context(), sharing.InviteRequest{
		NoteID:        noteID,
		InviterID:     identity(r).UserID,
		Email:         body.Email,
		Permission:    body.Permission,
		Message:       body.Message,
		ExpiresInDays: days,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handlers) GetInvitationByToken(w http.ResponseWriter, r *http.Request) {
	inv, err := h.sharing.GetInvitationByToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	access, err := h.sharing.AcceptInvitation(r.Context(), mux.Vars(r)["token"], identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

func (h *Handlers) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	if err := h.sharing.DeclineInvitation(r.Context(), mux.Vars(r)["token"], identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "invitationId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sharing.RevokeInvitation(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) PendingInvitations(w http.ResponseWriter, r *http.Request) {
	list, err := h.sharing.PendingInvitations(r.Context(), identity(r).Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) SentInvitations(w http.ResponseWriter, r *http.Request) {
	list, err := h.sharing.SentInvitations(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) NoteInvitations(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.sharing.NoteInvitations(r.Context(), noteID, identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) SharedNotes(w http.ResponseWriter, r *http.Request) {
	list, err := h.sharing.SharedNotes(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) InvitationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sharing.Stats(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) NoteAccess(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.sharing.NoteAccess(r.Context(), noteID, identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) RemoveAccess(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	target, err := pathID(r, "userId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sharing.RemoveAccess(r.Context(), noteID, target, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveNote removes the caller's own grant on a shared note.
func (h *Handlers) LeaveNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID := identity(r).UserID
	if err := h.sharing.RemoveAccess(r.Context(), noteID, userID, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
