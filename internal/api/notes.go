package api

import (
	"net/http"

	"keepit/internal/models"
	"keepit/internal/notes"
	"keepit/internal/quota"
)

type checkboxBody struct {
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

type noteBody struct {
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Color      string         `json:"color"`
	IsPinned   bool           `json:"is_pinned"`
	Checkboxes []checkboxBody `json:"checkboxes"`
}

func (b noteBody) input() notes.Input {
	return notes.Input{
		Title:      b.Title,
		Content:    b.Content,
		Color:      b.Color,
		IsPinned:   b.IsPinned,
		Checkboxes: toCheckboxes(b.Checkboxes),
	}
}

type patchBody struct {
	Title      *string         `json:"title"`
	Content    *string         `json:"content"`
	Color      *string         `json:"color"`
	IsPinned   *bool           `json:"is_pinned"`
	Checkboxes *[]checkboxBody `json:"checkboxes"`
}

func (b patchBody) patch() notes.Patch {
	p := notes.Patch{Title: b.Title, Content: b.Content, Color: b.Color, IsPinned: b.IsPinned}
	if b.Checkboxes != nil {
		cbs := toCheckboxes(*b.Checkboxes)
		p.Checkboxes = &cbs
	}
	return p
}

func toCheckboxes(in []checkboxBody) []models.Checkbox {
	out := make([]models.Checkbox, 0, len(in))
	for _, c := range in {
		out = append(out, models.Checkbox{Label: c.Label, Checked: c.Checked})
	}
	return out
}

// noteView adds the caller's resolved permission to a note.
type noteView struct {
	*models.Note
	Permission models.Permission `json:"permission"`
}

func (h *Handlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	list, err := h.notes.List(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	note, perm, err := h.notes.Get(r.Context(), id, identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, noteView{Note: note, Permission: perm})
}

func (h *Handlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	var body noteBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	userID := identity(r).UserID
	if err := h.gate.CheckNotes(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	note, err := h.notes.Create(r.Context(), userID, body.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *Handlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body patchBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	note, err := h.notes.Update(r.Context(), id, identity(r).UserID, body.patch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.notes.Delete(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) PinNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		IsPinned bool `json:"is_pinned"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	note, err := h.notes.SetPinned(r.Context(), id, identity(r).UserID, body.IsPinned)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handlers) ReorderNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NoteIDs []int64 `json:"note_ids"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.notes.Reorder(r.Context(), identity(r).UserID, body.NoteIDs); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UpdateCheckbox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "checkboxId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		Checked bool `json:"checked"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	cb, err := h.notes.UpdateCheckbox(r.Context(), id, identity(r).UserID, body.Checked)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cb)
}

func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.notes.ListTemplates(r.Context(), identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.notes.GetTemplate(r.Context(), id, identity(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body noteBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	userID := identity(r).UserID
	if err := h.gate.CheckTemplates(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.notes.CreateTemplate(r.Context(), userID, body.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body patchBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.notes.UpdateTemplate(r.Context(), id, identity(r).UserID, body.patch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.notes.DeleteTemplate(r.Context(), id, identity(r).UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UseTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body notes.Overrides
	if r.ContentLength != 0 {
		var raw struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			Color   string `json:"color"`
		}
		if err := decode(r, &raw); err != nil {
			h.fail(w, r, err)
			return
		}
		body = notes.Overrides{Title: raw.Title, Content: raw.Content, Color: raw.Color}
	}
	userID := identity(r).UserID
	if err := h.gate.RequireFeature(quota.FeatureTemplates); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.gate.CheckNotes(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	note, err := h.notes.CreateFromTemplate(r.Context(), id, userID, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *Handlers) ConvertToTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID := identity(r).UserID
	if err := h.gate.CheckTemplates(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.notes.ConvertToTemplate(r.Context(), id, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) ConvertToNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID := identity(r).UserID
	if err := h.gate.CheckNotes(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.notes.ConvertToNote(r.Context(), id, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
