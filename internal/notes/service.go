// Package notes holds note and template CRUD. Every access decision goes
// through the sharing resolver; lifecycle events are handed to a Notifier.
package notes

import (
	"context"
	"errors"
	"strings"
	"time"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/notify"
	"keepit/internal/store"

	"github.com/rs/zerolog"
)

// Authorizer resolves an actor's permission on a note.
type Authorizer interface {
	Authorize(ctx context.Context, noteID, actorID int64, need models.Permission) (*models.Note, models.Permission, error)
}

// Input is the body of a note or template creation.
type Input struct {
	Title      string
	Content    string
	Color      string
	IsPinned   bool
	Checkboxes []models.Checkbox
}

// Patch carries the fields to change; nil fields are kept.
type Patch struct {
	Title      *string
	Content    *string
	Color      *string
	IsPinned   *bool
	Checkboxes *[]models.Checkbox
}

// Overrides replace template fields when a note is created from it.
type Overrides struct {
	Title   string
	Content string
	Color   string
}

type Service struct {
	store    store.Store
	authz    Authorizer
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(st store.Store, authz Authorizer, notifier notify.Notifier, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    st,
		authz:    authz,
		notifier: notifier,
		log:      log.With().Str("component", "notes").Logger(),
		now:      time.Now,
	}
}

func (s *Service) emit(ctx context.Context, action models.WebhookAction, actorID int64, note *models.Note) {
	ev := notify.NewEvent(action, actorID, note)
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("action", string(action)).Int64("note_id", ev.NoteID).Msg("notify failed")
	}
}

// owned loads a note the actor must own. Strangers get the same answer as
// for a missing note; grantees get NotAuthorized.
func (s *Service) owned(ctx context.Context, noteID, actorID int64) (*models.Note, error) {
	note, _, err := s.authz.Authorize(ctx, noteID, actorID, models.PermissionRead)
	if err != nil {
		return nil, err
	}
	if note.UserID != actorID {
		return nil, apperr.ErrNotAuthorized
	}
	return note, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.Note, error) {
	return s.store.ListNotes(ctx, userID, false)
}

// Get returns a note the actor can read together with the resolved permission.
func (s *Service) Get(ctx context.Context, noteID, actorID int64) (*models.Note, models.Permission, error) {
	note, perm, err := s.authz.Authorize(ctx, noteID, actorID, models.PermissionRead)
	if err != nil {
		return nil, perm, err
	}
	if note.IsTemplate {
		return nil, models.PermissionNone, apperr.ErrNoteNotFound
	}
	return note, perm, nil
}

func (s *Service) Create(ctx context.Context, actorID int64, in Input) (*models.Note, error) {
	note, err := s.create(ctx, actorID, in, false)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.WebhookNoteCreated, actorID, note)
	return note, nil
}

func (s *Service) create(ctx context.Context, actorID int64, in Input, template bool) (*models.Note, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.validate(); err != nil {
		return nil, err
	}
	if template && in.IsPinned {
		return nil, apperr.ErrTemplateCannotBePinned
	}
	note := &models.Note{
		UserID:     actorID,
		Title:      in.Title,
		Content:    in.Content,
		Color:      in.Color,
		IsPinned:   in.IsPinned,
		IsTemplate: template,
		Checkboxes: append([]models.Checkbox{}, in.Checkboxes...),
	}
	if err := s.store.CreateNote(ctx, note); err != nil {
		s.log.Error().Err(err).Str("op", "CreateNote").Int64("actor_id", actorID).Msg("insert note failed")
		return nil, err
	}
	return note, nil
}

// Update changes a note the actor can write. Pinning stays with the owner.
func (s *Service) Update(ctx context.Context, noteID, actorID int64, p Patch) (*models.Note, error) {
	note, _, err := s.authz.Authorize(ctx, noteID, actorID, models.PermissionWrite)
	if err != nil {
		return nil, err
	}
	if note.IsTemplate {
		return nil, apperr.ErrNoteNotFound
	}
	if p.IsPinned != nil && note.UserID != actorID {
		return nil, apperr.ErrNotAuthorized
	}
	updated, err := s.update(ctx, note, p)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.WebhookNoteUpdated, actorID, updated)
	return updated, nil
}

func (s *Service) update(ctx context.Context, note *models.Note, p Patch) (*models.Note, error) {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if note.IsTemplate && p.IsPinned != nil && *p.IsPinned {
		return nil, apperr.ErrTemplateCannotBePinned
	}
	updated, err := s.store.UpdateNote(ctx, note.ID, store.NoteUpdate{
		Title:      p.Title,
		Content:    p.Content,
		Color:      p.Color,
		IsPinned:   p.IsPinned,
		Checkboxes: p.Checkboxes,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNoteNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("op", "UpdateNote").Int64("note_id", note.ID).Msg("update note failed")
		return nil, err
	}
	return updated, nil
}

// Delete removes a note with its checkboxes, grants and invitations.
func (s *Service) Delete(ctx context.Context, noteID, actorID int64) error {
	note, err := s.owned(ctx, noteID, actorID)
	if err != nil {
		return err
	}
	if note.IsTemplate {
		return apperr.ErrNoteNotFound
	}
	if err := s.delete(ctx, note); err != nil {
		return err
	}
	s.emit(ctx, models.WebhookNoteDeleted, actorID, &models.Note{ID: noteID, UserID: note.UserID})
	return nil
}

func (s *Service) delete(ctx context.Context, note *models.Note) error {
	err := s.store.DeleteNote(ctx, note.ID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNoteNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("op", "DeleteNote").Int64("note_id", note.ID).Msg("delete note failed")
	}
	return err
}

// UpdateCheckbox toggles one checkbox; WRITE on the parent note is required.
func (s *Service) UpdateCheckbox(ctx context.Context, checkboxID, actorID int64, checked bool) (*models.Checkbox, error) {
	cb, err := s.store.GetCheckbox(ctx, checkboxID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrCheckboxNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.Authorize(ctx, cb.NoteID, actorID, models.PermissionWrite); err != nil {
		if errors.Is(err, apperr.ErrNoteNotFound) {
			return nil, apperr.ErrCheckboxNotFound
		}
		return nil, err
	}

	updated, err := s.store.SetCheckboxChecked(ctx, checkboxID, checked)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrCheckboxNotFound
	}
	if err != nil {
		return nil, err
	}
	if note, err := s.store.GetNote(ctx, cb.NoteID); err == nil {
		s.emit(ctx, models.WebhookNoteUpdated, actorID, note)
	}
	return updated, nil
}

// SetPinned pins or unpins an owned note without touching updated_at.
func (s *Service) SetPinned(ctx context.Context, noteID, actorID int64, pinned bool) (*models.Note, error) {
	note, err := s.owned(ctx, noteID, actorID)
	if err != nil {
		return nil, err
	}
	if note.IsTemplate {
		return nil, apperr.ErrTemplateCannotBePinned
	}
	updated, err := s.store.UpdateNote(ctx, noteID, store.NoteUpdate{IsPinned: &pinned, KeepUpdatedAt: true})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNoteNotFound
	}
	return updated, err
}

// Reorder sets the display order of the actor's notes to the given sequence.
func (s *Service) Reorder(ctx context.Context, actorID int64, noteIDs []int64) error {
	if len(noteIDs) == 0 {
		return apperr.Validation("noteIds must not be empty")
	}
	err := s.store.ReorderNotes(ctx, actorID, noteIDs)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNotAuthorized.WithMessage("one or more notes do not belong to you")
	}
	return err
}
