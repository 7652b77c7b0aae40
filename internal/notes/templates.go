package notes

import (
	"context"
	"errors"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"
)

// template loads a template owned by actorID. Templates are never shared,
// so anything else reads as missing.
func (s *Service) template(ctx context.Context, templateID, actorID int64) (*models.Note, error) {
	t, err := s.store.GetNote(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	if !t.IsTemplate || t.UserID != actorID {
		return nil, apperr.ErrTemplateNotFound
	}
	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context, userID int64) ([]models.Note, error) {
	return s.store.ListNotes(ctx, userID, true)
}

func (s *Service) GetTemplate(ctx context.Context, templateID, actorID int64) (*models.Note, error) {
	return s.template(ctx, templateID, actorID)
}

func (s *Service) CreateTemplate(ctx context.Context, actorID int64, in Input) (*models.Note, error) {
	return s.create(ctx, actorID, in, true)
}

func (s *Service) UpdateTemplate(ctx context.Context, templateID, actorID int64, p Patch) (*models.Note, error) {
	t, err := s.template(ctx, templateID, actorID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, t, p)
}

func (s *Service) DeleteTemplate(ctx context.Context, templateID, actorID int64) error {
	t, err := s.template(ctx, templateID, actorID)
	if err != nil {
		return err
	}
	return s.delete(ctx, t)
}

// CreateFromTemplate copies a template into a new unpinned note. Non-empty
// overrides replace the template's title, content and color.
func (s *Service) CreateFromTemplate(ctx context.Context, templateID, actorID int64, o Overrides) (*models.Note, error) {
	t, err := s.template(ctx, templateID, actorID)
	if err != nil {
		return nil, err
	}

	in := Input{Title: t.Title, Content: t.Content, Color: t.Color}
	if o.Title != "" {
		in.Title = o.Title
	}
	if o.Content != "" {
		in.Content = o.Content
	}
	if o.Color != "" {
		in.Color = o.Color
	}
	for _, cb := range t.Checkboxes {
		in.Checkboxes = append(in.Checkboxes, models.Checkbox{Label: cb.Label, Checked: cb.Checked})
	}

	note, err := s.create(ctx, actorID, in, false)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.WebhookNoteCreated, actorID, note)
	return note, nil
}

// ConvertToTemplate turns an owned note into a template. Its grants are
// deleted and its pending invitations revoked in the same transaction.
func (s *Service) ConvertToTemplate(ctx context.Context, noteID, actorID int64) (*models.Note, error) {
	note, err := s.owned(ctx, noteID, actorID)
	if err != nil {
		return nil, err
	}
	if note.IsTemplate {
		return nil, apperr.ErrNoteNotFound
	}
	t, err := s.store.ConvertNoteToTemplate(ctx, noteID, s.now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNoteNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("op", "ConvertToTemplate").Int64("actor_id", actorID).Int64("note_id", noteID).Msg("convert failed")
		return nil, err
	}
	s.log.Info().Int64("actor_id", actorID).Int64("note_id", noteID).Msg("note converted to template")
	return t, nil
}

// ConvertToNote turns an owned template back into a plain, unshared note.
func (s *Service) ConvertToNote(ctx context.Context, templateID, actorID int64) (*models.Note, error) {
	if _, err := s.template(ctx, templateID, actorID); err != nil {
		return nil, err
	}
	n, err := s.store.ConvertTemplateToNote(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrTemplateNotFound
	}
	return n, err
}
