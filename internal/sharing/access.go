package sharing

import (
	"context"
	"errors"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"
)

// Resolve returns the permission actorID holds on the note: ADMIN for the
// owner, the ledger permission for a grantee, NONE otherwise (including
// when the note does not exist).
func (s *Service) Resolve(ctx context.Context, noteID, actorID int64) (models.Permission, error) {
	_, perm, err := s.resolve(ctx, noteID, actorID)
	return perm, err
}

func (s *Service) resolve(ctx context.Context, noteID, actorID int64) (*models.Note, models.Permission, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.PermissionNone, nil
	}
	if err != nil {
		return nil, models.PermissionNone, err
	}
	if note.UserID == actorID {
		return note, models.PermissionAdmin, nil
	}

	access, err := s.store.GetAccess(ctx, noteID, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return note, models.PermissionNone, nil
	}
	if err != nil {
		return nil, models.PermissionNone, err
	}
	return note, access.Permission, nil
}

// Authorize loads the note and checks that actorID holds at least need on
// it. With no permission at all the note is reported missing so its
// existence stays hidden; a weaker permission yields NotAuthorized.
func (s *Service) Authorize(ctx context.Context, noteID, actorID int64, need models.Permission) (*models.Note, models.Permission, error) {
	note, perm, err := s.resolve(ctx, noteID, actorID)
	if err != nil {
		return nil, models.PermissionNone, err
	}
	if perm == models.PermissionNone {
		return nil, perm, apperr.ErrNoteNotFound
	}
	if !perm.Allows(need) {
		return nil, perm, apperr.ErrNotAuthorized
	}
	return note, perm, nil
}

// RemoveAccess deletes targetID's ledger row on the note. The owner may
// remove anyone; a grantee may only remove itself.
func (s *Service) RemoveAccess(ctx context.Context, noteID, targetID, callerID int64) error {
	log := s.log.With().Str("op", "RemoveAccess").Int64("actor_id", callerID).Int64("note_id", noteID).Logger()

	note, err := s.store.GetNote(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNoteNotFound
	}
	if err != nil {
		return err
	}
	if note.UserID != callerID && targetID != callerID {
		return apperr.ErrNotAuthorized
	}

	err = s.store.RemoveAccess(ctx, noteID, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNoSuchAccess
	}
	if err != nil {
		log.Error().Err(err).Int64("target_id", targetID).Msg("remove access failed")
		return err
	}
	log.Info().Int64("target_id", targetID).Msg("access removed")
	return nil
}
