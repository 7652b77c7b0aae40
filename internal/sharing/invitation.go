package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"
)

// InviteRequest describes an owner's offer to share one note with one email.
// The HTTP layer bounds ExpiresInDays; the service only requires it to be
// positive.
type InviteRequest struct {
	NoteID        int64
	InviterID     int64
	Email         string
	Permission    models.Permission
	Message       string
	ExpiresInDays int
}

// CreateInvitation issues a PENDING invitation and returns it with its token.
// Only the note's owner may invite.
func (s *Service) CreateInvitation(ctx context.Context, req InviteRequest) (*models.Invitation, error) {
	log := s.log.With().Str("op", "CreateInvitation").Int64("actor_id", req.InviterID).Int64("note_id", req.NoteID).Logger()
	now := s.clock()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	if !req.Permission.Grantable() {
		return nil, apperr.Validation("permission must be READ, WRITE or ADMIN")
	}
	if req.ExpiresInDays < 1 {
		return nil, apperr.Validation("expiry must be at least one day")
	}

	note, err := s.store.GetNote(ctx, req.NoteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotNoteOwner
	}
	if err != nil {
		return nil, err
	}
	if note.UserID != req.InviterID {
		return nil, apperr.ErrNotNoteOwner
	}
	if note.IsTemplate {
		return nil, apperr.ErrTemplateNotShareable
	}

	inviter, err := s.store.GetUserByID(ctx, req.InviterID)
	if err != nil {
		return nil, fmt.Errorf("load inviter: %w", err)
	}
	if inviter.Email == email {
		return nil, apperr.ErrSelfInvitation
	}

	existing, err := s.store.FindInvitation(ctx, note.ID, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	case existing.Status == models.InvitationPending:
		if !Expired(existing, now) {
			return nil, apperr.ErrInvitationAlreadyPending
		}
		if err := s.expire(ctx, existing, now); err != nil {
			return nil, err
		}
	}

	invitee, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		_, err := s.store.GetAccess(ctx, note.ID, invitee.ID)
		if err == nil {
			return nil, apperr.ErrAlreadyHasAccess
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}

	inv := &models.Invitation{
		NoteID:       note.ID,
		InvitedEmail: email,
		InvitedByID:  inviter.ID,
		Permission:   req.Permission,
		Message:      req.Message,
		Token:        token,
		ExpiresAt:    now.AddDate(0, 0, req.ExpiresInDays),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.ErrInvitationAlreadyPending
		}
		log.Error().Err(err).Msg("insert invitation failed")
		return nil, err
	}
	inv.NoteTitle = note.Title
	inv.InvitedBy = &models.UserRef{ID: inviter.ID, Email: inviter.Email}

	log.Info().Int64("invitation_id", inv.ID).Str("permission", string(inv.Permission)).Msg("invitation created")
	return inv, nil
}

// loadForRecipient resolves a token for the invitee. Overdue invitations are
// expired on the spot.
func (s *Service) loadForRecipient(ctx context.Context, token string, userID int64) (*models.Invitation, error) {
	now := s.clock()
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	if inv.Status.Terminal() {
		return nil, apperr.ErrInvitationNotPending
	}
	if Expired(inv, now) {
		if err := s.expire(ctx, inv, now); err != nil {
			return nil, err
		}
		return nil, apperr.ErrInvitationExpired
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.Email != inv.InvitedEmail {
		return nil, apperr.ErrWrongRecipient
	}
	return inv, nil
}

// AcceptInvitation grants the invitee the invited permission. The ledger row
// and the ACCEPTED status are written in one transaction.
func (s *Service) AcceptInvitation(ctx context.Context, token string, userID int64) (*models.Access, error) {
	inv, err := s.loadForRecipient(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("op", "AcceptInvitation").Int64("actor_id", userID).Int64("note_id", inv.NoteID).Logger()

	access, err := s.store.AcceptInvitation(ctx, inv.ID, userID, s.clock())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.ErrInvitationNotPending
	case errors.Is(err, store.ErrConflict):
		return nil, apperr.ErrAlreadyHasAccess
	case err != nil:
		log.Error().Err(err).Int64("invitation_id", inv.ID).Msg("accept failed")
		return nil, err
	}

	log.Info().Int64("invitation_id", inv.ID).Str("permission", string(access.Permission)).Msg("invitation accepted")
	return access, nil
}

func (s *Service) DeclineInvitation(ctx context.Context, token string, userID int64) error {
	inv, err := s.loadForRecipient(ctx, token, userID)
	if err != nil {
		return err
	}
	err = s.store.TransitionInvitation(ctx, inv.ID, models.InvitationDeclined, s.clock())
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrInvitationNotPending
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("op", "DeclineInvitation").Int64("actor_id", userID).Int64("note_id", inv.NoteID).
		Int64("invitation_id", inv.ID).Msg("invitation declined")
	return nil
}

// RevokeInvitation withdraws a pending invitation. Accepted invitations are
// left alone; their grant is removed through RemoveAccess.
func (s *Service) RevokeInvitation(ctx context.Context, invitationID, callerID int64) error {
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrInvitationNotFound
	}
	if err != nil {
		return err
	}

	note, err := s.store.GetNote(ctx, inv.NoteID)
	if err != nil {
		return fmt.Errorf("load invitation note: %w", err)
	}
	if note.UserID != callerID {
		return apperr.ErrNotAuthorized
	}

	switch {
	case inv.Status == models.InvitationAccepted:
		return apperr.ErrCannotRevokeAccepted
	case inv.Status.Terminal():
		return apperr.ErrInvitationNotPending
	}

	err = s.store.TransitionInvitation(ctx, inv.ID, models.InvitationRevoked, s.clock())
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrInvitationNotPending
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("op", "RevokeInvitation").Int64("actor_id", callerID).Int64("note_id", inv.NoteID).
		Int64("invitation_id", inv.ID).Msg("invitation revoked")
	return nil
}
