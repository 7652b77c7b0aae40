package sharing

import (
	"context"
	"errors"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"
)

// GetInvitationByToken is the public lookup behind an invitation link. The
// token is not echoed back.
func (s *Service) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	now := s.clock()
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	if Expired(inv, now) {
		if err := s.expire(ctx, inv, now); err != nil {
			return nil, err
		}
		return nil, apperr.ErrInvitationExpired
	}
	out := inv.Redacted()
	return &out, nil
}

// PendingInvitations lists live invitations addressed to email.
func (s *Service) PendingInvitations(ctx context.Context, email string) ([]models.Invitation, error) {
	now := s.clock()
	all, err := s.store.ListInvitationsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	out := []models.Invitation{}
	for i := range all {
		if all[i].Status == models.InvitationPending && !Expired(&all[i], now) {
			out = append(out, all[i].Redacted())
		}
	}
	return out, nil
}

// SentInvitations lists everything userID has sent, tokens included.
func (s *Service) SentInvitations(ctx context.Context, userID int64) ([]models.Invitation, error) {
	now := s.clock()
	sent, err := s.store.ListInvitationsBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range sent {
		sent[i].Status = EffectiveStatus(&sent[i], now)
	}
	return sent, nil
}

// NoteInvitations lists the invitations of a note for its owner. Accepted
// ones report whether the grant still exists.
func (s *Service) NoteInvitations(ctx context.Context, noteID, ownerID int64) ([]models.NoteInvitation, error) {
	now := s.clock()
	note, err := s.store.GetNote(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotNoteOwner
	}
	if err != nil {
		return nil, err
	}
	if note.UserID != ownerID {
		return nil, apperr.ErrNotNoteOwner
	}

	invitations, err := s.store.ListInvitationsByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.store.ListAccessByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	current := make(map[int64]models.Permission, len(ledger))
	for _, a := range ledger {
		current[a.UserID] = a.Permission
	}

	out := make([]models.NoteInvitation, 0, len(invitations))
	for i := range invitations {
		ni := models.NoteInvitation{Invitation: invitations[i]}
		ni.Status = EffectiveStatus(&invitations[i], now)
		if ni.Status == models.InvitationAccepted && ni.AcceptedByID != nil {
			if perm, ok := current[*ni.AcceptedByID]; ok {
				ni.HasCurrentAccess = true
				ni.CurrentPermission = &perm
			}
		}
		out = append(out, ni)
	}
	return out, nil
}

// SharedNotes lists the notes userID was granted, newest grant first.
func (s *Service) SharedNotes(ctx context.Context, userID int64) ([]models.SharedNote, error) {
	return s.store.ListSharedNotes(ctx, userID)
}

// NoteAccess lists the ledger of a note. The owner and ADMIN grantees may
// read it.
func (s *Service) NoteAccess(ctx context.Context, noteID, actorID int64) ([]models.Access, error) {
	if _, _, err := s.Authorize(ctx, noteID, actorID, models.PermissionAdmin); err != nil {
		return nil, err
	}
	return s.store.ListAccessByNote(ctx, noteID)
}

// Stats counts invitations sent by userID, received at its email, and the
// received ones still pending.
func (s *Service) Stats(ctx context.Context, userID int64) (*models.InvitationStats, error) {
	now := s.clock()
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	sent, err := s.store.ListInvitationsBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	received, err := s.store.ListInvitationsByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	stats := &models.InvitationStats{Sent: len(sent), Received: len(received)}
	for i := range received {
		if received[i].Status == models.InvitationPending && !Expired(&received[i], now) {
			stats.Pending++
		}
	}
	return stats, nil
}
