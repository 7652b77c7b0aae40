package sharing

import (
	"context"
	"errors"
	"time"

	"keepit/internal/models"
	"keepit/internal/store"
)

// Expired reports whether inv is PENDING and past its expiry at now.
func Expired(inv *models.Invitation, now time.Time) bool {
	return inv.Status == models.InvitationPending && now.After(inv.ExpiresAt)
}

// EffectiveStatus is the status inv would have once expiry is applied.
func EffectiveStatus(inv *models.Invitation, now time.Time) models.InvitationStatus {
	if Expired(inv, now) {
		return models.InvitationExpired
	}
	return inv.Status
}

// expire moves an overdue invitation to EXPIRED. Losing the race to another
// transition is not an error.
func (s *Service) expire(ctx context.Context, inv *models.Invitation, now time.Time) error {
	err := s.store.TransitionInvitation(ctx, inv.ID, models.InvitationExpired, now)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	inv.Status = models.InvitationExpired
	return nil
}

// ExpirePendingInvitations transitions every overdue PENDING invitation to
// EXPIRED and returns how many it moved. Running it again right away moves
// nothing.
func (s *Service) ExpirePendingInvitations(ctx context.Context) (int, error) {
	now := s.clock()
	pending, err := s.store.ListPendingInvitations(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range pending {
		inv := &pending[i]
		if !Expired(inv, now) {
			continue
		}
		err := s.store.TransitionInvitation(ctx, inv.ID, models.InvitationExpired, now)
		switch {
		case errors.Is(err, store.ErrNotFound):
			continue
		case err != nil:
			s.log.Error().Err(err).Str("op", "ExpirePendingInvitations").Int64("invitation_id", inv.ID).Msg("expire failed")
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.log.Info().Int("count", expired).Msg("expired pending invitations")
	}
	return expired, nil
}
