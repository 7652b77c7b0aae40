package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"keepit/internal/models"
	"keepit/internal/store"
)

const invitationSelect = `SELECT i.id, i.note_id, i.invited_email, i.invited_by_id, i.permission, i.message, i.token,
	i.status, i.expires_at, i.accepted_at, i.accepted_by_id, i.created_at, i.updated_at, n.title, u.email
	FROM note_invitations i
	JOIN notes n ON n.id = i.note_id
	JOIN users u ON u.id = i.invited_by_id`

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var (
		inv          models.Invitation
		acceptedAt   sql.NullTime
		acceptedByID sql.NullInt64
		inviterEmail string
	)
	err := row.Scan(&inv.ID, &inv.NoteID, &inv.InvitedEmail, &inv.InvitedByID, &inv.Permission, &inv.Message, &inv.Token,
		&inv.Status, &inv.ExpiresAt, &acceptedAt, &acceptedByID, &inv.CreatedAt, &inv.UpdatedAt, &inv.NoteTitle, &inviterEmail)
	if err != nil {
		return nil, err
	}
	inv.AcceptedAt = timePtr(acceptedAt)
	if acceptedByID.Valid {
		id := acceptedByID.Int64
		inv.AcceptedByID = &id
	}
	inv.InvitedBy = &models.UserRef{ID: inv.InvitedByID, Email: inviterEmail}
	return &inv, nil
}

// CreateInvitation stores a PENDING invitation. Any earlier non-pending row
// for the same (note, email) pair is replaced in the same transaction; a
// row that is still pending makes the insert fail with store.ErrConflict.
func (s *SQLStore) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	return s.withTx(ctx, "CreateInvitation", func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx,
			"DELETE FROM note_invitations WHERE note_id = ? AND invited_email = ? AND status <> ?",
			inv.NoteID, inv.InvitedEmail, models.InvitationPending); err != nil {
			return err
		}
		id, err := s.insert(ctx, tx, `INSERT INTO note_invitations
			(note_id, invited_email, invited_by_id, permission, message, token, status, expires_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.NoteID, inv.InvitedEmail, inv.InvitedByID, inv.Permission, inv.Message, inv.Token,
			models.InvitationPending, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)
		if err != nil {
			return err
		}
		inv.ID = id
		inv.Status = models.InvitationPending
		return s.refreshShared(ctx, tx, inv.NoteID)
	})
}

func (s *SQLStore) GetInvitation(ctx context.Context, id int64) (*models.Invitation, error) {
	return s.getInvitation(ctx, s.db, invitationSelect+" WHERE i.id = ?", id)
}

func (s *SQLStore) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	return s.getInvitation(ctx, s.db, invitationSelect+" WHERE i.token = ?", token)
}

func (s *SQLStore) FindInvitation(ctx context.Context, noteID int64, email string) (*models.Invitation, error) {
	return s.getInvitation(ctx, s.db, invitationSelect+" WHERE i.note_id = ? AND i.invited_email = ?", noteID, email)
}

func (s *SQLStore) getInvitation(ctx context.Context, q querier, query string, args ...any) (*models.Invitation, error) {
	inv, err := scanInvitation(s.queryRow(ctx, q, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return inv, nil
}

// TransitionInvitation moves a PENDING invitation to a terminal state. It
// returns store.ErrNotFound if the row is missing or no longer pending.
func (s *SQLStore) TransitionInvitation(ctx context.Context, id int64, to models.InvitationStatus, now time.Time) error {
	return s.withTx(ctx, "TransitionInvitation", func(tx *sql.Tx) error {
		var noteID int64
		if err := s.queryRow(ctx, tx, "SELECT note_id FROM note_invitations WHERE id = ?", id).Scan(&noteID); err != nil {
			return mapErr(err)
		}
		if err := s.execOne(ctx, tx,
			"UPDATE note_invitations SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
			to, now, id, models.InvitationPending); err != nil {
			return err
		}
		return s.refreshShared(ctx, tx, noteID)
	})
}

// AcceptInvitation marks the invitation ACCEPTED and grants userID its
// permission in one transaction. The conditional update claims the
// invitation first; an existing ledger row for the pair yields
// store.ErrConflict and rolls the claim back.
func (s *SQLStore) AcceptInvitation(ctx context.Context, id, userID int64, now time.Time) (*models.Access, error) {
	var out *models.Access
	err := s.withTx(ctx, "AcceptInvitation", func(tx *sql.Tx) error {
		if err := s.execOne(ctx, tx,
			"UPDATE note_invitations SET status = ?, accepted_at = ?, accepted_by_id = ?, updated_at = ? WHERE id = ? AND status = ?",
			models.InvitationAccepted, now, userID, now, id, models.InvitationPending); err != nil {
			return err
		}

		var (
			noteID     int64
			invitedBy  int64
			permission models.Permission
			isTemplate bool
		)
		err := s.queryRow(ctx, tx, `SELECT i.note_id, i.invited_by_id, i.permission, n.is_template
			FROM note_invitations i JOIN notes n ON n.id = i.note_id WHERE i.id = ?`, id).
			Scan(&noteID, &invitedBy, &permission, &isTemplate)
		if err != nil {
			return mapErr(err)
		}
		if isTemplate {
			return store.ErrNotFound
		}

		accessID, err := s.insert(ctx, tx,
			"INSERT INTO note_access (note_id, user_id, permission, granted_by, granted_at) VALUES (?, ?, ?, ?, ?)",
			noteID, userID, permission, invitedBy, now)
		if err != nil {
			return err
		}
		if err := s.refreshShared(ctx, tx, noteID); err != nil {
			return err
		}

		a := &models.Access{
			ID:         accessID,
			NoteID:     noteID,
			UserID:     userID,
			Permission: permission,
			GrantedBy:  invitedBy,
			GrantedAt:  now,
		}
		note, err := s.getNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		a.Note = note
		var granterEmail string
		if err := s.queryRow(ctx, tx, "SELECT email FROM users WHERE id = ?", invitedBy).Scan(&granterEmail); err != nil {
			return mapErr(err)
		}
		a.Granter = &models.UserRef{ID: invitedBy, Email: granterEmail}
		out = a
		return nil
	})
	return out, err
}

func (s *SQLStore) ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	return s.listInvitations(ctx, invitationSelect+" WHERE i.invited_email = ? ORDER BY i.created_at DESC, i.id DESC", email)
}

func (s *SQLStore) ListInvitationsBySender(ctx context.Context, userID int64) ([]models.Invitation, error) {
	return s.listInvitations(ctx, invitationSelect+" WHERE i.invited_by_id = ? ORDER BY i.created_at DESC, i.id DESC", userID)
}

func (s *SQLStore) ListInvitationsByNote(ctx context.Context, noteID int64) ([]models.Invitation, error) {
	return s.listInvitations(ctx, invitationSelect+" WHERE i.note_id = ? ORDER BY i.created_at DESC, i.id DESC", noteID)
}

func (s *SQLStore) ListPendingInvitations(ctx context.Context) ([]models.Invitation, error) {
	return s.listInvitations(ctx, invitationSelect+" WHERE i.status = ? ORDER BY i.id ASC", models.InvitationPending)
}

func (s *SQLStore) listInvitations(ctx context.Context, query string, args ...any) ([]models.Invitation, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}
