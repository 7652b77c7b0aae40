package sqlstore

import (
	"context"
	"database/sql"

	"keepit/internal/models"
)

// refreshShared recomputes notes.is_shared from the ledger and the pending
// invitations. Every statement that changes either one calls it inside its
// own transaction.
func (s *SQLStore) refreshShared(ctx context.Context, q querier, noteID int64) error {
	_, err := s.exec(ctx, q, `UPDATE notes SET is_shared = (
			EXISTS (SELECT 1 FROM note_access WHERE note_id = ?)
			OR EXISTS (SELECT 1 FROM note_invitations WHERE note_id = ? AND status = ?)
		) WHERE id = ?`,
		noteID, noteID, models.InvitationPending, noteID)
	return err
}

func (s *SQLStore) GetAccess(ctx context.Context, noteID, userID int64) (*models.Access, error) {
	var a models.Access
	err := s.queryRow(ctx, s.db,
		"SELECT id, note_id, user_id, permission, granted_by, granted_at FROM note_access WHERE note_id = ? AND user_id = ?",
		noteID, userID).Scan(&a.ID, &a.NoteID, &a.UserID, &a.Permission, &a.GrantedBy, &a.GrantedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

// ListAccessByNote returns the note's ledger with grantee and granter emails.
func (s *SQLStore) ListAccessByNote(ctx context.Context, noteID int64) ([]models.Access, error) {
	rows, err := s.query(ctx, s.db, `SELECT a.id, a.note_id, a.user_id, a.permission, a.granted_by, a.granted_at,
			u.email, COALESCE(g.email, '')
		FROM note_access a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN users g ON g.id = a.granted_by
		WHERE a.note_id = ?
		ORDER BY a.granted_at ASC, a.id ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Access{}
	for rows.Next() {
		var (
			a            models.Access
			userEmail    string
			granterEmail string
		)
		if err := rows.Scan(&a.ID, &a.NoteID, &a.UserID, &a.Permission, &a.GrantedBy, &a.GrantedAt, &userEmail, &granterEmail); err != nil {
			return nil, err
		}
		a.User = &models.UserRef{ID: a.UserID, Email: userEmail}
		a.Granter = &models.UserRef{ID: a.GrantedBy, Email: granterEmail}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListSharedNotes returns every note userID holds a ledger row on, with the
// owner and the held permission.
func (s *SQLStore) ListSharedNotes(ctx context.Context, userID int64) ([]models.SharedNote, error) {
	rows, err := s.query(ctx, s.db, `SELECT n.id, n.user_id, n.title, n.content, n.color, n.is_pinned, n.is_shared,
			n.is_template, n.sort_order, n.created_at, n.updated_at, o.email, a.permission, a.granted_at
		FROM note_access a
		JOIN notes n ON n.id = a.note_id
		JOIN users o ON o.id = n.user_id
		WHERE a.user_id = ?
		ORDER BY a.granted_at DESC, a.id DESC`, userID)
	if err != nil {
		return nil, err
	}

	var (
		shared []models.SharedNote
		notes  []models.Note
	)
	for rows.Next() {
		var (
			sn         models.SharedNote
			ownerEmail string
		)
		n := &sn.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Color, &n.IsPinned, &n.IsShared,
			&n.IsTemplate, &n.Order, &n.CreatedAt, &n.UpdatedAt, &ownerEmail, &sn.Permission, &sn.SharedAt); err != nil {
			rows.Close()
			return nil, err
		}
		sn.SharedBy = models.UserRef{ID: n.UserID, Email: ownerEmail}
		shared = append(shared, sn)
		notes = append(notes, sn.Note)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadCheckboxes(ctx, s.db, notes); err != nil {
		return nil, err
	}
	out := make([]models.SharedNote, len(shared))
	for i := range shared {
		out[i] = shared[i]
		out[i].Note = notes[i]
	}
	return out, nil
}

// RemoveAccess deletes one ledger row. The invitation that produced it, if
// any, stays ACCEPTED.
func (s *SQLStore) RemoveAccess(ctx context.Context, noteID, userID int64) error {
	return s.withTx(ctx, "RemoveAccess", func(tx *sql.Tx) error {
		if err := s.execOne(ctx, tx, "DELETE FROM note_access WHERE note_id = ? AND user_id = ?", noteID, userID); err != nil {
			return err
		}
		return s.refreshShared(ctx, tx, noteID)
	})
}

func (s *SQLStore) CountAccess(ctx context.Context, noteID int64) (int, error) {
	return s.count(ctx, s.db, "SELECT COUNT(*) FROM note_access WHERE note_id = ?", noteID)
}
