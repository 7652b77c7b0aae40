package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"keepit/internal/models"
	"keepit/internal/store"
)

const noteColumns = "id, user_id, title, content, color, is_pinned, is_shared, is_template, sort_order, created_at, updated_at"

func scanNote(row rowScanner, n *models.Note) error {
	return row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Color,
		&n.IsPinned, &n.IsShared, &n.IsTemplate, &n.Order, &n.CreatedAt, &n.UpdatedAt)
}

func (s *SQLStore) CreateNote(ctx context.Context, note *models.Note) error {
	now := s.now()
	note.CreatedAt, note.UpdatedAt = now, now
	return s.withTx(ctx, "CreateNote", func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx, `INSERT INTO notes (user_id, title, content, color, is_pinned, is_shared, is_template, sort_order, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			note.UserID, note.Title, note.Content, note.Color, note.IsPinned, false, note.IsTemplate, note.Order, now, now)
		if err != nil {
			return err
		}
		note.ID = id
		note.IsShared = false
		return s.insertCheckboxes(ctx, tx, note.ID, note.Checkboxes)
	})
}

func (s *SQLStore) insertCheckboxes(ctx context.Context, q querier, noteID int64, boxes []models.Checkbox) error {
	for i := range boxes {
		id, err := s.insert(ctx, q, "INSERT INTO checkboxes (note_id, label, checked, position) VALUES (?, ?, ?, ?)",
			noteID, boxes[i].Label, boxes[i].Checked, i)
		if err != nil {
			return err
		}
		boxes[i].ID = id
		boxes[i].NoteID = noteID
	}
	return nil
}

func (s *SQLStore) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	return s.getNote(ctx, s.db, id)
}

func (s *SQLStore) getNote(ctx context.Context, q querier, id int64) (*models.Note, error) {
	var n models.Note
	if err := scanNote(s.queryRow(ctx, q, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id), &n); err != nil {
		return nil, mapErr(err)
	}
	notes := []models.Note{n}
	if err := s.loadCheckboxes(ctx, q, notes); err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// ListNotes returns the user's notes (or templates) pinned first, then by
// manual order, newest first within the same position.
func (s *SQLStore) ListNotes(ctx context.Context, userID int64, templates bool) ([]models.Note, error) {
	notes, err := s.listNotes(ctx, s.db,
		"SELECT "+noteColumns+" FROM notes WHERE user_id = ? AND is_template = ? ORDER BY is_pinned DESC, sort_order ASC, id DESC",
		userID, templates)
	if err != nil {
		return nil, err
	}
	if err := s.loadCheckboxes(ctx, s.db, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *SQLStore) listNotes(ctx context.Context, q querier, query string, args ...any) ([]models.Note, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := scanNote(rows, &n); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// loadCheckboxes fills Checkboxes on every note with one IN query.
func (s *SQLStore) loadCheckboxes(ctx context.Context, q querier, notes []models.Note) error {
	if len(notes) == 0 {
		return nil
	}
	args := make([]any, len(notes))
	index := make(map[int64]int, len(notes))
	for i := range notes {
		args[i] = notes[i].ID
		index[notes[i].ID] = i
		notes[i].Checkboxes = []models.Checkbox{}
	}

	rows, err := s.query(ctx, q,
		"SELECT id, note_id, label, checked FROM checkboxes WHERE note_id IN ("+placeholders(len(notes))+") ORDER BY position ASC, id ASC",
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Checkbox
		if err := rows.Scan(&c.ID, &c.NoteID, &c.Label, &c.Checked); err != nil {
			return err
		}
		if i, ok := index[c.NoteID]; ok {
			notes[i].Checkboxes = append(notes[i].Checkboxes, c)
		}
	}
	return rows.Err()
}

func (s *SQLStore) UpdateNote(ctx context.Context, id int64, upd store.NoteUpdate) (*models.Note, error) {
	var out *models.Note
	err := s.withTx(ctx, "UpdateNote", func(tx *sql.Tx) error {
		var (
			sets []string
			args []any
		)
		if !upd.KeepUpdatedAt {
			sets = append(sets, "updated_at = ?")
			args = append(args, s.now())
		}
		if upd.Title != nil {
			sets = append(sets, "title = ?")
			args = append(args, *upd.Title)
		}
		if upd.Content != nil {
			sets = append(sets, "content = ?")
			args = append(args, *upd.Content)
		}
		if upd.Color != nil {
			sets = append(sets, "color = ?")
			args = append(args, *upd.Color)
		}
		if upd.IsPinned != nil {
			sets = append(sets, "is_pinned = ?")
			args = append(args, *upd.IsPinned)
		}
		if len(sets) == 0 {
			sets = append(sets, "id = id")
		}
		args = append(args, id)

		if err := s.execOne(ctx, tx, "UPDATE notes SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return err
		}

		if upd.Checkboxes != nil {
			if _, err := s.exec(ctx, tx, "DELETE FROM checkboxes WHERE note_id = ?", id); err != nil {
				return err
			}
			if err := s.insertCheckboxes(ctx, tx, id, *upd.Checkboxes); err != nil {
				return err
			}
		}

		n, err := s.getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// DeleteNote removes the note together with its checkboxes, ledger rows and
// invitations.
func (s *SQLStore) DeleteNote(ctx context.Context, id int64) error {
	return s.withTx(ctx, "DeleteNote", func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM checkboxes WHERE note_id = ?",
			"DELETE FROM note_access WHERE note_id = ?",
			"DELETE FROM note_invitations WHERE note_id = ?",
		} {
			if _, err := s.exec(ctx, tx, stmt, id); err != nil {
				return err
			}
		}
		return s.execOne(ctx, tx, "DELETE FROM notes WHERE id = ?", id)
	})
}

// CountNotes counts notes or templates. A zero userID counts the whole instance.
func (s *SQLStore) CountNotes(ctx context.Context, userID int64, templates bool) (int, error) {
	if userID == 0 {
		return s.count(ctx, s.db, "SELECT COUNT(*) FROM notes WHERE is_template = ?", templates)
	}
	return s.count(ctx, s.db, "SELECT COUNT(*) FROM notes WHERE user_id = ? AND is_template = ?", userID, templates)
}

// ReorderNotes assigns sort positions in the given order. Every id must
// belong to userID or nothing is changed.
func (s *SQLStore) ReorderNotes(ctx context.Context, userID int64, noteIDs []int64) error {
	seen := make(map[int64]bool, len(noteIDs))
	args := []any{userID}
	for _, id := range noteIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		args = append(args, id)
	}
	if len(seen) == 0 {
		return nil
	}

	return s.withTx(ctx, "ReorderNotes", func(tx *sql.Tx) error {
		owned, err := s.count(ctx, tx,
			"SELECT COUNT(*) FROM notes WHERE user_id = ? AND id IN ("+placeholders(len(seen))+")", args...)
		if err != nil {
			return err
		}
		if owned != len(seen) {
			return store.ErrNotFound
		}
		pos := 0
		placed := make(map[int64]bool, len(seen))
		for _, id := range noteIDs {
			if placed[id] {
				continue
			}
			placed[id] = true
			if _, err := s.exec(ctx, tx, "UPDATE notes SET sort_order = ? WHERE id = ?", pos, id); err != nil {
				return err
			}
			pos++
		}
		return nil
	})
}

func (s *SQLStore) GetCheckbox(ctx context.Context, id int64) (*models.Checkbox, error) {
	return s.getCheckbox(ctx, s.db, id)
}

func (s *SQLStore) getCheckbox(ctx context.Context, q querier, id int64) (*models.Checkbox, error) {
	var c models.Checkbox
	err := s.queryRow(ctx, q, "SELECT id, note_id, label, checked FROM checkboxes WHERE id = ?", id).
		Scan(&c.ID, &c.NoteID, &c.Label, &c.Checked)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *SQLStore) SetCheckboxChecked(ctx context.Context, id int64, checked bool) (*models.Checkbox, error) {
	var out *models.Checkbox
	err := s.withTx(ctx, "SetCheckboxChecked", func(tx *sql.Tx) error {
		c, err := s.getCheckbox(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, "UPDATE checkboxes SET checked = ? WHERE id = ?", checked, id); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, "UPDATE notes SET updated_at = ? WHERE id = ?", s.now(), c.NoteID); err != nil {
			return err
		}
		c.Checked = checked
		out = c
		return nil
	})
	return out, err
}

// ConvertNoteToTemplate turns a note into a template. Pending invitations are
// revoked before the ledger is cleared so a concurrent accept either lands
// first and is wiped, or finds its invitation no longer pending.
func (s *SQLStore) ConvertNoteToTemplate(ctx context.Context, noteID int64, now time.Time) (*models.Note, error) {
	var out *models.Note
	err := s.withTx(ctx, "ConvertNoteToTemplate", func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx,
			"UPDATE note_invitations SET status = ?, updated_at = ? WHERE note_id = ? AND status = ?",
			models.InvitationRevoked, now, noteID, models.InvitationPending); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, "DELETE FROM note_access WHERE note_id = ?", noteID); err != nil {
			return err
		}
		if err := s.execOne(ctx, tx,
			"UPDATE notes SET is_template = ?, is_shared = ?, is_pinned = ?, updated_at = ? WHERE id = ? AND is_template = ?",
			true, false, false, now, noteID, false); err != nil {
			return err
		}
		n, err := s.getNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

func (s *SQLStore) ConvertTemplateToNote(ctx context.Context, noteID int64) (*models.Note, error) {
	var out *models.Note
	err := s.withTx(ctx, "ConvertTemplateToNote", func(tx *sql.Tx) error {
		if err := s.execOne(ctx, tx,
			"UPDATE notes SET is_template = ?, updated_at = ? WHERE id = ? AND is_template = ?",
			false, s.now(), noteID, true); err != nil {
			return err
		}
		n, err := s.getNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}
