package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"keepit/internal/models"
	"keepit/internal/store"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *SQLStore, email string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "hash")
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return u
}

func mustNote(t *testing.T, s *SQLStore, owner int64, title string) *models.Note {
	t.Helper()
	n := &models.Note{UserID: owner, Title: title, Content: "body"}
	if err := s.CreateNote(context.Background(), n); err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}
	return n
}

func mustInvite(t *testing.T, s *SQLStore, note *models.Note, email, token string, now time.Time) *models.Invitation {
	t.Helper()
	inv := &models.Invitation{
		NoteID:       note.ID,
		InvitedEmail: email,
		InvitedByID:  note.UserID,
		Permission:   models.PermissionWrite,
		Token:        token,
		ExpiresAt:    now.Add(7 * 24 * time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateInvitation(context.Background(), inv); err != nil {
		t.Fatalf("Failed to create invitation: %v", err)
	}
	return inv
}

func isShared(t *testing.T, s *SQLStore, noteID int64) bool {
	t.Helper()
	n, err := s.GetNote(context.Background(), noteID)
	if err != nil {
		t.Fatalf("Failed to get note: %v", err)
	}
	return n.IsShared
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dbType: Postgres}
	got := s.rebind("SELECT * FROM notes WHERE id = ? AND user_id = ?")
	want := "SELECT * FROM notes WHERE id = $1 AND user_id = $2"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	s.dbType = SQLite
	if got := s.rebind("id = ?"); got != "id = ?" {
		t.Errorf("Expected sqlite query unchanged, got %q", got)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "alice@example.com")
	if u.ID == 0 {
		t.Fatal("Expected user id to be set")
	}

	if _, err := s.CreateUser(ctx, "alice@example.com", "other"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate email, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("Failed to get user by email: %v", err)
	}

	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	n, err := s.CountUsers(ctx)
	if err != nil || n != 1 {
		t.Errorf("Expected 1 user, got %d (%v)", n, err)
	}
}

func TestNoteCRUDWithCheckboxes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "owner@example.com")

	n := &models.Note{
		UserID: u.ID,
		Title:  "Groceries",
		Checkboxes: []models.Checkbox{
			{Label: "eggs"},
			{Label: "milk", Checked: true},
		},
	}
	if err := s.CreateNote(ctx, n); err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}
	if n.Checkboxes[0].ID == 0 || n.Checkboxes[1].NoteID != n.ID {
		t.Fatalf("Expected checkbox ids to be assigned, got %+v", n.Checkboxes)
	}

	got, err := s.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatalf("Failed to get note: %v", err)
	}
	if len(got.Checkboxes) != 2 || got.Checkboxes[0].Label != "eggs" || !got.Checkboxes[1].Checked {
		t.Errorf("Unexpected checkboxes: %+v", got.Checkboxes)
	}

	title := "Shopping"
	boxes := []models.Checkbox{{Label: "bread"}}
	updated, err := s.UpdateNote(ctx, n.ID, store.NoteUpdate{Title: &title, Checkboxes: &boxes})
	if err != nil {
		t.Fatalf("Failed to update note: %v", err)
	}
	if updated.Title != "Shopping" || len(updated.Checkboxes) != 1 || updated.Checkboxes[0].Label != "bread" {
		t.Errorf("Unexpected updated note: %+v", updated)
	}

	cb, err := s.SetCheckboxChecked(ctx, updated.Checkboxes[0].ID, true)
	if err != nil || !cb.Checked {
		t.Fatalf("Failed to toggle checkbox: %v", err)
	}

	if err := s.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("Failed to delete note: %v", err)
	}
	if _, err := s.GetNote(ctx, n.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteNote(ctx, n.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListAndReorderNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "owner@example.com")
	other := mustUser(t, s, "other@example.com")

	a := mustNote(t, s, u.ID, "a")
	b := mustNote(t, s, u.ID, "b")
	c := mustNote(t, s, u.ID, "c")
	foreign := mustNote(t, s, other.ID, "x")

	if err := s.ReorderNotes(ctx, u.ID, []int64{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("Failed to reorder: %v", err)
	}
	notes, err := s.ListNotes(ctx, u.ID, false)
	if err != nil {
		t.Fatalf("Failed to list notes: %v", err)
	}
	if len(notes) != 3 || notes[0].ID != c.ID || notes[1].ID != a.ID || notes[2].ID != b.ID {
		t.Errorf("Unexpected order: %+v", notes)
	}

	if err := s.ReorderNotes(ctx, u.ID, []int64{a.ID, foreign.ID}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign note, got %v", err)
	}

	count, err := s.CountNotes(ctx, 0, false)
	if err != nil || count != 4 {
		t.Errorf("Expected 4 notes instance-wide, got %d (%v)", count, err)
	}
}

func TestInvitationLifecycleKeepsSharedFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	owner := mustUser(t, s, "owner@example.com")
	bob := mustUser(t, s, "bob@example.com")
	note := mustNote(t, s, owner.ID, "plan")

	inv := mustInvite(t, s, note, bob.Email, "tok-1", now)
	if !isShared(t, s, note.ID) {
		t.Error("Expected note to be shared while an invitation is pending")
	}

	dup := &models.Invitation{NoteID: note.ID, InvitedEmail: bob.Email, InvitedByID: owner.ID,
		Permission: models.PermissionRead, Token: "tok-2", ExpiresAt: now, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateInvitation(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for second pending invitation, got %v", err)
	}

	access, err := s.AcceptInvitation(ctx, inv.ID, bob.ID, now)
	if err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}
	if access.Permission != models.PermissionWrite || access.GrantedBy != owner.ID || access.Note == nil {
		t.Errorf("Unexpected access: %+v", access)
	}

	got, err := s.GetInvitation(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Failed to get invitation: %v", err)
	}
	if got.Status != models.InvitationAccepted || got.AcceptedByID == nil || *got.AcceptedByID != bob.ID {
		t.Errorf("Unexpected invitation after accept: %+v", got)
	}

	if _, err := s.AcceptInvitation(ctx, inv.ID, bob.ID, now); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound accepting twice, got %v", err)
	}

	shared, err := s.ListSharedNotes(ctx, bob.ID)
	if err != nil || len(shared) != 1 || shared[0].SharedBy.Email != owner.Email {
		t.Fatalf("Unexpected shared notes: %+v (%v)", shared, err)
	}

	if err := s.RemoveAccess(ctx, note.ID, bob.ID); err != nil {
		t.Fatalf("Failed to remove access: %v", err)
	}
	if isShared(t, s, note.ID) {
		t.Error("Expected note to be unshared once the ledger is empty")
	}
	if err := s.RemoveAccess(ctx, note.ID, bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound removing twice, got %v", err)
	}
}

func TestAcceptRollsBackOnExistingAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	owner := mustUser(t, s, "owner@example.com")
	bob := mustUser(t, s, "bob@example.com")
	note := mustNote(t, s, owner.ID, "plan")

	first := mustInvite(t, s, note, bob.Email, "tok-1", now)
	if _, err := s.AcceptInvitation(ctx, first.ID, bob.ID, now); err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}

	// A second pending invitation on another email accepted by the same user
	// must not create a second ledger row.
	second := mustInvite(t, s, note, "bob.alias@example.com", "tok-2", now)
	if _, err := s.AcceptInvitation(ctx, second.ID, bob.ID, now); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	got, err := s.GetInvitation(ctx, second.ID)
	if err != nil {
		t.Fatalf("Failed to get invitation: %v", err)
	}
	if got.Status != models.InvitationPending {
		t.Errorf("Expected invitation to stay PENDING after rollback, got %s", got.Status)
	}
	if n, _ := s.CountAccess(ctx, note.ID); n != 1 {
		t.Errorf("Expected exactly one ledger row, got %d", n)
	}
}

func TestTransitionAndSupersede(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	owner := mustUser(t, s, "owner@example.com")
	note := mustNote(t, s, owner.ID, "plan")

	inv := mustInvite(t, s, note, "carol@example.com", "tok-1", now)
	if err := s.TransitionInvitation(ctx, inv.ID, models.InvitationDeclined, now); err != nil {
		t.Fatalf("Failed to decline: %v", err)
	}
	if isShared(t, s, note.ID) {
		t.Error("Expected note to be unshared after the only invitation was declined")
	}
	if err := s.TransitionInvitation(ctx, inv.ID, models.InvitationRevoked, now); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for terminal invitation, got %v", err)
	}

	fresh := mustInvite(t, s, note, "carol@example.com", "tok-2", now)
	if fresh.ID == inv.ID {
		t.Error("Expected a new invitation row")
	}
	if _, err := s.GetInvitation(ctx, inv.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected superseded invitation to be gone, got %v", err)
	}
	list, err := s.ListInvitationsByNote(ctx, note.ID)
	if err != nil || len(list) != 1 {
		t.Errorf("Expected one invitation on note, got %d (%v)", len(list), err)
	}
}

func TestConvertNoteToTemplateClearsSharing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	owner := mustUser(t, s, "owner@example.com")
	bob := mustUser(t, s, "bob@example.com")
	note := mustNote(t, s, owner.ID, "plan")

	accepted := mustInvite(t, s, note, bob.Email, "tok-1", now)
	if _, err := s.AcceptInvitation(ctx, accepted.ID, bob.ID, now); err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}
	pending := mustInvite(t, s, note, "dave@example.com", "tok-2", now)

	tmpl, err := s.ConvertNoteToTemplate(ctx, note.ID, now)
	if err != nil {
		t.Fatalf("Failed to convert: %v", err)
	}
	if !tmpl.IsTemplate || tmpl.IsShared || tmpl.IsPinned {
		t.Errorf("Unexpected template flags: %+v", tmpl)
	}
	if n, _ := s.CountAccess(ctx, note.ID); n != 0 {
		t.Errorf("Expected ledger to be empty, got %d rows", n)
	}
	got, err := s.GetInvitation(ctx, pending.ID)
	if err != nil || got.Status != models.InvitationRevoked {
		t.Errorf("Expected pending invitation to be revoked, got %+v (%v)", got, err)
	}
	if _, err := s.AcceptInvitation(ctx, pending.ID, bob.ID, now); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected revoked invitation to be unacceptable, got %v", err)
	}

	if _, err := s.ConvertNoteToTemplate(ctx, note.ID, now); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound converting a template again, got %v", err)
	}
	back, err := s.ConvertTemplateToNote(ctx, note.ID)
	if err != nil || back.IsTemplate {
		t.Fatalf("Failed to convert back: %+v (%v)", back, err)
	}
}

func TestDeleteUserRefreshesSharedFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	owner := mustUser(t, s, "owner@example.com")
	bob := mustUser(t, s, "bob@example.com")
	note := mustNote(t, s, owner.ID, "plan")
	inv := mustInvite(t, s, note, bob.Email, "tok-1", now)
	if _, err := s.AcceptInvitation(ctx, inv.ID, bob.ID, now); err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}

	if err := s.DeleteUser(ctx, bob.ID); err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}
	if isShared(t, s, note.ID) {
		t.Error("Expected note to be unshared after its only grantee was deleted")
	}
}

func TestAPIKeysAndWebhooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "owner@example.com")

	key := &models.APIKey{
		UserID:      u.ID,
		Name:        "ci",
		Prefix:      "ak_1234",
		Permissions: []models.APIKeyPermission{models.APIShareNotes, models.APIReadNotes},
	}
	if err := s.CreateAPIKey(ctx, key, "hash-1"); err != nil {
		t.Fatalf("Failed to create api key: %v", err)
	}
	if err := s.CreateAPIKey(ctx, &models.APIKey{UserID: u.ID, Name: "dup", Prefix: "x"}, "hash-1"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate hash, got %v", err)
	}

	got, err := s.GetAPIKeyByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Failed to get api key: %v", err)
	}
	if len(got.Permissions) != 2 || got.Permissions[0] != models.APIReadNotes {
		t.Errorf("Expected permissions in canonical order, got %v", got.Permissions)
	}

	if err := s.TouchAPIKey(ctx, key.ID, time.Now().UTC()); err != nil {
		t.Fatalf("Failed to touch api key: %v", err)
	}
	if err := s.DeleteAPIKey(ctx, key.ID, u.ID+1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting someone else's key, got %v", err)
	}
	if err := s.DeleteAPIKey(ctx, key.ID, u.ID); err != nil {
		t.Fatalf("Failed to delete api key: %v", err)
	}

	hook := &models.Webhook{UserID: u.ID, Action: models.WebhookNoteCreated, URL: "https://example.com/hook"}
	if err := s.CreateWebhook(ctx, hook); err != nil {
		t.Fatalf("Failed to create webhook: %v", err)
	}
	hooks, err := s.ListWebhooksForAction(ctx, u.ID, models.WebhookNoteCreated)
	if err != nil || len(hooks) != 1 {
		t.Fatalf("Expected one webhook, got %d (%v)", len(hooks), err)
	}
	if hooks, _ := s.ListWebhooksForAction(ctx, u.ID, models.WebhookNoteDeleted); len(hooks) != 0 {
		t.Errorf("Expected no hooks for note_deleted, got %d", len(hooks))
	}
	if n, _ := s.CountWebhooks(ctx, 0); n != 1 {
		t.Errorf("Expected 1 webhook instance-wide, got %d", n)
	}
}
