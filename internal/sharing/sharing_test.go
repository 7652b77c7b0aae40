package sharing

import (
	"context"
	"errors"
	"testing"
	"time"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store/sqlstore"

	"github.com/rs/zerolog"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store *sqlstore.SQLStore
	svc   *Service
	clock *fakeClock
	owner *models.User
	note  *models.Note
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		store: st,
		svc:   NewService(st, zerolog.Nop(), WithClock(clock.Now)),
		clock: clock,
	}
	f.owner = f.user(t, "owner@x.com")
	f.note = &models.Note{
		UserID:     f.owner.ID,
		Title:      "Trip",
		Content:    "pack bags",
		Checkboxes: []models.Checkbox{{Label: "passport"}, {Label: "tickets", Checked: true}},
	}
	if err := st.CreateNote(context.Background(), f.note); err != nil {
		t.Fatalf("Failed to create note: %v", err)
	}
	return f
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), email, "hash")
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

func (f *fixture) invite(t *testing.T, email string, perm models.Permission, days int) *models.Invitation {
	t.Helper()
	inv, err := f.svc.CreateInvitation(context.Background(), InviteRequest{
		NoteID:        f.note.ID,
		InviterID:     f.owner.ID,
		Email:         email,
		Permission:    perm,
		ExpiresInDays: days,
	})
	if err != nil {
		t.Fatalf("Failed to invite %s: %v", email, err)
	}
	return inv
}

func (f *fixture) status(t *testing.T, id int64) models.InvitationStatus {
	t.Helper()
	inv, err := f.store.GetInvitation(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to load invitation: %v", err)
	}
	return inv.Status
}

// checkInvariants verifies the note flags against the ledger itself.
func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	note, err := f.store.GetNote(ctx, f.note.ID)
	if err != nil {
		t.Fatalf("Failed to load note: %v", err)
	}
	ledger, err := f.store.CountAccess(ctx, note.ID)
	if err != nil {
		t.Fatalf("Failed to count ledger: %v", err)
	}
	invs, err := f.store.ListInvitationsByNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("Failed to list invitations: %v", err)
	}
	pending := 0
	for _, inv := range invs {
		if inv.Status == models.InvitationPending {
			pending++
		}
	}

	if want := ledger > 0 || pending > 0; note.IsShared != want {
		t.Errorf("isShared = %v with %d ledger rows and %d pending invitations", note.IsShared, ledger, pending)
	}
	if note.IsTemplate && (ledger != 0 || note.IsShared || note.IsPinned) {
		t.Errorf("template invariant broken: ledger=%d shared=%v pinned=%v", ledger, note.IsShared, note.IsPinned)
	}
}

func TestScenarioInviteAcceptConvert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.user(t, "bob@x.com")

	// A: invite marks the note shared and hands the token to the owner.
	inv := f.invite(t, "bob@x.com", models.PermissionRead, 7)
	if inv.Status != models.InvitationPending || len(inv.Token) != 64 {
		t.Fatalf("Unexpected invitation: status=%s token length=%d", inv.Status, len(inv.Token))
	}
	if want := f.clock.t.AddDate(0, 0, 7); !inv.ExpiresAt.Equal(want) {
		t.Errorf("Expected expiry %v, got %v", want, inv.ExpiresAt)
	}
	f.checkInvariants(t)

	// B: bob accepts.
	access, err := f.svc.AcceptInvitation(ctx, inv.Token, bob.ID)
	if err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}
	if access.Permission != models.PermissionRead || access.GrantedBy != f.owner.ID {
		t.Errorf("Unexpected access: %+v", access)
	}
	if got := f.status(t, inv.ID); got != models.InvitationAccepted {
		t.Errorf("Expected ACCEPTED, got %s", got)
	}
	if perm, _ := f.svc.Resolve(ctx, f.note.ID, bob.ID); perm != models.PermissionRead {
		t.Errorf("Resolve(bob) = %s, want READ", perm)
	}
	if perm, _ := f.svc.Resolve(ctx, f.note.ID, f.owner.ID); perm != models.PermissionAdmin {
		t.Errorf("Resolve(owner) = %s, want ADMIN", perm)
	}
	f.checkInvariants(t)

	// C: converting wipes the ledger but keeps the checkboxes.
	tmpl, err := f.store.ConvertNoteToTemplate(ctx, f.note.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("Failed to convert: %v", err)
	}
	if !tmpl.IsTemplate || tmpl.IsShared || tmpl.IsPinned {
		t.Errorf("Unexpected flags after convert: %+v", tmpl)
	}
	if len(tmpl.Checkboxes) != 2 || tmpl.Checkboxes[0].Label != "passport" || !tmpl.Checkboxes[1].Checked {
		t.Errorf("Expected checkboxes unchanged, got %+v", tmpl.Checkboxes)
	}
	if perm, _ := f.svc.Resolve(ctx, f.note.ID, bob.ID); perm != models.PermissionNone {
		t.Errorf("Resolve(bob) after convert = %s, want NONE", perm)
	}
	f.checkInvariants(t)

	_, err = f.svc.CreateInvitation(ctx, InviteRequest{
		NoteID: f.note.ID, InviterID: f.owner.ID, Email: "eve@x.com", Permission: models.PermissionRead, ExpiresInDays: 1,
	})
	if !errors.Is(err, apperr.ErrTemplateNotShareable) {
		t.Errorf("Expected TemplateNotShareable, got %v", err)
	}
}

func TestScenarioDuplicatePendingInvite(t *testing.T) {
	f := newFixture(t)
	f.invite(t, "carol@x.com", models.PermissionWrite, 7)

	_, err := f.svc.CreateInvitation(context.Background(), InviteRequest{
		NoteID: f.note.ID, InviterID: f.owner.ID, Email: "carol@x.com", Permission: models.PermissionRead, ExpiresInDays: 7,
	})
	if !errors.Is(err, apperr.ErrInvitationAlreadyPending) {
		t.Fatalf("Expected InvitationAlreadyPending, got %v", err)
	}
	if apperr.KindOf(err) != apperr.Conflict {
		t.Errorf("Expected Conflict kind, got %v", apperr.KindOf(err))
	}
}

func TestScenarioReinviteAfterDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dave := f.user(t, "dave@x.com")

	first := f.invite(t, "dave@x.com", models.PermissionRead, 7)
	if err := f.svc.DeclineInvitation(ctx, first.Token, dave.ID); err != nil {
		t.Fatalf("Failed to decline: %v", err)
	}
	f.checkInvariants(t)

	second := f.invite(t, "dave@x.com", models.PermissionRead, 7)
	if second.Token == first.Token || second.Status != models.InvitationPending {
		t.Errorf("Expected a fresh pending invitation, got %+v", second)
	}
	invs, err := f.store.ListInvitationsByNote(ctx, f.note.ID)
	if err != nil || len(invs) != 1 {
		t.Errorf("Expected exactly one invitation row, got %d (%v)", len(invs), err)
	}
	f.checkInvariants(t)
}

func TestScenarioLazyExpiryOnAccept(t *testing.T) {
	f := newFixture(t)
	erin := f.user(t, "erin@x.com")
	inv := f.invite(t, "erin@x.com", models.PermissionRead, 1)

	f.clock.Advance(25 * time.Hour)
	_, err := f.svc.AcceptInvitation(context.Background(), inv.Token, erin.ID)
	if !errors.Is(err, apperr.ErrInvitationExpired) {
		t.Fatalf("Expected InvitationExpired, got %v", err)
	}
	if got := f.status(t, inv.ID); got != models.InvitationExpired {
		t.Errorf("Expected stored status EXPIRED, got %s", got)
	}
	f.checkInvariants(t)
}

func TestCreateInvitationPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := f.user(t, "stranger@x.com")

	tests := []struct {
		name string
		req  InviteRequest
		want error
	}{
		{"self", InviteRequest{NoteID: f.note.ID, InviterID: f.owner.ID, Email: "owner@x.com", Permission: models.PermissionRead, ExpiresInDays: 7}, apperr.ErrSelfInvitation},
		{"not owner", InviteRequest{NoteID: f.note.ID, InviterID: stranger.ID, Email: "bob@x.com", Permission: models.PermissionRead, ExpiresInDays: 7}, apperr.ErrNotNoteOwner},
		{"missing note", InviteRequest{NoteID: 9999, InviterID: f.owner.ID, Email: "bob@x.com", Permission: models.PermissionRead, ExpiresInDays: 7}, apperr.ErrNotNoteOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateInvitation(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := f.svc.CreateInvitation(ctx, InviteRequest{NoteID: f.note.ID, InviterID: f.owner.ID, Email: "bob@x.com", Permission: models.PermissionNone, ExpiresInDays: 7}); apperr.KindOf(err) != apperr.ValidationFailed {
		t.Errorf("Expected ValidationFailed for NONE permission, got %v", err)
	}
	for _, days := range []int{0, -3} {
		_, err := f.svc.CreateInvitation(ctx, InviteRequest{NoteID: f.note.ID, InviterID: f.owner.ID, Email: "bob@x.com", Permission: models.PermissionRead, ExpiresInDays: days})
		if apperr.KindOf(err) != apperr.ValidationFailed {
			t.Errorf("Expected ValidationFailed for %d days, got %v", days, err)
		}
	}
}

func TestAlreadyHasAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.user(t, "bob@x.com")
	inv := f.invite(t, "bob@x.com", models.PermissionWrite, 7)
	if _, err := f.svc.AcceptInvitation(ctx, inv.Token, bob.ID); err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}

	_, err := f.svc.CreateInvitation(ctx, InviteRequest{
		NoteID: f.note.ID, InviterID: f.owner.ID, Email: "bob@x.com", Permission: models.PermissionAdmin, ExpiresInDays: 7,
	})
	if !errors.Is(err, apperr.ErrAlreadyHasAccess) {
		t.Errorf("Expected AlreadyHasAccess, got %v", err)
	}
}

func TestStateMachineTerminalStates(t *testing.T) {
	ctx := context.Background()

	// Each case drives a fresh invitation into one terminal state.
	terminal := map[models.InvitationStatus]func(f *fixture, inv *models.Invitation, u *models.User) error{
		models.InvitationAccepted: func(f *fixture, inv *models.Invitation, u *models.User) error {
			_, err := f.svc.AcceptInvitation(ctx, inv.Token, u.ID)
			return err
		},
		models.InvitationDeclined: func(f *fixture, inv *models.Invitation, u *models.User) error {
			return f.svc.DeclineInvitation(ctx, inv.Token, u.ID)
		},
		models.InvitationRevoked: func(f *fixture, inv *models.Invitation, u *models.User) error {
			return f.svc.RevokeInvitation(ctx, inv.ID, f.owner.ID)
		},
		models.InvitationExpired: func(f *fixture, inv *models.Invitation, u *models.User) error {
			f.clock.Advance(8 * 24 * time.Hour)
			_, err := f.svc.ExpirePendingInvitations(ctx)
			return err
		},
	}

	for state, drive := range terminal {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(t)
			bob := f.user(t, "bob@x.com")
			inv := f.invite(t, "bob@x.com", models.PermissionRead, 7)
			if err := drive(f, inv, bob); err != nil {
				t.Fatalf("Failed to reach %s: %v", state, err)
			}
			if got := f.status(t, inv.ID); got != state {
				t.Fatalf("Expected %s, got %s", state, got)
			}

			if _, err := f.svc.AcceptInvitation(ctx, inv.Token, bob.ID); apperr.KindOf(err) != apperr.Conflict {
				t.Errorf("accept from %s: expected Conflict, got %v", state, err)
			}
			if err := f.svc.DeclineInvitation(ctx, inv.Token, bob.ID); apperr.KindOf(err) != apperr.Conflict {
				t.Errorf("decline from %s: expected Conflict, got %v", state, err)
			}
			if err := f.svc.RevokeInvitation(ctx, inv.ID, f.owner.ID); apperr.KindOf(err) != apperr.Conflict {
				t.Errorf("revoke from %s: expected Conflict, got %v", state, err)
			}
			if got := f.status(t, inv.ID); got != state {
				t.Errorf("Expected status to stay %s, got %s", state, got)
			}
			f.checkInvariants(t)
		})
	}
}

func TestRevokeAcceptedIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.user(t, "bob@x.com")
	inv := f.invite(t, "bob@x.com", models.PermissionRead, 7)
	if _, err := f.svc.AcceptInvitation(ctx, inv.Token, bob.ID); err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}
	if err := f.svc.RevokeInvitation(ctx, inv.ID, f.owner.ID); !errors.Is(err, apperr.ErrCannotRevokeAccepted) {
		t.Errorf("Expected CannotRevokeAccepted, got %v", err)
	}
	if err := f.svc.RevokeInvitation(ctx, inv.ID, bob.ID); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("Expected NotAuthorized for non-owner, got %v", err)
	}
}

func TestWrongRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mallory := f.user(t, "mallory@x.com")
	inv := f.invite(t, "bob@x.com", models.PermissionRead, 7)

	if _, err := f.svc.AcceptInvitation(ctx, inv.Token, mallory.ID); !errors.Is(err, apperr.ErrWrongRecipient) {
		t.Errorf("Expected WrongRecipient on accept, got %v", err)
	}
	if err := f.svc.DeclineInvitation(ctx, inv.Token, mallory.ID); !errors.Is(err, apperr.ErrWrongRecipient) {
		t.Errorf("Expected WrongRecipient on decline, got %v", err)
	}
	if _, err := f.svc.AcceptInvitation(ctx, "no-such-token", mallory.ID); !errors.Is(err, apperr.ErrInvitationNotFound) {
		t.Errorf("Expected InvitationNotFound, got %v", err)
	}
	if got := f.status(t, inv.ID); got != models.InvitationPending {
		t.Errorf("Expected invitation to stay PENDING, got %s", got)
	}
}

func TestExpirePendingInvitationsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	short := f.invite(t, "a@x.com", models.PermissionRead, 1)
	long := f.invite(t, "b@x.com", models.PermissionRead, 10)

	f.clock.Advance(2 * 24 * time.Hour)
	n, err := f.svc.ExpirePendingInvitations(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 expired, got %d (%v)", n, err)
	}
	n, err = f.svc.ExpirePendingInvitations(ctx)
	if err != nil || n != 0 {
		t.Errorf("Expected second sweep to expire nothing, got %d (%v)", n, err)
	}
	if got := f.status(t, short.ID); got != models.InvitationExpired {
		t.Errorf("Expected short invitation EXPIRED, got %s", got)
	}
	if got := f.status(t, long.ID); got != models.InvitationPending {
		t.Errorf("Expected long invitation PENDING, got %s", got)
	}
	f.checkInvariants(t)
}

func TestRemoveAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.user(t, "bob@x.com")
	carol := f.user(t, "carol@x.com")

	for _, u := range []*models.User{bob, carol} {
		inv := f.invite(t, u.Email, models.PermissionWrite, 7)
		if _, err := f.svc.AcceptInvitation(ctx, inv.Token, u.ID); err != nil {
			t.Fatalf("Failed to accept for %s: %v", u.Email, err)
		}
	}

	if err := f.svc.RemoveAccess(ctx, f.note.ID, carol.ID, bob.ID); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("Expected NotAuthorized removing another grantee, got %v", err)
	}
	if err := f.svc.RemoveAccess(ctx, f.note.ID, bob.ID, bob.ID); err != nil {
		t.Fatalf("Failed to leave note: %v", err)
	}
	f.checkInvariants(t)
	if err := f.svc.RemoveAccess(ctx, f.note.ID, bob.ID, bob.ID); !errors.Is(err, apperr.ErrNoSuchAccess) {
		t.Errorf("Expected NoSuchAccess on second removal, got %v", err)
	}
	if err := f.svc.RemoveAccess(ctx, f.note.ID, carol.ID, f.owner.ID); err != nil {
		t.Fatalf("Failed to remove as owner: %v", err)
	}
	f.checkInvariants(t)

	note, _ := f.store.GetNote(ctx, f.note.ID)
	if note.IsShared {
		t.Error("Expected note unshared once the ledger is empty")
	}

	// The invitation that produced the grant stays ACCEPTED.
	invs, _ := f.svc.NoteInvitations(ctx, f.note.ID, f.owner.ID)
	for _, inv := range invs {
		if inv.Status != models.InvitationAccepted || inv.HasCurrentAccess {
			t.Errorf("Unexpected invitation after removal: %+v", inv)
		}
	}
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reader := f.user(t, "reader@x.com")
	stranger := f.user(t, "stranger@x.com")
	inv := f.invite(t, "reader@x.com", models.PermissionRead, 7)
	if _, err := f.svc.AcceptInvitation(ctx, inv.Token, reader.ID); err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}

	if _, _, err := f.svc.Authorize(ctx, f.note.ID, reader.ID, models.PermissionRead); err != nil {
		t.Errorf("Expected reader to read, got %v", err)
	}
	if _, _, err := f.svc.Authorize(ctx, f.note.ID, reader.ID, models.PermissionWrite); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("Expected NotAuthorized for reader writing, got %v", err)
	}
	if _, _, err := f.svc.Authorize(ctx, f.note.ID, stranger.ID, models.PermissionRead); !errors.Is(err, apperr.ErrNoteNotFound) {
		t.Errorf("Expected stranger to see NoteNotFound, got %v", err)
	}
	if _, _, err := f.svc.Authorize(ctx, 4242, stranger.ID, models.PermissionRead); !errors.Is(err, apperr.ErrNoteNotFound) {
		t.Errorf("Expected NoteNotFound for missing note, got %v", err)
	}
	if _, err := f.svc.NoteAccess(ctx, f.note.ID, reader.ID); !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Errorf("Expected reader to be denied the ledger, got %v", err)
	}
	ledger, err := f.svc.NoteAccess(ctx, f.note.ID, f.owner.ID)
	if err != nil || len(ledger) != 1 || ledger[0].User.Email != "reader@x.com" {
		t.Errorf("Unexpected ledger: %+v (%v)", ledger, err)
	}
}

func TestReadSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.user(t, "bob@x.com")
	inv := f.invite(t, "bob@x.com", models.PermissionRead, 7)

	public, err := f.svc.GetInvitationByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("Failed to look up token: %v", err)
	}
	if public.Token != "" || public.NoteTitle != "Trip" || public.InvitedBy.Email != "owner@x.com" {
		t.Errorf("Unexpected public invitation: %+v", public)
	}

	pending, err := f.svc.PendingInvitations(ctx, "bob@x.com")
	if err != nil || len(pending) != 1 || pending[0].Token != "" {
		t.Errorf("Unexpected pending list: %+v (%v)", pending, err)
	}

	sent, err := f.svc.SentInvitations(ctx, f.owner.ID)
	if err != nil || len(sent) != 1 || sent[0].Token != inv.Token {
		t.Errorf("Expected owner to see the token in sent list: %+v (%v)", sent, err)
	}

	stats, err := f.svc.Stats(ctx, bob.ID)
	if err != nil || stats.Received != 1 || stats.Pending != 1 || stats.Sent != 0 {
		t.Errorf("Unexpected stats: %+v (%v)", stats, err)
	}

	if _, err := f.svc.AcceptInvitation(ctx, inv.Token, bob.ID); err != nil {
		t.Fatalf("Failed to accept: %v", err)
	}
	shared, err := f.svc.SharedNotes(ctx, bob.ID)
	if err != nil || len(shared) != 1 || shared[0].Permission != models.PermissionRead || len(shared[0].Checkboxes) != 2 {
		t.Errorf("Unexpected shared notes: %+v (%v)", shared, err)
	}
	invs, err := f.svc.NoteInvitations(ctx, f.note.ID, f.owner.ID)
	if err != nil || len(invs) != 1 || !invs[0].HasCurrentAccess || *invs[0].CurrentPermission != models.PermissionRead {
		t.Errorf("Unexpected note invitations: %+v (%v)", invs, err)
	}
	if _, err := f.svc.NoteInvitations(ctx, f.note.ID, bob.ID); !errors.Is(err, apperr.ErrNotNoteOwner) {
		t.Errorf("Expected grantee to be refused the invitation list, got %v", err)
	}

	other := f.invite(t, "late@x.com", models.PermissionRead, 1)
	f.clock.Advance(48 * time.Hour)
	if _, err := f.svc.GetInvitationByToken(ctx, other.Token); !errors.Is(err, apperr.ErrInvitationExpired) {
		t.Errorf("Expected lookup of overdue invitation to fail Expired, got %v", err)
	}
	if got := f.status(t, other.ID); got != models.InvitationExpired {
		t.Errorf("Expected lookup to persist EXPIRED, got %s", got)
	}
}

func TestExpiredPureFunction(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inv := &models.Invitation{Status: models.InvitationPending, ExpiresAt: now}
	if Expired(inv, now) {
		t.Error("Expected invitation expiring exactly now to be live")
	}
	if !Expired(inv, now.Add(time.Second)) {
		t.Error("Expected invitation to be expired one second later")
	}
	inv.Status = models.InvitationDeclined
	if Expired(inv, now.Add(time.Hour)) || EffectiveStatus(inv, now.Add(time.Hour)) != models.InvitationDeclined {
		t.Error("Expected terminal invitations never to expire")
	}
}
