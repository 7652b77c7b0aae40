package store

import (
	"context"
	"errors"
	"time"

	"keepit/internal/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist or a
	// conditional update matched nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("store: unique constraint violated")
)

// NoteUpdate carries the mutable fields of a note. Nil fields are left as is.
type NoteUpdate struct {
	Title      *string
	Content    *string
	Color      *string
	IsPinned   *bool
	Checkboxes *[]models.Checkbox
	// KeepUpdatedAt leaves updated_at alone, for pin toggles.
	KeepUpdatedAt bool
}

// Store defines the interface for all database operations
type Store interface {
	// Users
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CountUsers(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id int64) error

	// Notes
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id int64) (*models.Note, error)
	ListNotes(ctx context.Context, userID int64, templates bool) ([]models.Note, error)
	UpdateNote(ctx context.Context, id int64, upd NoteUpdate) (*models.Note, error)
	DeleteNote(ctx context.Context, id int64) error
	CountNotes(ctx context.Context, userID int64, templates bool) (int, error)
	ReorderNotes(ctx context.Context, userID int64, noteIDs []int64) error
	GetCheckbox(ctx context.Context, id int64) (*models.Checkbox, error)
	SetCheckboxChecked(ctx context.Context, id int64, checked bool) (*models.Checkbox, error)

	// Conversion (each runs in one transaction)
	ConvertNoteToTemplate(ctx context.Context, noteID int64, now time.Time) (*models.Note, error)
	ConvertTemplateToNote(ctx context.Context, noteID int64) (*models.Note, error)

	// Invitations
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitation(ctx context.Context, id int64) (*models.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)
	FindInvitation(ctx context.Context, noteID int64, email string) (*models.Invitation, error)
	TransitionInvitation(ctx context.Context, id int64, to models.InvitationStatus, now time.Time) error
	AcceptInvitation(ctx context.Context, id, userID int64, now time.Time) (*models.Access, error)
	ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error)
	ListInvitationsBySender(ctx context.Context, userID int64) ([]models.Invitation, error)
	ListInvitationsByNote(ctx context.Context, noteID int64) ([]models.Invitation, error)
	ListPendingInvitations(ctx context.Context) ([]models.Invitation, error)

	// Access ledger
	GetAccess(ctx context.Context, noteID, userID int64) (*models.Access, error)
	ListAccessByNote(ctx context.Context, noteID int64) ([]models.Access, error)
	ListSharedNotes(ctx context.Context, userID int64) ([]models.SharedNote, error)
	RemoveAccess(ctx context.Context, noteID, userID int64) error
	CountAccess(ctx context.Context, noteID int64) (int, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *models.APIKey, keyHash string) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context, userID int64) ([]models.APIKey, error)
	DeleteAPIKey(ctx context.Context, id, userID int64) error
	TouchAPIKey(ctx context.Context, id int64, now time.Time) error
	CountAPIKeys(ctx context.Context, userID int64) (int, error)

	// Webhooks
	CreateWebhook(ctx context.Context, hook *models.Webhook) error
	ListWebhooks(ctx context.Context, userID int64) ([]models.Webhook, error)
	ListWebhooksForAction(ctx context.Context, userID int64, action models.WebhookAction) ([]models.Webhook, error)
	DeleteWebhook(ctx context.Context, id, userID int64) error
	CountWebhooks(ctx context.Context, userID int64) (int, error)

	Close() error
}
