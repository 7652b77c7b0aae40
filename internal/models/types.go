package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRef is the public projection of a user embedded in other payloads.
type UserRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type Note struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Color      string     `json:"color,omitempty"`
	IsPinned   bool       `json:"is_pinned"`
	IsShared   bool       `json:"is_shared"`
	IsTemplate bool       `json:"is_template"`
	Order      int        `json:"order"`
	Checkboxes []Checkbox `json:"checkboxes"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Checkbox struct {
	ID      int64  `json:"id"`
	NoteID  int64  `json:"note_id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// SharedNote is a note seen from a grantee's side of the access ledger.
type SharedNote struct {
	Note
	SharedBy   UserRef    `json:"shared_by"`
	Permission Permission `json:"permission"`
	SharedAt   time.Time  `json:"shared_at"`
}

type Invitation struct {
	ID           int64            `json:"id"`
	NoteID       int64            `json:"note_id"`
	InvitedEmail string           `json:"invited_email"`
	InvitedByID  int64            `json:"invited_by_id"`
	Permission   Permission       `json:"permission"`
	Message      string           `json:"message,omitempty"`
	Token        string           `json:"token,omitempty"`
	Status       InvitationStatus `json:"status"`
	ExpiresAt    time.Time        `json:"expires_at"`
	AcceptedAt   *time.Time       `json:"accepted_at,omitempty"`
	AcceptedByID *int64           `json:"accepted_by_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	NoteTitle string   `json:"note_title,omitempty"`
	InvitedBy *UserRef `json:"invited_by,omitempty"`
}

// Redacted returns a copy without the capability token.
func (inv Invitation) Redacted() Invitation {
	inv.Token = ""
	return inv
}

// NoteInvitation is an invitation enriched with the invitee's current ledger state.
type NoteInvitation struct {
	Invitation
	HasCurrentAccess  bool        `json:"has_current_access"`
	CurrentPermission *Permission `json:"current_permission,omitempty"`
}

// Access is one row of the access ledger.
type Access struct {
	ID         int64      `json:"id"`
	NoteID     int64      `json:"note_id"`
	UserID     int64      `json:"user_id"`
	Permission Permission `json:"permission"`
	GrantedBy  int64      `json:"granted_by"`
	GrantedAt  time.Time  `json:"granted_at"`

	Note    *Note    `json:"note,omitempty"`
	User    *UserRef `json:"user,omitempty"`
	Granter *UserRef `json:"granter,omitempty"`
}

type InvitationStats struct {
	Sent     int `json:"sent"`
	Received int `json:"received"`
	Pending  int `json:"pending"`
}

type APIKey struct {
	ID          int64              `json:"id"`
	UserID      int64              `json:"user_id"`
	Name        string             `json:"name"`
	Prefix      string             `json:"prefix"`
	Key         string             `json:"key,omitempty"`
	Permissions []APIKeyPermission `json:"permissions"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time         `json:"last_used_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Has reports whether the key carries perm.
func (k *APIKey) Has(perm APIKeyPermission) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Expired reports whether the key is past its expiry at now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

type Webhook struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	Action    WebhookAction `json:"action"`
	URL       string        `json:"url"`
	CreatedAt time.Time     `json:"created_at"`
}
