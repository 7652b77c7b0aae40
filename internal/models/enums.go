package models

// Permission is the access level a user holds on a note.
type Permission string

const (
	PermissionNone  Permission = "NONE"
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
	PermissionAdmin Permission = "ADMIN"
)

func (p Permission) rank() int {
	switch p {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	}
	return 0
}

// Allows reports whether p is at least need.
func (p Permission) Allows(need Permission) bool {
	return p.rank() >= need.rank() && p.rank() > 0
}

// Grantable reports whether p can be stored in the ledger or an invitation.
func (p Permission) Grantable() bool {
	return p.rank() > 0
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// Terminal reports whether no transition can leave s.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// APIKeyPermission is a capability carried by an API key.
type APIKeyPermission string

const (
	APICreateNotes     APIKeyPermission = "create_notes"
	APIReadNotes       APIKeyPermission = "read_notes"
	APIUpdateNotes     APIKeyPermission = "update_notes"
	APIDeleteNotes     APIKeyPermission = "delete_notes"
	APIShareNotes      APIKeyPermission = "share_notes"
	APIReadTemplates   APIKeyPermission = "read_templates"
	APICreateTemplates APIKeyPermission = "create_templates"
	APIUpdateTemplates APIKeyPermission = "update_templates"
	APIDeleteTemplates APIKeyPermission = "delete_templates"
	APIUseTemplates    APIKeyPermission = "use_templates"
)

// AllAPIKeyPermissions lists every capability in display order.
var AllAPIKeyPermissions = []APIKeyPermission{
	APICreateNotes,
	APIReadNotes,
	APIUpdateNotes,
	APIDeleteNotes,
	APIShareNotes,
	APIReadTemplates,
	APICreateTemplates,
	APIUpdateTemplates,
	APIDeleteTemplates,
	APIUseTemplates,
}

func (p APIKeyPermission) Valid() bool {
	for _, known := range AllAPIKeyPermissions {
		if p == known {
			return true
		}
	}
	return false
}

type WebhookAction string

const (
	WebhookNoteCreated WebhookAction = "note_created"
	WebhookNoteUpdated WebhookAction = "note_updated"
	WebhookNoteDeleted WebhookAction = "note_deleted"
)

func (a WebhookAction) Valid() bool {
	switch a {
	case WebhookNoteCreated, WebhookNoteUpdated, WebhookNoteDeleted:
		return true
	}
	return false
}
