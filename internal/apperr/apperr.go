// Package apperr defines the error kinds surfaced by the note services and
// the sentinel errors built on them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	NotAuthorized
	Conflict
	Expired
	ValidationFailed
	Unauthenticated
	QuotaExceeded
	FeatureDisabled
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case NotAuthorized:
		return "not_authorized"
	case Conflict:
		return "conflict"
	case Expired:
		return "expired"
	case ValidationFailed:
		return "validation_failed"
	case Unauthenticated:
		return "unauthenticated"
	case QuotaExceeded:
		return "quota_exceeded"
	case FeatureDisabled:
		return "feature_disabled"
	case RateLimited:
		return "rate_limited"
	}
	return "internal"
}

// Error is a classified, user-presentable failure. Message never carries
// storage details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same code, so sentinels compare equal to
// copies produced by WithMessage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a ValidationFailed error for one rejected input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: ValidationFailed, Code: "VALIDATION_FAILED", Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	ErrNoteNotFound       = New(NotFound, "NOTE_NOT_FOUND", "note not found or not authorized")
	ErrTemplateNotFound   = New(NotFound, "TEMPLATE_NOT_FOUND", "template not found or not authorized")
	ErrCheckboxNotFound   = New(NotFound, "CHECKBOX_NOT_FOUND", "checkbox not found or not authorized")
	ErrInvitationNotFound = New(NotFound, "INVITATION_NOT_FOUND", "invitation not found")
	ErrNoSuchAccess       = New(NotFound, "NO_SUCH_ACCESS", "access not found")
	ErrAPIKeyNotFound     = New(NotFound, "API_KEY_NOT_FOUND", "api key not found")
	ErrWebhookNotFound    = New(NotFound, "WEBHOOK_NOT_FOUND", "webhook not found")
	ErrUserNotFound       = New(NotFound, "USER_NOT_FOUND", "user not found")

	ErrNotAuthorized    = New(NotAuthorized, "NOT_AUTHORIZED", "not authorized")
	ErrNotNoteOwner     = New(NotAuthorized, "NOT_NOTE_OWNER", "note not found or not authorized")
	ErrWrongRecipient   = New(NotAuthorized, "WRONG_RECIPIENT", "this invitation is not for you")
	ErrMissingAPIKeyCap = New(NotAuthorized, "API_KEY_PERMISSION_DENIED", "api key lacks the required permission")

	ErrSelfInvitation           = New(Conflict, "SELF_INVITATION_FORBIDDEN", "cannot invite yourself")
	ErrInvitationAlreadyPending = New(Conflict, "INVITATION_ALREADY_PENDING", "invitation already pending for this email")
	ErrAlreadyHasAccess         = New(Conflict, "ALREADY_HAS_ACCESS", "user already has access to this note")
	ErrInvitationNotPending     = New(Conflict, "INVITATION_NOT_PENDING", "invitation is no longer pending")
	ErrCannotRevokeAccepted     = New(Conflict, "CANNOT_REVOKE_ACCEPTED", "cannot revoke an accepted invitation; remove the access instead")
	ErrTemplateNotShareable     = New(Conflict, "TEMPLATE_NOT_SHAREABLE", "templates cannot be shared")
	ErrTemplateCannotBePinned   = New(Conflict, "TEMPLATE_CANNOT_BE_PINNED", "templates cannot be pinned")
	ErrEmailTaken               = New(Conflict, "EMAIL_TAKEN", "email already registered")

	ErrInvitationExpired = New(Expired, "INVITATION_EXPIRED", "invitation has expired")

	ErrInvalidCredentials = New(Unauthenticated, "INVALID_CREDENTIALS", "invalid email or password")
	ErrUnauthenticated    = New(Unauthenticated, "UNAUTHENTICATED", "authentication required")
	ErrInvalidToken       = New(Unauthenticated, "INVALID_TOKEN", "invalid or expired token")
	ErrInvalidAPIKey      = New(Unauthenticated, "INVALID_API_KEY", "invalid or expired api key")

	ErrQuotaExceeded   = New(QuotaExceeded, "QUOTA_EXCEEDED", "limit reached for this instance")
	ErrFeatureDisabled = New(FeatureDisabled, "FEATURE_DISABLED", "feature not available on this instance")
	ErrRateLimited     = New(RateLimited, "RATE_LIMITED", "too many requests, please try again later")

	ErrInternal = New(Internal, "INTERNAL", "internal server error")
)

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case NotAuthorized:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case Expired:
		return http.StatusGone
	case ValidationFailed:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case QuotaExceeded:
		return http.StatusLocked
	case FeatureDisabled:
		return http.StatusFailedDependency
	case RateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Public returns the message and code safe to show a client. Internal
// errors never expose their text.
func Public(err error) (message, code string) {
	e, ok := As(err)
	if !ok || e.Kind == Internal {
		return ErrInternal.Message, ErrInternal.Code
	}
	return e.Message, e.Code
}
