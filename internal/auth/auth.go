// Package auth registers accounts, authenticates requests by JWT or API key,
// and manages API keys.
package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	EmailMaxLength    = 255
	PasswordMinLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email looks like an address we accept.
func ValidEmail(email string) bool {
	return len(email) <= EmailMaxLength && emailPattern.MatchString(email)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type Service struct {
	store  store.Store
	tokens *TokenIssuer
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(st store.Store, tokens *TokenIssuer, log zerolog.Logger) *Service {
	return &Service{
		store:  st,
		tokens: tokens,
		log:    log.With().Str("component", "auth").Logger(),
		now:    time.Now,
	}
}

// Register creates an account. The caller is expected to have checked the
// instance user quota.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidEmail(email) {
		return nil, apperr.Validation("a valid email is required")
	}
	if len(password) < PasswordMinLength {
		return nil, apperr.Validation("password must be at least %d characters", PasswordMinLength)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, email, hash)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.ErrEmailTaken
	}
	if err != nil {
		s.log.Error().Err(err).Str("op", "Register").Msg("create user failed")
		return nil, err
	}
	s.log.Info().Int64("user_id", u.ID).Msg("user registered")
	return u, nil
}

// Login checks the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return "", nil, apperr.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	return u, err
}

// AuthenticateToken resolves a bearer JWT to an identity. The user must
// still exist.
func (s *Service) AuthenticateToken(ctx context.Context, raw string) (*Identity, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}
	u, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: u.ID, Email: u.Email}, nil
}

// AuthenticateAPIKey resolves a raw API key to an identity carrying the
// key's capabilities and records its use.
func (s *Service) AuthenticateAPIKey(ctx context.Context, raw string) (*Identity, error) {
	if !strings.HasPrefix(raw, APIKeyPrefix) {
		return nil, apperr.ErrInvalidAPIKey
	}
	key, err := s.store.GetAPIKeyByHash(ctx, HashAPIKey(raw))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrInvalidAPIKey
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if key.Expired(now) {
		return nil, apperr.ErrInvalidAPIKey
	}
	u, err := s.store.GetUserByID(ctx, key.UserID)
	if err != nil {
		return nil, apperr.ErrInvalidAPIKey
	}
	if err := s.store.TouchAPIKey(ctx, key.ID, now); err != nil {
		s.log.Warn().Err(err).Int64("api_key_id", key.ID).Msg("touch api key failed")
	}
	return &Identity{UserID: u.ID, Email: u.Email, APIKeyID: key.ID, APIKeyPermissions: key.Permissions}, nil
}
