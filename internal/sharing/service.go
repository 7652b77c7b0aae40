// Package sharing implements note invitations, the access ledger and the
// authorization resolver that every note operation goes through.
package sharing

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"keepit/internal/store"

	"github.com/rs/zerolog"
)

const tokenBytes = 32

type Service struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: st,
		log:   log.With().Str("component", "sharing").Logger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
