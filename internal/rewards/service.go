package rewards

import (
	"errors"
	"time"

	"orbitalliance.org/internal/auth"
	"orbitalliance.org/internal/ids"
)

// Service implements the rewards domain rules on top of a Store.
//
// Validation lives here, once; the stores stay thin. Invariants that must
// survive concurrent requests (one active membership per pair, idempotent
// purchases) are additionally enforced by storage constraints, so a race
// between the read-side check and the write resolves to ErrConflict instead
// of a duplicate row.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithIDGenerator overrides identifier generation (useful for tests).
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("rewards: store is required")
	}
	s := &Service{
		store: store,
		now:   time.Now,
		newID: ids.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func hashPassword(plaintext string) (string, error) {
	return auth.HashPassword(plaintext)
}

func verifyPassword(hash, plaintext string) error {
	return auth.VerifyPassword(hash, plaintext)
}
