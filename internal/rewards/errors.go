package rewards

import "errors"

var (
	// ErrNotFound covers entities that are absent or soft-deleted.
	ErrNotFound = errors.New("rewards: not found")
	// ErrInvalidInput covers malformed or out-of-range input.
	ErrInvalidInput = errors.New("rewards: invalid input")
	// ErrConflict covers uniqueness violations (email, wallet, active membership).
	ErrConflict = errors.New("rewards: conflict")
	// ErrInvalidCredentials is deliberately generic: it must not reveal
	// whether the principal exists or the password was wrong.
	ErrInvalidCredentials = errors.New("rewards: invalid credentials")
	// ErrForbidden covers valid credentials with insufficient role or ownership.
	ErrForbidden = errors.New("rewards: forbidden")
)
