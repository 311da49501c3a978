package rewards

import (
	"fmt"
	"strings"
	"time"
)

// Role is the membership role a user holds inside one institution.
// It is a closed set; unknown values are rejected at the boundary.
type Role string

const (
	// RoleComum is the ordinary student role ("comum" in the product's
	// original Portuguese naming).
	RoleComum Role = "comum"
	// RoleTeacher marks members allowed to attest action executions.
	RoleTeacher Role = "teacher"
)

// ParseRole validates a caller-supplied role value.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleComum:
		return RoleComum, nil
	case RoleTeacher:
		return RoleTeacher, nil
	default:
		return "", fmt.Errorf("%w: role must be %q or %q", ErrInvalidInput, RoleComum, RoleTeacher)
	}
}

// Institution is a tenant organization owning actions and products.
type Institution struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Wallet       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// User is a universal principal; its role is per-institution, not global.
type User struct {
	ID           string
	Name         string
	Email        string
	Wallet       string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Membership is a time-bounded, role-tagged link between a user and an
// institution. At most one active membership may exist per pair.
type Membership struct {
	ID            string
	UserID        string
	InstitutionID string
	Role          Role
	JoinedAt      time.Time
	LeftAt        *time.Time
	DeletedAt     *time.Time
}

// Active reports whether the membership is current (not left, not deleted).
func (m Membership) Active() bool {
	return m.LeftAt == nil && m.DeletedAt == nil
}

// Action is a definable task carrying a point reward.
type Action struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Reward        int64     `json:"reward"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Execution records that a specific student completed a specific action,
// attested by a teacher of the owning institution.
type Execution struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ActionID      string    `json:"action_id"`
	InstitutionID string    `json:"institution_id"`
	ExecutedAt    time.Time `json:"executed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Product is a redeemable catalog item. Internal products may only be
// purchased by members of the owning institution.
type Product struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	IsInternal    bool      `json:"is_internal"`
	Image         string    `json:"image,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Purchase is an immutable redemption record. PriceAtPurchase is captured at
// creation time and never follows later product price changes.
type Purchase struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	UserID          string    `json:"user_id"`
	PriceAtPurchase int64     `json:"price_at_purchase"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty"`
	PurchasedAt     time.Time `json:"purchased_at"`
	CreatedAt       time.Time `json:"created_at"`
}
