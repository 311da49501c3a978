package rewards

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// LinkMember joins the user identified by email to an institution with the
// given role. Fails when the user is unknown or an active membership for the
// pair already exists. Role changes require leaving and re-linking; there is
// no in-place promotion.
func (s *Service) LinkMember(ctx context.Context, institutionID, email, role string) (Member, error) {
	parsed, err := ParseRole(role)
	if err != nil {
		return Member{}, err
	}
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return Member{}, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return Member{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Member{}, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return Member{}, err
	}
	if _, err := s.store.GetActiveMembership(ctx, user.ID, institutionID); err == nil {
		return Member{}, fmt.Errorf("%w: user already has an active membership in this institution", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Member{}, err
	}

	m := Membership{
		ID:            s.newID(),
		UserID:        user.ID,
		InstitutionID: institutionID,
		Role:          parsed,
		JoinedAt:      s.timestamp(),
	}
	if err := s.store.CreateMembership(ctx, &m); err != nil {
		return Member{}, err
	}
	return Member{
		ID:       m.ID,
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
		User:     NewUserSummary(user),
	}, nil
}

// ListMembers returns the institution's memberships with user summaries.
func (s *Service) ListMembers(ctx context.Context, institutionID string) ([]Member, error) {
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, institutionID)
}

// MembershipsForUser returns the user's memberships with institution summaries.
func (s *Service) MembershipsForUser(ctx context.Context, userID string) ([]MembershipView, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListMembershipsForUser(ctx, userID)
}

// TeacherMembership resolves the teacher membership backing a teacher-scoped
// request. When institutionID is non-empty the user must hold an active
// teacher membership in exactly that institution; when empty, the active
// teacher membership with the earliest joined_at wins, which keeps the
// fallback deterministic instead of depending on list order.
func (s *Service) TeacherMembership(ctx context.Context, userID, institutionID string) (MembershipView, error) {
	memberships, err := s.store.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return MembershipView{}, err
	}
	var teaching []MembershipView
	for _, m := range memberships {
		if m.Active() && m.Role == RoleTeacher {
			teaching = append(teaching, m)
		}
	}
	if len(teaching) == 0 {
		return MembershipView{}, fmt.Errorf("%w: user is not a teacher in any institution", ErrForbidden)
	}
	if institutionID != "" {
		for _, m := range teaching {
			if m.Institution.ID == institutionID {
				return m, nil
			}
		}
		return MembershipView{}, fmt.Errorf("%w: user is not a teacher in the requested institution", ErrForbidden)
	}
	sort.Slice(teaching, func(i, j int) bool {
		if teaching[i].JoinedAt.Equal(teaching[j].JoinedAt) {
			return teaching[i].ID < teaching[j].ID
		}
		return teaching[i].JoinedAt.Before(teaching[j].JoinedAt)
	})
	return teaching[0], nil
}
