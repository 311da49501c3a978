package pg

import (
	"context"
	"database/sql"
	"errors"

	"orbitalliance.org/internal/rewards"
)

func (s *Store) CreateMembership(ctx context.Context, m *rewards.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		insert into memberships (id, user_id, institution_id, role, joined_at)
		values ($1, $2, $3, $4, $5)
	`, m.ID, m.UserID, m.InstitutionID, string(m.Role), m.JoinedAt)
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return rewards.ErrConflict
		case pgErrForeignKeyViolation:
			return rewards.ErrNotFound
		}
	}
	return err
}

func (s *Store) GetActiveMembership(ctx context.Context, userID, institutionID string) (rewards.Membership, error) {
	var (
		m    rewards.Membership
		role string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, institution_id, role, joined_at
		from memberships
		where user_id = $1 and institution_id = $2 and left_at is null and deleted_at is null
	`, userID, institutionID).Scan(&m.ID, &m.UserID, &m.InstitutionID, &role, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.Membership{}, rewards.ErrNotFound
	}
	if err != nil {
		return rewards.Membership{}, err
	}
	m.Role = rewards.Role(role)
	return m, nil
}

func (s *Store) ListMembershipsForUser(ctx context.Context, userID string) ([]rewards.MembershipView, error) {
	rows, err := s.db.QueryContext(ctx, `
		select m.id, m.role, m.joined_at, m.left_at, i.id, i.name
		from memberships m
		join institutions i on i.id = m.institution_id
		where m.user_id = $1 and m.deleted_at is null
		order by m.joined_at, m.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.MembershipView{}
	for rows.Next() {
		var (
			v      rewards.MembershipView
			role   string
			leftAt sql.NullTime
		)
		if err := rows.Scan(&v.ID, &role, &v.JoinedAt, &leftAt, &v.Institution.ID, &v.Institution.Name); err != nil {
			return nil, err
		}
		v.Role = rewards.Role(role)
		if leftAt.Valid {
			t := leftAt.Time
			v.LeftAt = &t
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *Store) ListMembers(ctx context.Context, institutionID string) ([]rewards.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		select m.id, m.role, m.joined_at, m.left_at, u.id, u.name, u.email
		from memberships m
		join users u on u.id = m.user_id
		where m.institution_id = $1 and m.deleted_at is null
		order by m.joined_at, m.id
	`, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.Member{}
	for rows.Next() {
		var (
			m      rewards.Member
			role   string
			leftAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &role, &m.JoinedAt, &leftAt, &m.User.ID, &m.User.Name, &m.User.Email); err != nil {
			return nil, err
		}
		m.Role = rewards.Role(role)
		if leftAt.Valid {
			t := leftAt.Time
			m.LeftAt = &t
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
