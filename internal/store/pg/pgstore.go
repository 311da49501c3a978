// Package pg implements the rewards store on PostgreSQL via database/sql and
// the pgx stdlib driver. Uniqueness is closed by partial unique indexes, so
// races the service cannot see surface here as 23505 and map to ErrConflict.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"orbitalliance.org/internal/rewards"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var _ rewards.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by sqlmock tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Institutions

func (s *Store) CreateInstitution(ctx context.Context, inst *rewards.Institution) error {
	_, err := s.db.ExecContext(ctx, `
		insert into institutions (id, email, password_hash, name, wallet, created_at, updated_at)
		values ($1, $2, $3, $4, nullif($5,''), $6, $7)
	`, inst.ID, inst.Email, inst.PasswordHash, inst.Name, inst.Wallet, inst.CreatedAt, inst.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return rewards.ErrConflict
	}
	return err
}

const institutionCols = `id, email, password_hash, name, coalesce(wallet,''), created_at, updated_at`

func scanInstitution(row interface{ Scan(...any) error }) (rewards.Institution, error) {
	var inst rewards.Institution
	err := row.Scan(&inst.ID, &inst.Email, &inst.PasswordHash, &inst.Name, &inst.Wallet, &inst.CreatedAt, &inst.UpdatedAt)
	return inst, err
}

func (s *Store) GetInstitution(ctx context.Context, id string) (rewards.Institution, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+institutionCols+`
		from institutions
		where id = $1 and deleted_at is null
	`, id)
	inst, err := scanInstitution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.Institution{}, rewards.ErrNotFound
	}
	return inst, err
}

func (s *Store) GetInstitutionByEmail(ctx context.Context, email string) (rewards.Institution, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+institutionCols+`
		from institutions
		where email = $1 and deleted_at is null
	`, email)
	inst, err := scanInstitution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.Institution{}, rewards.ErrNotFound
	}
	return inst, err
}

func (s *Store) ListInstitutions(ctx context.Context) ([]rewards.Institution, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+institutionCols+`
		from institutions
		where deleted_at is null
		order by created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rewards.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

func (s *Store) UpdateInstitution(ctx context.Context, id string, upd rewards.InstitutionUpdate) (rewards.Institution, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	add := func(clause string, v any) {
		setClauses = append(setClauses, fmt.Sprintf(clause, idx))
		args = append(args, v)
		idx++
	}
	if upd.Email != nil {
		add("email = $%d", *upd.Email)
	}
	if upd.PasswordHash != nil {
		add("password_hash = $%d", *upd.PasswordHash)
	}
	if upd.Name != nil {
		add("name = $%d", *upd.Name)
	}
	if upd.Wallet != nil {
		add("wallet = nullif($%d,'')", *upd.Wallet)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update institutions set %s where id = $%d and deleted_at is null`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return rewards.Institution{}, rewards.ErrConflict
			}
			return rewards.Institution{}, err
		}
		if aff, err := res.RowsAffected(); err == nil && aff == 0 {
			return rewards.Institution{}, rewards.ErrNotFound
		}
	}
	return s.GetInstitution(ctx, id)
}

func (s *Store) DeleteInstitution(ctx context.Context, id string) error {
	return s.softDelete(ctx, "institutions", id)
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *rewards.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, name, email, wallet, password_hash, created_at, updated_at)
		values ($1, $2, $3, nullif($4,''), $5, $6, $7)
	`, u.ID, u.Name, u.Email, u.Wallet, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return rewards.ErrConflict
	}
	return err
}

const userCols = `id, name, email, coalesce(wallet,''), password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (rewards.User, error) {
	var u rewards.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Wallet, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (rewards.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userCols+`
		from users
		where id = $1 and deleted_at is null
	`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.User{}, rewards.ErrNotFound
	}
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (rewards.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userCols+`
		from users
		where email = $1 and deleted_at is null
	`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.User{}, rewards.ErrNotFound
	}
	return u, err
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (rewards.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userCols+`
		from users
		where wallet = $1 and deleted_at is null
	`, wallet)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.User{}, rewards.ErrNotFound
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]rewards.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userCols+`
		from users
		where deleted_at is null
		order by created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rewards.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd rewards.UserUpdate) (rewards.User, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	add := func(clause string, v any) {
		setClauses = append(setClauses, fmt.Sprintf(clause, idx))
		args = append(args, v)
		idx++
	}
	if upd.Name != nil {
		add("name = $%d", *upd.Name)
	}
	if upd.Email != nil {
		add("email = $%d", *upd.Email)
	}
	if upd.Wallet != nil {
		add("wallet = nullif($%d,'')", *upd.Wallet)
	}
	if upd.PasswordHash != nil {
		add("password_hash = $%d", *upd.PasswordHash)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d and deleted_at is null`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return rewards.User{}, rewards.ErrConflict
			}
			return rewards.User{}, err
		}
		if aff, err := res.RowsAffected(); err == nil && aff == 0 {
			return rewards.User{}, rewards.ErrNotFound
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.softDelete(ctx, "users", id)
}

// --- helpers ---

func (s *Store) softDelete(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`update %s set deleted_at = now() where id = $1 and deleted_at is null`, table), id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rewards.ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
