package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"orbitalliance.org/internal/rewards"
)

// Actions

func (s *Store) CreateAction(ctx context.Context, a *rewards.Action) error {
	_, err := s.db.ExecContext(ctx, `
		insert into actions (id, institution_id, name, description, reward, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.InstitutionID, a.Name, a.Description, a.Reward, a.CreatedAt, a.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return rewards.ErrNotFound
	}
	return err
}

const actionCols = `id, institution_id, name, coalesce(description,''), reward, created_at, updated_at`

func scanAction(row interface{ Scan(...any) error }) (rewards.Action, error) {
	var a rewards.Action
	err := row.Scan(&a.ID, &a.InstitutionID, &a.Name, &a.Description, &a.Reward, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Store) GetAction(ctx context.Context, id string) (rewards.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+actionCols+`
		from actions
		where id = $1 and deleted_at is null
	`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.Action{}, rewards.ErrNotFound
	}
	return a, err
}

func (s *Store) listActions(ctx context.Context, where, order string, args ...any) ([]rewards.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+actionCols+`
		from actions
		where deleted_at is null`+where+`
		order by `+order, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) ListActions(ctx context.Context) ([]rewards.Action, error) {
	return s.listActions(ctx, "", "created_at, id")
}

func (s *Store) ListActionsByInstitution(ctx context.Context, institutionID string) ([]rewards.Action, error) {
	return s.listActions(ctx, " and institution_id = $1", "created_at, id", institutionID)
}

func (s *Store) ListPublicActions(ctx context.Context) ([]rewards.Action, error) {
	return s.listActions(ctx, "", "reward desc, created_at, id")
}

func (s *Store) SearchActions(ctx context.Context, term string) ([]rewards.ActionWithInstitution, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.institution_id, a.name, coalesce(a.description,''), a.reward, a.created_at, a.updated_at, i.id, i.name
		from actions a
		join institutions i on i.id = a.institution_id
		where a.deleted_at is null and (a.name ilike $1 or a.description ilike $1)
		order by a.created_at, a.id
	`, "%"+escapeLike(term)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.ActionWithInstitution{}
	for rows.Next() {
		var a rewards.ActionWithInstitution
		if err := rows.Scan(&a.ID, &a.InstitutionID, &a.Name, &a.Description, &a.Reward, &a.CreatedAt, &a.UpdatedAt,
			&a.Institution.ID, &a.Institution.Name); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) UpdateAction(ctx context.Context, id string, upd rewards.ActionUpdate) (rewards.Action, error) {
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
	if upd.Description != nil {
		add("description = $%d", *upd.Description)
	}
	if upd.Reward != nil {
		add("reward = $%d", *upd.Reward)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update actions set %s where id = $%d and deleted_at is null`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return rewards.Action{}, err
		}
		if aff, err := res.RowsAffected(); err == nil && aff == 0 {
			return rewards.Action{}, rewards.ErrNotFound
		}
	}
	return s.GetAction(ctx, id)
}

func (s *Store) DeleteAction(ctx context.Context, id string) error {
	return s.softDelete(ctx, "actions", id)
}

// Products

func (s *Store) CreateProduct(ctx context.Context, p *rewards.Product) error {
	_, err := s.db.ExecContext(ctx, `
		insert into products (id, institution_id, name, price, is_internal, image, description, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.InstitutionID, p.Name, p.Price, p.IsInternal, p.Image, p.Description, p.CreatedAt, p.UpdatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return rewards.ErrNotFound
	}
	return err
}

const productCols = `id, institution_id, name, price, is_internal, coalesce(image,''), coalesce(description,''), created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (rewards.Product, error) {
	var p rewards.Product
	err := row.Scan(&p.ID, &p.InstitutionID, &p.Name, &p.Price, &p.IsInternal, &p.Image, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) GetProduct(ctx context.Context, id string) (rewards.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+productCols+`
		from products
		where id = $1 and deleted_at is null
	`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.Product{}, rewards.ErrNotFound
	}
	return p, err
}

func (s *Store) listProducts(ctx context.Context, where string, args ...any) ([]rewards.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+productCols+`
		from products
		where deleted_at is null`+where+`
		order by created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context) ([]rewards.Product, error) {
	return s.listProducts(ctx, "")
}

func (s *Store) ListProductsByInstitution(ctx context.Context, institutionID string) ([]rewards.Product, error) {
	return s.listProducts(ctx, " and institution_id = $1", institutionID)
}

func (s *Store) ListPublicProducts(ctx context.Context) ([]rewards.Product, error) {
	return s.listProducts(ctx, " and is_internal = false")
}

func (s *Store) SearchProducts(ctx context.Context, term string) ([]rewards.ProductWithInstitution, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.institution_id, p.name, p.price, p.is_internal, coalesce(p.image,''), coalesce(p.description,''), p.created_at, p.updated_at, i.id, i.name
		from products p
		join institutions i on i.id = p.institution_id
		where p.deleted_at is null and (p.name ilike $1 or p.description ilike $1)
		order by p.created_at, p.id
	`, "%"+escapeLike(term)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.ProductWithInstitution{}
	for rows.Next() {
		var p rewards.ProductWithInstitution
		if err := rows.Scan(&p.ID, &p.InstitutionID, &p.Name, &p.Price, &p.IsInternal, &p.Image, &p.Description,
			&p.CreatedAt, &p.UpdatedAt, &p.Institution.ID, &p.Institution.Name); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, id string, upd rewards.ProductUpdate) (rewards.Product, error) {
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
	if upd.InstitutionID != nil {
		add("institution_id = $%d", *upd.InstitutionID)
	}
	if upd.Name != nil {
		add("name = $%d", *upd.Name)
	}
	if upd.Price != nil {
		add("price = $%d", *upd.Price)
	}
	if upd.IsInternal != nil {
		add("is_internal = $%d", *upd.IsInternal)
	}
	if upd.Image != nil {
		add("image = $%d", *upd.Image)
	}
	if upd.Description != nil {
		add("description = $%d", *upd.Description)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update products set %s where id = $%d and deleted_at is null`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return rewards.Product{}, rewards.ErrNotFound
			}
			return rewards.Product{}, err
		}
		if aff, err := res.RowsAffected(); err == nil && aff == 0 {
			return rewards.Product{}, rewards.ErrNotFound
		}
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.softDelete(ctx, "products", id)
}

// escapeLike neutralises ilike metacharacters in user-supplied search terms.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
