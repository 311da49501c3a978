package pg

import (
	"context"
	"database/sql"
	"errors"

	"orbitalliance.org/internal/rewards"
)

// Executions

func (s *Store) CreateExecution(ctx context.Context, e *rewards.Execution) error {
	_, err := s.db.ExecContext(ctx, `
		insert into executions (id, user_id, action_id, institution_id, executed_at, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.UserID, e.ActionID, e.InstitutionID, e.ExecutedAt, e.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return rewards.ErrNotFound
	}
	return err
}

const executionDetailQuery = `
	select e.id, e.executed_at, e.created_at,
	       u.id, u.name, u.email,
	       a.id, a.name, coalesce(a.description,''), a.reward,
	       i.id, i.name
	from executions e
	join users u on u.id = e.user_id
	join actions a on a.id = e.action_id
	join institutions i on i.id = e.institution_id
	where e.deleted_at is null
`

func (s *Store) queryExecutionDetails(ctx context.Context, where string, args ...any) ([]rewards.ExecutionDetail, error) {
	rows, err := s.db.QueryContext(ctx, executionDetailQuery+where+`
	order by e.executed_at desc, e.id desc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.ExecutionDetail{}
	for rows.Next() {
		var d rewards.ExecutionDetail
		if err := rows.Scan(&d.ID, &d.ExecutedAt, &d.CreatedAt,
			&d.Student.ID, &d.Student.Name, &d.Student.Email,
			&d.Action.ID, &d.Action.Name, &d.Action.Description, &d.Action.Reward,
			&d.Institution.ID, &d.Institution.Name); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) ListExecutionsByStudent(ctx context.Context, userID, institutionID string) ([]rewards.ExecutionDetail, error) {
	if institutionID != "" {
		return s.queryExecutionDetails(ctx, ` and e.user_id = $1 and e.institution_id = $2`, userID, institutionID)
	}
	return s.queryExecutionDetails(ctx, ` and e.user_id = $1`, userID)
}

func (s *Store) ListExecutionsByInstitution(ctx context.Context, institutionID string) ([]rewards.ExecutionDetail, error) {
	return s.queryExecutionDetails(ctx, ` and e.institution_id = $1`, institutionID)
}

func (s *Store) ListExecutionsByAction(ctx context.Context, actionID string) ([]rewards.ExecutionWithStudent, error) {
	rows, err := s.db.QueryContext(ctx, `
		select e.id, e.executed_at, e.created_at, u.id, u.name, u.email
		from executions e
		join users u on u.id = e.user_id
		where e.deleted_at is null and e.action_id = $1
		order by e.executed_at desc, e.id desc
	`, actionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.ExecutionWithStudent{}
	for rows.Next() {
		var row rewards.ExecutionWithStudent
		if err := rows.Scan(&row.ID, &row.ExecutedAt, &row.CreatedAt,
			&row.Student.ID, &row.Student.Name, &row.Student.Email); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Purchases

func (s *Store) CreatePurchase(ctx context.Context, p *rewards.Purchase) error {
	_, err := s.db.ExecContext(ctx, `
		insert into purchases (id, product_id, user_id, price_at_purchase, idempotency_key, purchased_at, created_at)
		values ($1, $2, $3, $4, nullif($5,''), $6, $7)
	`, p.ID, p.ProductID, p.UserID, p.PriceAtPurchase, p.IdempotencyKey, p.PurchasedAt, p.CreatedAt)
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

// Purchase reads join products without a deleted_at filter: history embeds
// the product even after the catalog entry is soft-deleted.
const purchaseWithProductQuery = `
	select pu.id, pu.product_id, pu.user_id, pu.price_at_purchase, coalesce(pu.idempotency_key,''), pu.purchased_at, pu.created_at,
	       p.id, p.institution_id, p.name, p.price, p.is_internal, coalesce(p.image,''), coalesce(p.description,''), p.created_at, p.updated_at
	from purchases pu
	join products p on p.id = pu.product_id
	where pu.deleted_at is null
`

func scanPurchaseWithProduct(row interface{ Scan(...any) error }) (rewards.PurchaseWithProduct, error) {
	var out rewards.PurchaseWithProduct
	err := row.Scan(&out.Purchase.ID, &out.Purchase.ProductID, &out.Purchase.UserID, &out.Purchase.PriceAtPurchase,
		&out.Purchase.IdempotencyKey, &out.Purchase.PurchasedAt, &out.Purchase.CreatedAt,
		&out.Product.ID, &out.Product.InstitutionID, &out.Product.Name, &out.Product.Price, &out.Product.IsInternal,
		&out.Product.Image, &out.Product.Description, &out.Product.CreatedAt, &out.Product.UpdatedAt)
	return out, err
}

func (s *Store) GetPurchaseByIdempotencyKey(ctx context.Context, key string) (rewards.PurchaseWithProduct, error) {
	row := s.db.QueryRowContext(ctx, purchaseWithProductQuery+`
	and pu.idempotency_key = $1`, key)
	out, err := scanPurchaseWithProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rewards.PurchaseWithProduct{}, rewards.ErrNotFound
	}
	return out, err
}

func (s *Store) ListPurchasesByUser(ctx context.Context, userID string) ([]rewards.PurchaseWithProduct, error) {
	rows, err := s.db.QueryContext(ctx, purchaseWithProductQuery+`
	and pu.user_id = $1
	order by pu.created_at desc, pu.id desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.PurchaseWithProduct{}
	for rows.Next() {
		out, err := scanPurchaseWithProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, out)
	}
	return result, rows.Err()
}

const purchaseDetailQuery = `
	select pu.id, pu.product_id, pu.user_id, pu.price_at_purchase, coalesce(pu.idempotency_key,''), pu.purchased_at, pu.created_at,
	       p.id, p.institution_id, p.name, p.price, p.is_internal, coalesce(p.image,''), coalesce(p.description,''), p.created_at, p.updated_at,
	       u.id, u.name, u.email
	from purchases pu
	join products p on p.id = pu.product_id
	join users u on u.id = pu.user_id
	where pu.deleted_at is null
`

func (s *Store) queryPurchaseDetails(ctx context.Context, where string, args ...any) ([]rewards.PurchaseDetail, error) {
	rows, err := s.db.QueryContext(ctx, purchaseDetailQuery+where+`
	order by pu.created_at desc, pu.id desc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []rewards.PurchaseDetail{}
	for rows.Next() {
		var d rewards.PurchaseDetail
		if err := rows.Scan(&d.Purchase.ID, &d.Purchase.ProductID, &d.Purchase.UserID, &d.Purchase.PriceAtPurchase,
			&d.Purchase.IdempotencyKey, &d.Purchase.PurchasedAt, &d.Purchase.CreatedAt,
			&d.Product.ID, &d.Product.InstitutionID, &d.Product.Name, &d.Product.Price, &d.Product.IsInternal,
			&d.Product.Image, &d.Product.Description, &d.Product.CreatedAt, &d.Product.UpdatedAt,
			&d.User.ID, &d.User.Name, &d.User.Email); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) ListPurchasesByProduct(ctx context.Context, productID string) ([]rewards.PurchaseDetail, error) {
	return s.queryPurchaseDetails(ctx, ` and pu.product_id = $1`, productID)
}

func (s *Store) ListPurchasesByInstitution(ctx context.Context, institutionID string) ([]rewards.PurchaseDetail, error) {
	return s.queryPurchaseDetails(ctx, ` and p.institution_id = $1`, institutionID)
}
