package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"orbitalliance.org/internal/rewards"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestGetInstitutionFiltersSoftDeleted(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "coalesce", "created_at", "updated_at"}).
		AddRow("inst-1", "a@school.edu", "hash", "School A", "wallet-a", now, now)
	mock.ExpectQuery("select .* from institutions.*where id = \\$1 and deleted_at is null").
		WithArgs("inst-1").WillReturnRows(rows)

	inst, err := store.GetInstitution(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("GetInstitution: %v", err)
	}
	if inst.Name != "School A" || inst.Wallet != "wallet-a" {
		t.Fatalf("unexpected institution: %+v", inst)
	}

	mock.ExpectQuery("select .* from institutions").
		WithArgs("inst-gone").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	if _, err := store.GetInstitution(context.Background(), "inst-gone"); !errors.Is(err, rewards.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into users").
		WithArgs("u-1", "Ana", "ana@example.com", "wallet-1", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "users_email_live_idx"})

	now := time.Now().UTC()
	err := store.CreateUser(context.Background(), &rewards.User{
		ID: "u-1", Name: "Ana", Email: "ana@example.com", Wallet: "wallet-1",
		PasswordHash: "hash", CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, rewards.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateMembershipConflictAndMissingParents(t *testing.T) {
	store, mock := newMockStore(t)

	m := rewards.Membership{ID: "m-1", UserID: "u-1", InstitutionID: "inst-1", Role: rewards.RoleComum, JoinedAt: time.Now().UTC()}

	mock.ExpectExec("insert into memberships").
		WithArgs(m.ID, m.UserID, m.InstitutionID, "comum", m.JoinedAt).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	if err := store.CreateMembership(context.Background(), &m); !errors.Is(err, rewards.ErrConflict) {
		t.Fatalf("expected ErrConflict on active duplicate, got %v", err)
	}

	mock.ExpectExec("insert into memberships").
		WithArgs(m.ID, m.UserID, m.InstitutionID, "comum", m.JoinedAt).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	if err := store.CreateMembership(context.Background(), &m); !errors.Is(err, rewards.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing parent, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateActionBuildsPartialSet(t *testing.T) {
	store, mock := newMockStore(t)

	reward := int64(75)
	mock.ExpectExec(`update actions set reward = \$1, updated_at = now\(\) where id = \$2 and deleted_at is null`).
		WithArgs(reward, "act-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "institution_id", "name", "coalesce", "reward", "created_at", "updated_at"}).
		AddRow("act-1", "inst-1", "Recycle", "", reward, now, now)
	mock.ExpectQuery("select .* from actions").WithArgs("act-1").WillReturnRows(rows)

	got, err := store.UpdateAction(context.Background(), "act-1", rewards.ActionUpdate{Reward: &reward})
	if err != nil {
		t.Fatalf("UpdateAction: %v", err)
	}
	if got.Reward != reward {
		t.Fatalf("reward not applied: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSoftDeleteReportsMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update products set deleted_at = now\(\) where id = \$1 and deleted_at is null`).
		WithArgs("p-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteProduct(context.Background(), "p-gone"); !errors.Is(err, rewards.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePurchaseMapsIdempotencyConflict(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	p := rewards.Purchase{
		ID: "pur-1", ProductID: "p-1", UserID: "u-1",
		PriceAtPurchase: 120, IdempotencyKey: "key-1",
		PurchasedAt: now, CreatedAt: now,
	}
	mock.ExpectExec("insert into purchases").
		WithArgs(p.ID, p.ProductID, p.UserID, p.PriceAtPurchase, p.IdempotencyKey, p.PurchasedAt, p.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "purchases_idempotency_key_idx"})

	if err := store.CreatePurchase(context.Background(), &p); !errors.Is(err, rewards.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListExecutionsByStudentFiltersDeleted(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "executed_at", "created_at",
		"u_id", "u_name", "u_email",
		"a_id", "a_name", "coalesce", "reward",
		"i_id", "i_name",
	}).AddRow("exe-1", now, now,
		"u-1", "Lia", "lia@example.com",
		"a-1", "Recycle", "bring bottles", int64(50),
		"inst-1", "Orbit High")

	mock.ExpectQuery("select .* from executions e.*join users u on u.id = e.user_id.*where e.deleted_at is null.*and e.user_id = \\$1").
		WithArgs("u-1").WillReturnRows(rows)

	got, err := store.ListExecutionsByStudent(context.Background(), "u-1", "")
	if err != nil {
		t.Fatalf("ListExecutionsByStudent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(got))
	}
	if got[0].Action.Reward != 50 || got[0].Student.Name != "Lia" {
		t.Fatalf("detail not populated: %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPurchasesByUserEmbedsProduct(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "product_id", "user_id", "price_at_purchase", "coalesce", "purchased_at", "created_at",
		"p_id", "institution_id", "name", "price", "is_internal", "image", "description", "p_created_at", "p_updated_at",
	}).AddRow("pur-1", "p-1", "u-1", int64(120), "", now, now,
		"p-1", "inst-1", "Mug", int64(150), false, "", "ceramic", now, now)

	mock.ExpectQuery("select .* from purchases pu.*join products p on p.id = pu.product_id.*where pu.deleted_at is null.*and pu.user_id = \\$1").
		WithArgs("u-1").WillReturnRows(rows)

	got, err := store.ListPurchasesByUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListPurchasesByUser: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(got))
	}
	if got[0].PriceAtPurchase != 120 || got[0].Product.Price != 150 {
		t.Fatalf("price lock not preserved: %+v", got[0])
	}
	if got[0].Product.Name != "Mug" {
		t.Fatalf("product not embedded: %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
