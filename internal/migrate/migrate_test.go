package migrate

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/0001_init.up.sql":   {Data: []byte("create table a (id text);")},
		"sql/0001_init.down.sql": {Data: []byte("drop table a;")},
		"sql/0002_more.up.sql":   {Data: []byte("create table b (id text);\ncreate index b_idx on b (id);")},
		"sql/0002_more.down.sql": {Data: []byte("drop table b;")},
		"sql/seed/0001_demo.sql": {Data: []byte("insert into a (id) values ('x;y');")},
	}
}

func TestUpSkipsAppliedMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from orbit_schema_history where kind").
		WithArgs(kindMigration).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))

	// 0002 has two statements, then one history insert.
	mock.ExpectBegin()
	mock.ExpectExec("create table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create index b_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := New(db, testFS()).Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name, kind, applied_at from orbit_schema_history").
		WillReturnRows(sqlmock.NewRows([]string{"name", "kind", "applied_at"}).
			AddRow("0001_init.up.sql", kindMigration, time.Now()).
			AddRow("0002_more.up.sql", kindMigration, time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec("drop table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("delete from orbit_schema_history").
		WithArgs("0002_more.up.sql", kindMigration).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := New(db, testFS()).Down(context.Background()); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownWithoutHistoryFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name, kind, applied_at from orbit_schema_history").
		WillReturnRows(sqlmock.NewRows([]string{"name", "kind", "applied_at"}))

	if err := New(db, testFS()).Down(context.Background()); err == nil {
		t.Fatalf("expected error with empty history")
	}
}

func TestSeedHonorsQuotedSemicolons(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from orbit_schema_history where kind").
		WithArgs(kindSeed).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	// The seed contains a semicolon inside a string literal and must run as
	// one statement.
	mock.ExpectBegin()
	mock.ExpectExec("insert into a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("insert into orbit_schema_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := New(db, testFS()).Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("select 1; select 'a;b'; select 2")
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != " select 'a;b';" {
		t.Fatalf("quoted semicolon split: %q", stmts[1])
	}
}
