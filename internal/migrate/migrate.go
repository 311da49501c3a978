// Package migrate applies versioned schema migrations and idempotent seed
// scripts. The SQL ships embedded in the binary so deployments never depend
// on a checkout being present next to the executable.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed sql
var embedded embed.FS

const historyTable = "orbit_schema_history"

// Kinds recorded in the history table.
const (
	kindMigration = "migration"
	kindSeed      = "seed"
)

// Runner executes migration and seed scripts against a database.
type Runner struct {
	db    *sql.DB
	files fs.FS
}

// New returns a Runner over an explicit filesystem. The filesystem must hold
// migrations as sql/NNNN_name.up.sql with matching .down.sql files, and seeds
// as sql/seed/NNNN_name.sql.
func New(db *sql.DB, files fs.FS) *Runner {
	return &Runner{db: db, files: files}
}

// Default returns a Runner over the SQL embedded in the binary.
func Default(db *sql.DB) *Runner {
	return &Runner{db: db, files: embedded}
}

// Applied is one history entry.
type Applied struct {
	Name      string
	Kind      string
	AppliedAt time.Time
}

// Up applies every pending migration in lexical order.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.ensureHistory(ctx); err != nil {
		return err
	}
	done, err := r.applied(ctx, kindMigration)
	if err != nil {
		return err
	}
	names, err := r.list("sql", ".up.sql")
	if err != nil {
		return err
	}
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := r.execFile(ctx, "sql/"+name); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if err := r.record(ctx, name, kindMigration); err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.ensureHistory(ctx); err != nil {
		return err
	}
	history, err := r.Status(ctx)
	if err != nil {
		return err
	}
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Kind == kindMigration {
			last = history[i].Name
			break
		}
	}
	if last == "" {
		return errors.New("no migrations applied")
	}
	down := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
	if _, err := fs.Stat(r.files, "sql/"+down); err != nil {
		return fmt.Errorf("missing down migration for %s", last)
	}
	if err := r.execFile(ctx, "sql/"+down); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx,
		`delete from `+historyTable+` where name = $1 and kind = $2`, last, kindMigration)
	return err
}

// Seed applies pending seed scripts. Seeds already recorded are skipped, so
// re-running is safe.
func (r *Runner) Seed(ctx context.Context) error {
	if err := r.ensureHistory(ctx); err != nil {
		return err
	}
	done, err := r.applied(ctx, kindSeed)
	if err != nil {
		return err
	}
	names, err := r.list("sql/seed", ".sql")
	if err != nil {
		return err
	}
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := r.execFile(ctx, "sql/seed/"+name); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
		if err := r.record(ctx, name, kindSeed); err != nil {
			return err
		}
	}
	return nil
}

// Status returns the history in application order.
func (r *Runner) Status(ctx context.Context) ([]Applied, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`select name, kind, applied_at from `+historyTable+` order by applied_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Applied
	for rows.Next() {
		var a Applied
		if err := rows.Scan(&a.Name, &a.Kind, &a.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		create table if not exists `+historyTable+` (
			name text not null,
			kind text not null,
			applied_at timestamptz not null default now(),
			primary key (name, kind)
		)`)
	return err
}

func (r *Runner) applied(ctx context.Context, kind string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`select name from `+historyTable+` where kind = $1`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

func (r *Runner) record(ctx context.Context, name, kind string) error {
	_, err := r.db.ExecContext(ctx,
		`insert into `+historyTable+` (name, kind, applied_at) values ($1, $2, $3)`,
		name, kind, time.Now().UTC())
	return err
}

func (r *Runner) list(dir, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(r.files, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// execFile runs every statement of one script inside a transaction.
func (r *Runner) execFile(ctx context.Context, path string) error {
	raw, err := fs.ReadFile(r.files, path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// splitStatements splits on semicolons outside single-quoted strings. Scripts
// here avoid dollar quoting so this is sufficient.
func splitStatements(script string) []string {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	for _, r := range script {
		switch r {
		case '\'':
			inString = !inString
			current.WriteRune(r)
		case ';':
			current.WriteRune(r)
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
