// Package migrate applies the jobboard schema and seed data. Migration files
// live under migrations/sql as NNNN_name.up.sql / NNNN_name.down.sql pairs and
// seed files under migrations/seeds; applied file names are recorded in ledger
// tables so every command is safe to rerun.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	migrationsLedger = "schema_migrations"
	seedsLedger      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Manager runs SQL files from disk against the jobboard database and tracks
// what already ran.
type Manager struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
}

// NewManager constructs a Manager over the given directories.
func NewManager(db *sql.DB, migrationsDir, seedsDir string) *Manager {
	return &Manager{
		db:            db,
		migrationsDir: migrationsDir,
		seedsDir:      seedsDir,
	}
}

// Up applies every pending up migration in file-name order.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx, migrationsLedger)
	if err != nil {
		return err
	}
	scripts, err := listScripts(m.migrationsDir, upSuffix)
	if err != nil {
		return err
	}
	for _, sc := range scripts {
		if done[sc.name] {
			continue
		}
		if err := m.runFile(ctx, sc.path); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", sc.name, err)
		}
		if err := m.record(ctx, migrationsLedger, sc.name); err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	history, err := m.appliedInOrder(ctx, migrationsLedger)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("migrate: nothing applied")
	}
	last := history[len(history)-1]
	downPath := filepath.Join(m.migrationsDir, strings.TrimSuffix(last, upSuffix)+downSuffix)
	if _, err := os.Stat(downPath); err != nil {
		return fmt.Errorf("migrate: %s has no down file", last)
	}
	if err := m.runFile(ctx, downPath); err != nil {
		return fmt.Errorf("migrate: roll back %s: %w", last, err)
	}
	_, err = m.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where name = $1`, migrationsLedger), last)
	return err
}

// Status returns applied migration names in the order they ran.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureLedgers(ctx); err != nil {
		return nil, err
	}
	return m.appliedInOrder(ctx, migrationsLedger)
}

// Seed applies seed files that have not run yet.
func (m *Manager) Seed(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx, seedsLedger)
	if err != nil {
		return err
	}
	scripts, err := listScripts(m.seedsDir, ".sql")
	if err != nil {
		return err
	}
	for _, sc := range scripts {
		if done[sc.name] {
			continue
		}
		if err := m.runFile(ctx, sc.path); err != nil {
			return fmt.Errorf("migrate: seed %s: %w", sc.name, err)
		}
		if err := m.record(ctx, seedsLedger, sc.name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) ensureLedgers(ctx context.Context) error {
	for _, table := range []string{migrationsLedger, seedsLedger} {
		ddl := fmt.Sprintf(`
			create table if not exists %s (
				name text primary key,
				applied_at timestamptz not null default now()
			)`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: create %s: %w", table, err)
		}
	}
	return nil
}

// runFile executes one SQL file inside a single transaction.
func (m *Manager) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitSQL(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *Manager) record(ctx context.Context, ledger, name string) error {
	_, err := m.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name) values ($1)`, ledger), name)
	return err
}

func (m *Manager) applied(ctx context.Context, ledger string) (map[string]bool, error) {
	names, err := m.appliedInOrder(ctx, ledger)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set, nil
}

func (m *Manager) appliedInOrder(ctx context.Context, ledger string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s order by applied_at, name`, ledger))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type script struct {
	name string
	path string
}

// listScripts returns the suffix-matching files of a flat directory. ReadDir
// already sorts by file name, which is the apply order. A missing directory
// means nothing to run.
func listScripts(dir, suffix string) ([]script, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var scripts []script
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		scripts = append(scripts, script{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	return scripts, nil
}

// splitSQL cuts a file into statements on semicolons that sit outside single
// quoted literals. That is enough for the DDL and seed files shipped under
// migrations/.
func splitSQL(input string) []string {
	var (
		out    []string
		start  int
		quoted bool
	)
	for i, r := range input {
		switch r {
		case '\'':
			quoted = !quoted
		case ';':
			if quoted {
				continue
			}
			if stmt := strings.TrimSpace(input[start : i+1]); stmt != ";" {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(input[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
