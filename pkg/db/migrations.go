package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsLogPrefix = "db:migrations"

// Migration is one forward-only schema change.
type Migration struct {
	Name string
	SQL  string
}

// MigrationState describes which migrations of a directory have been applied.
type MigrationState struct {
	Applied []string
	Pending []string
}

// LoadMigrations reads all .sql files from dir, sorted by name.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []Migration
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, path, err)
		}
		out = append(out, Migration{Name: name, SQL: string(data)})
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migration files from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name    TEXT PRIMARY KEY,
	applied TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigrations applies the migrations that have not been recorded yet, each
// in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("%s - failed to create schema_migrations: %w", migrationsLogPrefix, err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}

	n := 0
	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s - migration %s failed: %w", migrationsLogPrefix, m.Name, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", migrationsLogPrefix, m.Name))
		n++
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete, %d applied", migrationsLogPrefix, n))
	return nil
}

// MigrationStatus compares the migrations in dir with those recorded in the database.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, dir string) (*MigrationState, error) {
	migrations, err := LoadMigrations(dir)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("%s - failed to create schema_migrations: %w", migrationsLogPrefix, err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}
	return splitMigrations(migrations, applied), nil
}

// MigrationDown is not supported: migrations are forward-only. Restore a backup to roll back.
func MigrationDown(context.Context, *pgxpool.Pool, string) error {
	return fmt.Errorf("%s - down migrations are not supported, restore a backup to roll back", migrationsLogPrefix)
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read schema_migrations: %w", migrationsLogPrefix, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s - failed to scan schema_migrations: %w", migrationsLogPrefix, err)
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

func splitMigrations(migrations []Migration, applied map[string]bool) *MigrationState {
	st := &MigrationState{Applied: []string{}, Pending: []string{}}
	for _, m := range migrations {
		if applied[m.Name] {
			st.Applied = append(st.Applied, m.Name)
		} else {
			st.Pending = append(st.Pending, m.Name)
		}
	}
	return st
}
