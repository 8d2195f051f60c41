package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ensureLogPrefix = "db:ensure"

var safeDBName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// EnsureDatabase creates the database named in databaseURL when it does not
// exist yet. It connects to the server's postgres database to do so.
func EnsureDatabase(ctx context.Context, databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("%s - invalid database URL: %w", ensureLogPrefix, err)
	}
	dbname, err := databaseName(u)
	if err != nil {
		return err
	}

	config, err := pgxpool.ParseConfig(buildPostgresURL(u))
	if err != nil {
		return fmt.Errorf("%s - failed to parse postgres URL: %w", ensureLogPrefix, err)
	}
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to postgres: %w", ensureLogPrefix, err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, dbname).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s - failed to check database: %w", ensureLogPrefix, err)
	}
	if exists {
		return nil
	}

	slog.Info(fmt.Sprintf("%s - Creating database %q", ensureLogPrefix, dbname))
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", quoteIdent(dbname))); err != nil {
		return fmt.Errorf("%s - CREATE DATABASE failed: %w", ensureLogPrefix, err)
	}
	return nil
}

func databaseName(u *url.URL) (string, error) {
	name := strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if name == "" {
		return "", fmt.Errorf("%s - database name empty in URL", ensureLogPrefix)
	}
	if !safeDBName.MatchString(name) {
		return "", fmt.Errorf("%s - database name %q contains invalid characters", ensureLogPrefix, name)
	}
	return name, nil
}

func buildPostgresURL(u *url.URL) string {
	postgres := *u
	postgres.Path = "/postgres"
	return postgres.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
