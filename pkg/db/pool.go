// Package db provides the Postgres stores for workspaces and views, backed by a pgx pool.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// ApplicationName is reported to Postgres unless the URL sets application_name.
const ApplicationName = "workspace-bus"

const (
	defaultMaxConns = 20
	defaultMinConns = 2
)

// NewPool creates a new pgx connection pool from the given database URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := parsePoolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established (max %d conns)", logPrefix, config.MaxConns))
	return pool, nil
}

// parsePoolConfig parses databaseURL and fills in pool sizes and the
// application name. Values set in the URL win.
func parsePoolConfig(databaseURL string) (*pgxpool.Config, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("%s - database URL is empty", logPrefix)
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	if !strings.Contains(databaseURL, "pool_max_conns") {
		config.MaxConns = defaultMaxConns
	}
	if !strings.Contains(databaseURL, "pool_min_conns") {
		config.MinConns = min(defaultMinConns, config.MaxConns)
	}
	if config.ConnConfig.RuntimeParams["application_name"] == "" {
		config.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return config, nil
}
