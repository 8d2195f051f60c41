package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearAll truncates every workspace and view table. The schema and the
// migration history are preserved.
func ClearAll(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing workspace and view tables", clearLogPrefix))

	_, err := pool.Exec(ctx, `TRUNCATE TABLE
		current_views,
		views,
		workspace_invitations,
		workspace_members,
		workspaces,
		users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Tables cleared", clearLogPrefix))
	return nil
}
