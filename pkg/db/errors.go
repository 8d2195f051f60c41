package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/morezero/workspace-bus/pkg/cmderr"
)

const uniqueViolation = "23505"

// mapError turns driver errors into command errors: no rows becomes
// notFound, a unique violation becomes CONFLICT and anything else is wrapped.
func mapError(err error, notFound *cmderr.Error, op string) error {
	if err == nil {
		return nil
	}
	var ce *cmderr.Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return cmderr.Conflict("%s: %s", op, pgErr.Detail)
	}
	return fmt.Errorf("db:store - %s failed: %w", op, err)
}
