package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/folder"
)

// ViewStore is a folder.Store on Postgres. Child order lives in the
// parent's children array, which Insert and Update rewrite under a row lock.
type ViewStore struct {
	pool *pgxpool.Pool
}

var _ folder.Store = (*ViewStore)(nil)

// NewViewStore creates a ViewStore with the given connection pool.
func NewViewStore(pool *pgxpool.Pool) *ViewStore {
	return &ViewStore{pool: pool}
}

const viewColumns = `id, workspace_id, parent_view_id, name, layout, section, icon, extra, thumbnail,
	is_favorite, data, children, trashed, deleted_at, created, created_by`

func (s *ViewStore) Insert(ctx context.Context, rec folder.Record, index int) error {
	icon, err := encodeIcon(rec.Icon)
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if !rec.IsRoot() && !rec.IsOrphan() {
			var children []string
			err := tx.QueryRow(ctx,
				`SELECT children FROM views WHERE id = $1 FOR UPDATE`, rec.ParentViewID).Scan(&children)
			if err != nil {
				return mapError(err, cmderr.NotFound("parent view %s not found", rec.ParentViewID), "lock parent")
			}
			if _, err := tx.Exec(ctx,
				`UPDATE views SET children = $2 WHERE id = $1`,
				rec.ParentViewID, insertChild(children, rec.ID, index)); err != nil {
				return err
			}
		}
		if rec.Children == nil {
			rec.Children = []string{}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO views (`+viewColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			rec.ID, rec.WorkspaceID, rec.ParentViewID, rec.Name, rec.Layout, rec.Section, icon, rec.Extra, rec.Thumbnail,
			rec.IsFavorite, rec.Data, rec.Children, rec.Trashed, deletedAt(rec), rec.CreatedAt, rec.CreatedBy)
		return err
	})
	return mapError(err, nil, "insert view "+rec.ID)
}

func (s *ViewStore) Get(ctx context.Context, id string) (*folder.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+viewColumns+` FROM views WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, cmderr.NotFound("view %s not found", id), "get view")
	}
	return rec, nil
}

func (s *ViewStore) Update(ctx context.Context, id string, fn func(*folder.Record) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rec, err := scanRecord(tx.QueryRow(ctx, `SELECT `+viewColumns+` FROM views WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError(err, cmderr.NotFound("view %s not found", id), "lock view")
		}
		if err := fn(rec); err != nil {
			return err
		}
		icon, err := encodeIcon(rec.Icon)
		if err != nil {
			return err
		}
		if rec.Children == nil {
			rec.Children = []string{}
		}
		_, err = tx.Exec(ctx,
			`UPDATE views SET parent_view_id = $2, name = $3, layout = $4, section = $5, icon = $6, extra = $7,
			        thumbnail = $8, is_favorite = $9, data = $10, children = $11, trashed = $12, deleted_at = $13
			 WHERE id = $1`,
			id, rec.ParentViewID, rec.Name, rec.Layout, rec.Section, icon, rec.Extra,
			rec.Thumbnail, rec.IsFavorite, rec.Data, rec.Children, rec.Trashed, deletedAt(*rec))
		return err
	})
	return mapError(err, nil, "update view "+id)
}

func (s *ViewStore) List(ctx context.Context, workspaceID string) ([]folder.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+viewColumns+` FROM views WHERE workspace_id = $1 ORDER BY seq`, workspaceID)
	if err != nil {
		return nil, mapError(err, nil, "list views")
	}
	defer rows.Close()

	var out []folder.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError(err, nil, "scan view")
		}
		out = append(out, *rec)
	}
	return out, mapError(rows.Err(), nil, "list views")
}

func (s *ViewStore) SetCurrentView(ctx context.Context, workspaceID, email, viewID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO current_views (workspace_id, email, view_id) VALUES ($1, $2, $3)
		 ON CONFLICT (workspace_id, email) DO UPDATE SET view_id = EXCLUDED.view_id`,
		workspaceID, email, viewID)
	return mapError(err, nil, "set current view")
}

func (s *ViewStore) CurrentView(ctx context.Context, workspaceID, email string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT view_id FROM current_views WHERE workspace_id = $1 AND email = $2`, workspaceID, email).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", mapError(err, nil, "current view")
	}
	return id, nil
}

func scanRecord(row pgx.Row) (*folder.Record, error) {
	var rec folder.Record
	var icon []byte
	var deleted *time.Time
	err := row.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.ParentViewID, &rec.Name, &rec.Layout, &rec.Section, &icon, &rec.Extra, &rec.Thumbnail,
		&rec.IsFavorite, &rec.Data, &rec.Children, &rec.Trashed, &deleted, &rec.CreatedAt, &rec.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(icon) > 0 {
		rec.Icon = &folder.Icon{}
		if err := json.Unmarshal(icon, rec.Icon); err != nil {
			return nil, cmderr.Internal("view %s has a malformed icon: %v", rec.ID, err)
		}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if deleted != nil {
		rec.DeletedAt = deleted.UTC()
	}
	return &rec, nil
}

func encodeIcon(icon *folder.Icon) ([]byte, error) {
	if icon == nil {
		return nil, nil
	}
	data, err := json.Marshal(icon)
	if err != nil {
		return nil, cmderr.Internal("encode icon: %v", err)
	}
	return data, nil
}

func deletedAt(rec folder.Record) *time.Time {
	if !rec.Trashed || rec.DeletedAt.IsZero() {
		return nil
	}
	t := rec.DeletedAt
	return &t
}

// insertChild places id at index, appending when index is negative or past the end.
func insertChild(ids []string, id string, index int) []string {
	if index < 0 || index >= len(ids) {
		return append(ids, id)
	}
	ids = append(ids, "")
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	return ids
}
