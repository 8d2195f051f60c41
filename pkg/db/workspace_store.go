package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/workspace"
)

const workspaceLogPrefix = "db:workspace_store"

// WorkspaceStore is a workspace.Store on Postgres.
type WorkspaceStore struct {
	pool *pgxpool.Pool
}

var _ workspace.Store = (*WorkspaceStore)(nil)

// NewWorkspaceStore creates a WorkspaceStore with the given connection pool.
func NewWorkspaceStore(pool *pgxpool.Pool) *WorkspaceStore {
	return &WorkspaceStore{pool: pool}
}

// =========================================================================
// USERS
// =========================================================================

func (s *WorkspaceStore) CreateUser(ctx context.Context, p workspace.UserProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (email, name, current_workspace_id) VALUES ($1, $2, $3)`,
		p.Email, p.Name, p.CurrentWorkspaceID)
	if err != nil {
		return mapError(err, nil, "create user "+p.Email)
	}
	return nil
}

func (s *WorkspaceStore) GetUser(ctx context.Context, email string) (*workspace.UserProfile, error) {
	var p workspace.UserProfile
	err := s.pool.QueryRow(ctx,
		`SELECT email, name, current_workspace_id FROM users WHERE email = $1`, email).
		Scan(&p.Email, &p.Name, &p.CurrentWorkspaceID)
	if err != nil {
		return nil, mapError(err, cmderr.NotFound("user %s not found", email), "get user")
	}
	return &p, nil
}

func (s *WorkspaceStore) SetCurrentWorkspace(ctx context.Context, email, workspaceID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET current_workspace_id = $2 WHERE email = $1`, email, workspaceID)
	if err != nil {
		return mapError(err, nil, "set current workspace")
	}
	if tag.RowsAffected() == 0 {
		return cmderr.NotFound("user %s not found", email)
	}
	return nil
}

// =========================================================================
// WORKSPACES AND MEMBERS
// =========================================================================

func (s *WorkspaceStore) CreateWorkspace(ctx context.Context, w workspace.Workspace, owner workspace.Member) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workspaces (id, name, owner_email, created) VALUES ($1, $2, $3, $4)`,
			w.ID, w.Name, w.OwnerEmail, w.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO workspace_members (workspace_id, email, name, role, joined) VALUES ($1, $2, $3, $4, $5)`,
			w.ID, owner.Email, owner.Name, owner.Role, owner.JoinedAt)
		return err
	})
	if err != nil {
		return mapError(err, nil, "create workspace "+w.ID)
	}
	slog.Debug(fmt.Sprintf("%s - created workspace %s for %s", workspaceLogPrefix, w.ID, owner.Email))
	return nil
}

func (s *WorkspaceStore) GetWorkspace(ctx context.Context, id string) (*workspace.Workspace, error) {
	var w workspace.Workspace
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_email, created FROM workspaces WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.OwnerEmail, &w.CreatedAt)
	if err != nil {
		return nil, mapError(err, cmderr.NotFound("workspace %s not found", id), "get workspace")
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return &w, nil
}

func (s *WorkspaceStore) GetMember(ctx context.Context, workspaceID, email string) (*workspace.Member, error) {
	var m workspace.Member
	err := s.pool.QueryRow(ctx,
		`SELECT email, name, role, joined FROM workspace_members WHERE workspace_id = $1 AND email = $2`,
		workspaceID, email).
		Scan(&m.Email, &m.Name, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, mapError(err, cmderr.NotFound("%s is not a member of workspace %s", email, workspaceID), "get member")
	}
	m.JoinedAt = m.JoinedAt.UTC()
	return &m, nil
}

func (s *WorkspaceStore) ListMembers(ctx context.Context, workspaceID string) ([]workspace.Member, error) {
	if _, err := s.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT email, name, role, joined FROM workspace_members
		 WHERE workspace_id = $1
		 ORDER BY joined, email`, workspaceID)
	if err != nil {
		return nil, mapError(err, nil, "list members")
	}
	defer rows.Close()

	out := []workspace.Member{}
	for rows.Next() {
		var m workspace.Member
		if err := rows.Scan(&m.Email, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, mapError(err, nil, "scan member")
		}
		m.JoinedAt = m.JoinedAt.UTC()
		out = append(out, m)
	}
	return out, mapError(rows.Err(), nil, "list members")
}

func (s *WorkspaceStore) RemoveMember(ctx context.Context, workspaceID, email string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = $1 AND email = $2`, workspaceID, email)
	if err != nil {
		return mapError(err, nil, "remove member")
	}
	if tag.RowsAffected() == 0 {
		return cmderr.NotFound("%s is not a member of workspace %s", email, workspaceID)
	}
	return nil
}

// =========================================================================
// INVITATIONS
// =========================================================================

const invitationColumns = `invite_id, workspace_id, workspace_name, inviter_email, invitee_email, role, status, created`

func (s *WorkspaceStore) CreateInvitation(ctx context.Context, inv workspace.Invitation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workspace_invitations (`+invitationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.InviteID, inv.WorkspaceID, inv.WorkspaceName, inv.InviterEmail, inv.InviteeEmail, inv.Role, inv.Status, inv.CreatedAt)
	if err != nil {
		return mapError(err, nil, "create invitation "+inv.InviteID)
	}
	return nil
}

func (s *WorkspaceStore) GetInvitation(ctx context.Context, inviteID string) (*workspace.Invitation, error) {
	inv, err := scanInvitation(s.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM workspace_invitations WHERE invite_id = $1`, inviteID))
	if err != nil {
		return nil, mapError(err, cmderr.NotFound("invitation %s not found", inviteID), "get invitation")
	}
	return inv, nil
}

func (s *WorkspaceStore) ListInvitations(ctx context.Context, inviteeEmail string) ([]workspace.Invitation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+invitationColumns+` FROM workspace_invitations
		 WHERE invitee_email = $1
		 ORDER BY seq`, inviteeEmail)
	if err != nil {
		return nil, mapError(err, nil, "list invitations")
	}
	defer rows.Close()

	var out []workspace.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, mapError(err, nil, "scan invitation")
		}
		out = append(out, *inv)
	}
	return out, mapError(rows.Err(), nil, "list invitations")
}

func (s *WorkspaceStore) TransitionInvitation(ctx context.Context, inviteID string, next workspace.InvitationStatus, member *workspace.Member) (*workspace.Invitation, error) {
	var out *workspace.Invitation
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		inv, err := scanInvitation(tx.QueryRow(ctx,
			`SELECT `+invitationColumns+` FROM workspace_invitations WHERE invite_id = $1 FOR UPDATE`, inviteID))
		if err != nil {
			return mapError(err, cmderr.NotFound("invitation %s not found", inviteID), "get invitation")
		}
		if !inv.Status.CanTransition(next) {
			return cmderr.Conflict("invitation %s is %s, cannot become %s", inviteID, inv.Status, next)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE workspace_invitations SET status = $2 WHERE invite_id = $1`, inviteID, next); err != nil {
			return err
		}
		if next == workspace.StatusAccepted && member != nil {
			if _, err := tx.Exec(ctx,
				`INSERT INTO workspace_members (workspace_id, email, name, role, joined)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (workspace_id, email) DO NOTHING`,
				inv.WorkspaceID, member.Email, member.Name, member.Role, member.JoinedAt); err != nil {
				return err
			}
		}
		inv.Status = next
		out = inv
		return nil
	})
	if err != nil {
		return nil, mapError(err, nil, "transition invitation "+inviteID)
	}
	return out, nil
}

func (s *WorkspaceStore) RevokeInvitations(ctx context.Context, workspaceID, email string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workspace_invitations SET status = $3
		 WHERE workspace_id = $1 AND invitee_email = $2 AND status = $4`,
		workspaceID, email, workspace.StatusRevoked, workspace.StatusPending)
	if err != nil {
		return 0, mapError(err, nil, "revoke invitations")
	}
	return int(tag.RowsAffected()), nil
}

func scanInvitation(row pgx.Row) (*workspace.Invitation, error) {
	var inv workspace.Invitation
	err := row.Scan(
		&inv.InviteID, &inv.WorkspaceID, &inv.WorkspaceName, &inv.InviterEmail,
		&inv.InviteeEmail, &inv.Role, &inv.Status, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	return &inv, nil
}
