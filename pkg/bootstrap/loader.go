package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/morezero/workspace-bus/pkg/client"
	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/folder"
	"github.com/morezero/workspace-bus/pkg/workspace"
)

const logPrefix = "bootstrap:loader"

// LoadSeedConfig loads seed data from the first readable path. Explicit
// paths are tried first, then SEED_FILE, then config/seed.json and seed.json.
// Without any seed file an empty config is returned.
func LoadSeedConfig(paths ...string) (*SeedConfig, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("SEED_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/seed.json", "seed.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var cfg SeedConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - failed to parse seed file %s: %w", logPrefix, p, err)
		}
		slog.Info(fmt.Sprintf("%s - Loaded seed config %s from %s", logPrefix, cfg.Name, p))
		return &cfg, nil
	}

	slog.Info(fmt.Sprintf("%s - No seed file found, starting empty", logPrefix))
	return &SeedConfig{Name: "empty", Version: "1.0.0"}, nil
}

// ApplySeed creates the seeded users, memberships and views by sending
// commands through sender. Seeding is idempotent: users and memberships that
// already exist are skipped, and views are only created for users that were
// new in this run.
func ApplySeed(ctx context.Context, sender client.Sender, cfg *SeedConfig) error {
	if cfg == nil {
		return nil
	}
	anon := client.New(sender, "")
	created := make(map[string]bool, len(cfg.Users))

	for _, u := range cfg.Users {
		_, err := client.Call[workspace.SignUpRequest, workspace.UserProfile](ctx, anon, command.SignUp, workspace.SignUpRequest{
			Email:         u.Email,
			Name:          u.Name,
			WorkspaceName: u.WorkspaceName,
		})
		switch {
		case err == nil:
			created[workspace.NormalizeEmail(u.Email)] = true
		case cmderr.CodeOf(err) == cmderr.CodeConflict:
			slog.Debug(fmt.Sprintf("%s - user %s already exists", logPrefix, u.Email))
		default:
			return fmt.Errorf("%s - seed user %s: %w", logPrefix, u.Email, err)
		}
	}

	for _, m := range cfg.Memberships {
		if err := seedMembership(ctx, sender, m); err != nil {
			return err
		}
	}

	for _, v := range cfg.Views {
		if !created[workspace.NormalizeEmail(v.Owner)] {
			continue
		}
		c := client.New(sender, v.Owner)
		wv, err := client.Query[folder.WorkspaceView](ctx, c, command.ReadCurrentWorkspace)
		if err != nil {
			return fmt.Errorf("%s - seed views for %s: %w", logPrefix, v.Owner, err)
		}
		if err := seedView(ctx, c, wv.ID, v); err != nil {
			return err
		}
	}

	slog.Info(fmt.Sprintf("%s - Applied seed %s: %d new users", logPrefix, cfg.Name, len(created)))
	return nil
}

func seedMembership(ctx context.Context, sender client.Sender, m SeedMembership) error {
	owner := client.New(sender, m.Owner)
	member := client.New(sender, m.Member)

	profile, err := client.Query[workspace.UserProfile](ctx, owner, command.GetUserProfile)
	if err != nil {
		return fmt.Errorf("%s - seed membership owner %s: %w", logPrefix, m.Owner, err)
	}
	role := m.Role
	if role == "" {
		role = workspace.RoleMember
	}
	err = client.Exec(ctx, owner, command.InviteWorkspaceMember, workspace.InviteRequest{
		WorkspaceID:  profile.CurrentWorkspaceID,
		InviteeEmail: m.Member,
		Role:         role,
	})
	// A conflict means the member joined already or an earlier run stopped
	// between invite and accept. A pending invitation is accepted either way.
	conflict := cmderr.CodeOf(err) == cmderr.CodeConflict
	if err != nil && !conflict {
		return fmt.Errorf("%s - seed invite %s: %w", logPrefix, m.Member, err)
	}

	invs, err := client.Query[workspace.InvitationList](ctx, member, command.ListWorkspaceInvitations)
	if err != nil {
		return fmt.Errorf("%s - seed list invitations %s: %w", logPrefix, m.Member, err)
	}
	for _, inv := range invs.Items {
		if inv.WorkspaceID == profile.CurrentWorkspaceID {
			return client.Exec(ctx, member, command.AcceptWorkspaceInvitation, workspace.InvitationRequest{InviteID: inv.InviteID})
		}
	}
	if conflict {
		slog.Debug(fmt.Sprintf("%s - %s is already a member of %s", logPrefix, m.Member, profile.CurrentWorkspaceID))
		return nil
	}
	return fmt.Errorf("%s - invitation for %s to %s not found", logPrefix, m.Member, profile.CurrentWorkspaceID)
}

func seedView(ctx context.Context, c *client.Client, parentID string, v SeedView) error {
	created, err := client.Call[folder.CreateViewRequest, folder.View](ctx, c, command.CreateView, folder.CreateViewRequest{
		ParentViewID: parentID,
		Name:         v.Name,
		Layout:       v.Layout,
		ViewID:       v.ID,
		InitialData:  v.Data,
	})
	if err != nil {
		return fmt.Errorf("%s - seed view %s: %w", logPrefix, v.Name, err)
	}
	for _, child := range v.Children {
		if err := seedView(ctx, c, created.ID, child); err != nil {
			return err
		}
	}
	return nil
}
