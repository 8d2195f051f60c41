package workspace

import (
	"context"

	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/registry"
)

// DomainVersion is the version of the user domain's command surface.
const DomainVersion = "1.1.0"

// RegisterHandlers declares the user domain and binds its commands to svc.
func RegisterHandlers(b *registry.Builder, svc *Service) error {
	if err := b.DeclareDomain(command.DomainUser, DomainVersion); err != nil {
		return err
	}

	handlers := map[command.ID]registry.Handler{
		command.SignUp: registry.Typed(func(ctx context.Context, req SignUpRequest) (*UserProfile, error) {
			return svc.SignUp(ctx, req)
		}),
		command.GetUserProfile:        registry.NoInput(svc.GetUserProfile),
		command.InviteWorkspaceMember: registry.NoOutput(svc.Invite),
		command.ListWorkspaceInvitations: registry.NoInput(func(ctx context.Context) (InvitationList, error) {
			items, err := svc.ListInvitations(ctx)
			return InvitationList{Items: items}, err
		}),
		command.AcceptWorkspaceInvitation: registry.NoOutput(func(ctx context.Context, req InvitationRequest) error {
			return svc.AcceptInvitation(ctx, req.InviteID)
		}),
		command.DeclineWorkspaceInvitation: registry.NoOutput(func(ctx context.Context, req InvitationRequest) error {
			return svc.DeclineInvitation(ctx, req.InviteID)
		}),
		command.RemoveWorkspaceMember: registry.NoOutput(svc.RemoveMember),
		command.GetWorkspaceMembers: registry.Typed(func(ctx context.Context, req WorkspaceRequest) (MemberList, error) {
			items, err := svc.Members(ctx, req.WorkspaceID)
			return MemberList{Items: items}, err
		}),
		command.GetUserWorkspace: registry.Typed(func(ctx context.Context, req WorkspaceRequest) (*Workspace, error) {
			return svc.Workspace(ctx, req.WorkspaceID)
		}),
		command.OpenWorkspace: registry.NoOutput(func(ctx context.Context, req WorkspaceRequest) error {
			return svc.Open(ctx, req.WorkspaceID)
		}),
	}

	for id, h := range handlers {
		if err := b.Register(id, h); err != nil {
			return err
		}
	}
	return nil
}
