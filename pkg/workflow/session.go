// Package workflow drives multi-step command protocols on behalf of a user.
//
// Helpers come in two flavours. Strict helpers panic with the *cmderr.Error
// when a step fails; they are meant for scenarios where a failure is a bug in
// the scenario itself. Soft helpers return the error. Steps inside a helper
// run strictly in sequence and nothing is retried.
package workflow

import (
	"context"

	"github.com/morezero/workspace-bus/pkg/client"
	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/workspace"
)

// Session sends commands as one user.
type Session struct {
	c *client.Client
}

// NewSession creates a session for an existing user.
func NewSession(sender client.Sender, email string) *Session {
	return &Session{c: client.New(sender, email)}
}

// SignUp creates the account and returns its session.
func SignUp(ctx context.Context, sender client.Sender, email, name string) *Session {
	anon := client.New(sender, "")
	p := client.MustCall[workspace.SignUpRequest, workspace.UserProfile](ctx, anon, command.SignUp, workspace.SignUpRequest{Email: email, Name: name})
	return NewSession(sender, p.Email)
}

// Client exposes the session's typed client for commands without a helper.
func (s *Session) Client() *client.Client {
	return s.c
}

// Email returns the session user's email.
func (s *Session) Email() string {
	return s.c.UserEmail()
}

// GetUserProfile returns the session user's profile.
func (s *Session) GetUserProfile(ctx context.Context) workspace.UserProfile {
	return client.MustQuery[workspace.UserProfile](ctx, s.c, command.GetUserProfile)
}

// InviteWorkspaceMember invites email to workspaceID with role.
func (s *Session) InviteWorkspaceMember(ctx context.Context, workspaceID, email string, role workspace.Role) {
	client.MustExec(ctx, s.c, command.InviteWorkspaceMember, workspace.InviteRequest{
		WorkspaceID:  workspaceID,
		InviteeEmail: email,
		Role:         role,
	})
}

// ListWorkspaceInvitations returns the session user's pending invitations.
func (s *Session) ListWorkspaceInvitations(ctx context.Context) []workspace.Invitation {
	return client.MustQuery[workspace.InvitationList](ctx, s.c, command.ListWorkspaceInvitations).Items
}

// AcceptWorkspaceInvitation accepts an invitation addressed to the session user.
func (s *Session) AcceptWorkspaceInvitation(ctx context.Context, inviteID string) {
	client.MustExec(ctx, s.c, command.AcceptWorkspaceInvitation, workspace.InvitationRequest{InviteID: inviteID})
}

// AddWorkspaceMember makes other a member of workspaceID: invite other's
// email, find the invitation among other's pending invitations and accept it
// as other. A missing invitation panics with WORKFLOW_ASSUMPTION_VIOLATED.
func (s *Session) AddWorkspaceMember(ctx context.Context, workspaceID string, other *Session) {
	email := other.GetUserProfile(ctx).Email
	s.InviteWorkspaceMember(ctx, workspaceID, email, workspace.RoleMember)

	for _, inv := range other.ListWorkspaceInvitations(ctx) {
		if inv.WorkspaceID == workspaceID {
			other.AcceptWorkspaceInvitation(ctx, inv.InviteID)
			return
		}
	}
	panic(cmderr.New(cmderr.KindWorkflowAssumption, "no invitation to workspace %s for %s", workspaceID, email))
}

// DeleteWorkspaceMember removes email from workspaceID.
func (s *Session) DeleteWorkspaceMember(ctx context.Context, workspaceID, email string) {
	client.MustExec(ctx, s.c, command.RemoveWorkspaceMember, workspace.RemoveMemberRequest{WorkspaceID: workspaceID, Email: email})
}

// GetWorkspaceMembers lists the members of workspaceID.
func (s *Session) GetWorkspaceMembers(ctx context.Context, workspaceID string) []workspace.Member {
	return client.MustCall[workspace.WorkspaceRequest, workspace.MemberList](ctx, s.c, command.GetWorkspaceMembers, workspace.WorkspaceRequest{WorkspaceID: workspaceID}).Items
}

// GetUserWorkspace returns a workspace the session user belongs to.
func (s *Session) GetUserWorkspace(ctx context.Context, workspaceID string) workspace.Workspace {
	return client.MustCall[workspace.WorkspaceRequest, workspace.Workspace](ctx, s.c, command.GetUserWorkspace, workspace.WorkspaceRequest{WorkspaceID: workspaceID})
}

// OpenWorkspace switches the session user's current workspace.
func (s *Session) OpenWorkspace(ctx context.Context, workspaceID string) {
	client.MustExec(ctx, s.c, command.OpenWorkspace, workspace.WorkspaceRequest{WorkspaceID: workspaceID})
}
