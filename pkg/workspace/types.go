// Package workspace implements the user domain: accounts, workspaces,
// membership and the invitation protocol.
package workspace

import "time"

// Role is a member's role within a workspace.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleMember Role = "Member"
	RoleGuest  Role = "Guest"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleMember, RoleGuest:
		return true
	}
	return false
}

// InvitationStatus is the state of an invitation. Pending is the only
// non-terminal state.
type InvitationStatus string

const (
	StatusPending  InvitationStatus = "Pending"
	StatusAccepted InvitationStatus = "Accepted"
	StatusDeclined InvitationStatus = "Declined"
	StatusRevoked  InvitationStatus = "Revoked"
)

// CanTransition reports whether an invitation may move from s to next.
func (s InvitationStatus) CanTransition(next InvitationStatus) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusAccepted, StatusDeclined, StatusRevoked:
		return true
	}
	return false
}

// Workspace is a collaborative container owned by one user.
type Workspace struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerEmail string    `json:"owner_email"`
	CreatedAt  time.Time `json:"created_at"`
}

// Member is a user's membership in a workspace.
type Member struct {
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Invitation is an offer for a user to join a workspace.
type Invitation struct {
	InviteID      string           `json:"invite_id"`
	WorkspaceID   string           `json:"workspace_id"`
	WorkspaceName string           `json:"workspace_name"`
	InviterEmail  string           `json:"inviter_email"`
	InviteeEmail  string           `json:"invitee_email"`
	Role          Role             `json:"role"`
	Status        InvitationStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

// UserProfile is an account and its currently opened workspace.
type UserProfile struct {
	Email              string `json:"email"`
	Name               string `json:"name"`
	CurrentWorkspaceID string `json:"current_workspace_id"`
}

// SignUpRequest creates an account together with its first workspace.
type SignUpRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	WorkspaceName string `json:"workspace_name,omitempty"`
}

// InviteRequest invites a user to a workspace.
type InviteRequest struct {
	WorkspaceID  string `json:"workspace_id"`
	InviteeEmail string `json:"invitee_email"`
	Role         Role   `json:"role"`
}

// InvitationRequest addresses a single invitation.
type InvitationRequest struct {
	InviteID string `json:"invite_id"`
}

// RemoveMemberRequest removes a member from a workspace.
type RemoveMemberRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Email       string `json:"email"`
}

// WorkspaceRequest addresses a single workspace.
type WorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// InvitationList is the response of ListWorkspaceInvitations.
type InvitationList struct {
	Items []Invitation `json:"items"`
}

// MemberList is the response of GetWorkspaceMembers.
type MemberList struct {
	Items []Member `json:"items"`
}
