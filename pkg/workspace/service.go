package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
	"github.com/morezero/workspace-bus/pkg/events"
)

const logPrefix = "workspace:service"

// DefaultWorkspaceName is used when SignUp does not name the first workspace.
const DefaultWorkspaceName = "My Workspace"

// CreatedHook runs after a workspace has been stored.
type CreatedHook func(ctx context.Context, w Workspace) error

// Service implements the user domain on top of a Store.
type Service struct {
	store     Store
	publisher events.EventPublisher
	onCreated []CreatedHook
	now       func() time.Time
}

// ServiceOpts configures a Service. Nil or zero values use defaults.
type ServiceOpts struct {
	Publisher events.EventPublisher
	Now       func() time.Time
}

// NewService creates a Service. Pass nil for opts to use defaults.
func NewService(store Store, opts *ServiceOpts) *Service {
	s := &Service{store: store, publisher: &events.NoOpPublisher{}, now: time.Now}
	if opts != nil {
		if opts.Publisher != nil {
			s.publisher = opts.Publisher
		}
		if opts.Now != nil {
			s.now = opts.Now
		}
	}
	return s
}

// OnWorkspaceCreated registers a hook run for every new workspace. Hooks must
// be registered before the service handles commands.
func (s *Service) OnWorkspaceCreated(h CreatedHook) {
	s.onCreated = append(s.onCreated, h)
}

// SignUp creates an account, its first workspace and opens it.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*UserProfile, error) {
	email := NormalizeEmail(req.Email)
	if !validEmail(email) {
		return nil, cmderr.InvalidArgument("invalid email %q", req.Email)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = displayName(email)
	}

	if err := s.store.CreateUser(ctx, UserProfile{Email: email, Name: name}); err != nil {
		return nil, err
	}

	wsName := strings.TrimSpace(req.WorkspaceName)
	if wsName == "" {
		wsName = DefaultWorkspaceName
	}
	w, err := s.CreateWorkspace(ctx, email, wsName)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("%s - Signed up %s with workspace %s", logPrefix, email, w.ID))
	return s.store.GetUser(ctx, email)
}

// CreateWorkspace creates a workspace owned by ownerEmail and makes it the owner's current workspace.
func (s *Service) CreateWorkspace(ctx context.Context, ownerEmail, name string) (*Workspace, error) {
	owner, err := s.store.GetUser(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	w := Workspace{ID: uuid.NewString(), Name: name, OwnerEmail: owner.Email, CreatedAt: now}
	if err := s.store.CreateWorkspace(ctx, w, Member{Email: owner.Email, Name: owner.Name, Role: RoleOwner, JoinedAt: now}); err != nil {
		return nil, err
	}
	for _, h := range s.onCreated {
		if err := h(ctx, w); err != nil {
			return nil, fmt.Errorf("%s - workspace %s created but initialization failed: %w", logPrefix, w.ID, err)
		}
	}
	if err := s.store.SetCurrentWorkspace(ctx, owner.Email, w.ID); err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, s.event(ctx, w.ID, events.EntityWorkspace, w.ID, events.ActionCreated))
	return &w, nil
}

// GetUserProfile returns the caller's profile.
func (s *Service) GetUserProfile(ctx context.Context) (*UserProfile, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, caller)
}

// Invite creates a pending invitation for req.InviteeEmail.
func (s *Service) Invite(ctx context.Context, req InviteRequest) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	invitee := NormalizeEmail(req.InviteeEmail)
	if !validEmail(invitee) {
		return cmderr.InvalidArgument("invalid invitee email %q", req.InviteeEmail)
	}
	role := req.Role
	if role == "" {
		role = RoleMember
	}
	if !role.Valid() || role == RoleOwner {
		return cmderr.InvalidArgument("cannot invite with role %q", req.Role)
	}

	inviter, err := s.requireMember(ctx, req.WorkspaceID, caller)
	if err != nil {
		return err
	}
	if inviter.Role == RoleGuest {
		return cmderr.PermissionDenied("guests cannot invite members to workspace %s", req.WorkspaceID)
	}
	if _, err := s.store.GetMember(ctx, req.WorkspaceID, invitee); err == nil {
		return cmderr.Conflict("%s is already a member of workspace %s", invitee, req.WorkspaceID)
	} else if !cmderr.IsNotFound(err) {
		return err
	}

	pending, err := s.store.ListInvitations(ctx, invitee)
	if err != nil {
		return err
	}
	for _, inv := range pending {
		if inv.WorkspaceID == req.WorkspaceID && inv.Status == StatusPending {
			return cmderr.Conflict("%s already has a pending invitation to workspace %s", invitee, req.WorkspaceID)
		}
	}

	w, err := s.store.GetWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return err
	}
	inv := Invitation{
		InviteID:      uuid.NewString(),
		WorkspaceID:   w.ID,
		WorkspaceName: w.Name,
		InviterEmail:  caller,
		InviteeEmail:  invitee,
		Role:          role,
		Status:        StatusPending,
		CreatedAt:     s.timestamp(),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return err
	}

	slog.Debug(fmt.Sprintf("%s - %s invited %s to %s as %s", logPrefix, caller, invitee, w.ID, role))
	events.Emit(ctx, s.publisher, s.event(ctx, w.ID, events.EntityInvitation, inv.InviteID, events.ActionCreated))
	return nil
}

// ListInvitations returns the caller's pending invitations in the order they were sent.
func (s *Service) ListInvitations(ctx context.Context) ([]Invitation, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListInvitations(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]Invitation, 0, len(all))
	for _, inv := range all {
		if inv.Status == StatusPending {
			out = append(out, inv)
		}
	}
	return out, nil
}

// AcceptInvitation accepts one of the caller's pending invitations and joins the workspace.
func (s *Service) AcceptInvitation(ctx context.Context, inviteID string) error {
	caller, inv, err := s.ownInvitation(ctx, inviteID)
	if err != nil {
		return err
	}

	name := displayName(caller)
	if p, err := s.store.GetUser(ctx, caller); err == nil && p.Name != "" {
		name = p.Name
	}
	member := &Member{Email: caller, Name: name, Role: inv.Role, JoinedAt: s.timestamp()}
	if _, err := s.store.TransitionInvitation(ctx, inviteID, StatusAccepted, member); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - %s joined workspace %s", logPrefix, caller, inv.WorkspaceID))
	events.Emit(ctx, s.publisher, s.event(ctx, inv.WorkspaceID, events.EntityInvitation, inviteID, events.ActionAccepted))
	events.Emit(ctx, s.publisher, s.event(ctx, inv.WorkspaceID, events.EntityMember, caller, events.ActionCreated))
	return nil
}

// DeclineInvitation declines one of the caller's pending invitations.
func (s *Service) DeclineInvitation(ctx context.Context, inviteID string) error {
	_, inv, err := s.ownInvitation(ctx, inviteID)
	if err != nil {
		return err
	}
	if _, err := s.store.TransitionInvitation(ctx, inviteID, StatusDeclined, nil); err != nil {
		return err
	}
	events.Emit(ctx, s.publisher, s.event(ctx, inv.WorkspaceID, events.EntityInvitation, inviteID, events.ActionUpdated))
	return nil
}

func (s *Service) ownInvitation(ctx context.Context, inviteID string) (string, *Invitation, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return "", nil, err
	}
	if inviteID == "" {
		return "", nil, cmderr.InvalidArgument("invite_id is required")
	}
	inv, err := s.store.GetInvitation(ctx, inviteID)
	if err != nil {
		return "", nil, err
	}
	if inv.InviteeEmail != caller {
		return "", nil, cmderr.PermissionDenied("invitation %s is not addressed to %s", inviteID, caller)
	}
	return caller, inv, nil
}

// RemoveMember removes req.Email from a workspace. Owners may remove anyone
// but themselves; other members may only remove themselves.
func (s *Service) RemoveMember(ctx context.Context, req RemoveMemberRequest) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	target := NormalizeEmail(req.Email)

	actor, err := s.requireMember(ctx, req.WorkspaceID, caller)
	if err != nil {
		return err
	}
	if actor.Role != RoleOwner && target != caller {
		return cmderr.PermissionDenied("only the owner can remove other members of workspace %s", req.WorkspaceID)
	}
	m, err := s.store.GetMember(ctx, req.WorkspaceID, target)
	if err != nil {
		return err
	}
	if m.Role == RoleOwner {
		return cmderr.PermissionDenied("the owner of workspace %s cannot be removed", req.WorkspaceID)
	}

	if err := s.store.RemoveMember(ctx, req.WorkspaceID, target); err != nil {
		return err
	}
	if _, err := s.store.RevokeInvitations(ctx, req.WorkspaceID, target); err != nil {
		return err
	}
	if p, err := s.store.GetUser(ctx, target); err == nil && p.CurrentWorkspaceID == req.WorkspaceID {
		if err := s.store.SetCurrentWorkspace(ctx, target, ""); err != nil {
			return err
		}
	}

	events.Emit(ctx, s.publisher, s.event(ctx, req.WorkspaceID, events.EntityMember, target, events.ActionDeleted))
	return nil
}

// Members lists the members of a workspace the caller belongs to.
func (s *Service) Members(ctx context.Context, workspaceID string) ([]Member, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, workspaceID, caller); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, workspaceID)
}

// Workspace returns a workspace the caller belongs to.
func (s *Service) Workspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, workspaceID, caller); err != nil {
		return nil, err
	}
	return s.store.GetWorkspace(ctx, workspaceID)
}

// Open makes workspaceID the caller's current workspace.
func (s *Service) Open(ctx context.Context, workspaceID string) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	if _, err := s.requireMember(ctx, workspaceID, caller); err != nil {
		return err
	}
	return s.store.SetCurrentWorkspace(ctx, caller, workspaceID)
}

// CurrentWorkspace returns the workspace email currently has open.
func (s *Service) CurrentWorkspace(ctx context.Context, email string) (*Workspace, error) {
	p, err := s.store.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if p.CurrentWorkspaceID == "" {
		return nil, cmderr.NotFound("%s has no open workspace", email)
	}
	return s.store.GetWorkspace(ctx, p.CurrentWorkspaceID)
}

// IsMember reports whether email belongs to workspaceID.
func (s *Service) IsMember(ctx context.Context, workspaceID, email string) (bool, error) {
	_, err := s.store.GetMember(ctx, workspaceID, email)
	if err == nil {
		return true, nil
	}
	if cmderr.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *Service) requireMember(ctx context.Context, workspaceID, email string) (*Member, error) {
	if workspaceID == "" {
		return nil, cmderr.InvalidArgument("workspace_id is required")
	}
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	m, err := s.store.GetMember(ctx, workspaceID, email)
	if cmderr.IsNotFound(err) {
		return nil, cmderr.PermissionDenied("%s is not a member of workspace %s", email, workspaceID)
	}
	return m, err
}

// timestamp is the current time at the precision Postgres stores.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) event(ctx context.Context, workspaceID, entity, entityID, action string) *events.ChangeEvent {
	e := events.NewChangeEvent(workspaceID, entity, entityID, action)
	e.Actor = dispatcher.CallerEmail(ctx)
	return e
}

func requireCaller(ctx context.Context) (string, error) {
	email := NormalizeEmail(dispatcher.CallerEmail(ctx))
	if email == "" {
		return "", cmderr.PermissionDenied("anonymous caller")
	}
	return email, nil
}

// NormalizeEmail returns the form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func displayName(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
