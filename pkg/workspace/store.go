package workspace

import (
	"context"
	"sort"
	"sync"

	"github.com/morezero/workspace-bus/pkg/cmderr"
)

// Store persists users, workspaces, memberships and invitations.
// Implementations return *cmderr.Error values for domain failures.
type Store interface {
	CreateUser(ctx context.Context, p UserProfile) error
	GetUser(ctx context.Context, email string) (*UserProfile, error)
	SetCurrentWorkspace(ctx context.Context, email, workspaceID string) error

	// CreateWorkspace stores w and its owner's membership atomically.
	CreateWorkspace(ctx context.Context, w Workspace, owner Member) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)

	GetMember(ctx context.Context, workspaceID, email string) (*Member, error)
	// ListMembers returns members ordered by join time.
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
	RemoveMember(ctx context.Context, workspaceID, email string) error

	CreateInvitation(ctx context.Context, inv Invitation) error
	GetInvitation(ctx context.Context, inviteID string) (*Invitation, error)
	// ListInvitations returns the invitations addressed to inviteeEmail in creation order.
	ListInvitations(ctx context.Context, inviteeEmail string) ([]Invitation, error)
	// TransitionInvitation moves a pending invitation to next. When next is
	// Accepted, member is added to the invitation's workspace in the same step.
	TransitionInvitation(ctx context.Context, inviteID string, next InvitationStatus, member *Member) (*Invitation, error)
	// RevokeInvitations revokes every pending invitation for email in a workspace.
	RevokeInvitations(ctx context.Context, workspaceID, email string) (int, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*UserProfile
	workspaces  map[string]*Workspace
	members     map[string]map[string]*Member
	invitations map[string]*Invitation
	inviteOrder []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*UserProfile),
		workspaces:  make(map[string]*Workspace),
		members:     make(map[string]map[string]*Member),
		invitations: make(map[string]*Invitation),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, p UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.Email]; ok {
		return cmderr.Conflict("user %s already exists", p.Email)
	}
	s.users[p.Email] = &p
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, email string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[email]
	if !ok {
		return nil, cmderr.NotFound("user %s not found", email)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) SetCurrentWorkspace(_ context.Context, email, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[email]
	if !ok {
		return cmderr.NotFound("user %s not found", email)
	}
	p.CurrentWorkspaceID = workspaceID
	return nil
}

func (s *MemoryStore) CreateWorkspace(_ context.Context, w Workspace, owner Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[w.ID]; ok {
		return cmderr.Conflict("workspace %s already exists", w.ID)
	}
	s.workspaces[w.ID] = &w
	s.members[w.ID] = map[string]*Member{owner.Email: &owner}
	return nil
}

func (s *MemoryStore) GetWorkspace(_ context.Context, id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, cmderr.NotFound("workspace %s not found", id)
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) GetMember(_ context.Context, workspaceID, email string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[workspaceID][email]
	if !ok {
		return nil, cmderr.NotFound("%s is not a member of workspace %s", email, workspaceID)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMembers(_ context.Context, workspaceID string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.workspaces[workspaceID]; !ok {
		return nil, cmderr.NotFound("workspace %s not found", workspaceID)
	}
	out := make([]Member, 0, len(s.members[workspaceID]))
	for _, m := range s.members[workspaceID] {
		out = append(out, *m)
	}
	sortMembers(out)
	return out, nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, workspaceID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[workspaceID][email]; !ok {
		return cmderr.NotFound("%s is not a member of workspace %s", email, workspaceID)
	}
	delete(s.members[workspaceID], email)
	return nil
}

func (s *MemoryStore) CreateInvitation(_ context.Context, inv Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[inv.InviteID]; ok {
		return cmderr.Conflict("invitation %s already exists", inv.InviteID)
	}
	s.invitations[inv.InviteID] = &inv
	s.inviteOrder = append(s.inviteOrder, inv.InviteID)
	return nil
}

func (s *MemoryStore) GetInvitation(_ context.Context, inviteID string) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[inviteID]
	if !ok {
		return nil, cmderr.NotFound("invitation %s not found", inviteID)
	}
	cp := *inv
	return &cp, nil
}

func (s *MemoryStore) ListInvitations(_ context.Context, inviteeEmail string) ([]Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Invitation
	for _, id := range s.inviteOrder {
		if inv := s.invitations[id]; inv.InviteeEmail == inviteeEmail {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (s *MemoryStore) TransitionInvitation(_ context.Context, inviteID string, next InvitationStatus, member *Member) (*Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[inviteID]
	if !ok {
		return nil, cmderr.NotFound("invitation %s not found", inviteID)
	}
	if !inv.Status.CanTransition(next) {
		return nil, cmderr.Conflict("invitation %s is %s, cannot become %s", inviteID, inv.Status, next)
	}
	inv.Status = next
	if next == StatusAccepted && member != nil {
		if s.members[inv.WorkspaceID] == nil {
			s.members[inv.WorkspaceID] = make(map[string]*Member)
		}
		if _, exists := s.members[inv.WorkspaceID][member.Email]; !exists {
			m := *member
			s.members[inv.WorkspaceID][m.Email] = &m
		}
	}
	cp := *inv
	return &cp, nil
}

func (s *MemoryStore) RevokeInvitations(_ context.Context, workspaceID, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, inv := range s.invitations {
		if inv.WorkspaceID == workspaceID && inv.InviteeEmail == email && inv.Status == StatusPending {
			inv.Status = StatusRevoked
			n++
		}
	}
	return n, nil
}

func sortMembers(ms []Member) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].JoinedAt.Equal(ms[j].JoinedAt) {
			return ms[i].JoinedAt.Before(ms[j].JoinedAt)
		}
		return ms[i].Email < ms[j].Email
	})
}
