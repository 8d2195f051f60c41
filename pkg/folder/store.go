package folder

import (
	"context"
	"sync"
	"time"

	"github.com/morezero/workspace-bus/pkg/cmderr"
)

// Record is the stored form of a view. Children keeps the order of child
// ids, including trashed ones; trashed views stay attached to their parent
// so a restore puts them back in place.
type Record struct {
	ID           string
	WorkspaceID  string
	ParentViewID string
	Name         string
	Layout       Layout
	Section      Section
	Icon         *Icon
	Extra        string
	Thumbnail    string
	IsFavorite   bool
	Data         string
	Children     []string
	Trashed      bool
	DeletedAt    time.Time
	CreatedAt    time.Time
	CreatedBy    string
}

// IsRoot reports whether r is the root of its workspace tree.
func (r *Record) IsRoot() bool {
	return r.ID == r.WorkspaceID
}

// IsOrphan reports whether r lives outside the tree. Orphans are their own parent.
func (r *Record) IsOrphan() bool {
	return !r.IsRoot() && r.ParentViewID == r.ID
}

func (r Record) clone() Record {
	if r.Icon != nil {
		icon := *r.Icon
		r.Icon = &icon
	}
	r.Children = append([]string(nil), r.Children...)
	return r
}

// Store persists view records.
type Store interface {
	// Insert stores rec and links it into its parent's children at index
	// (appended when index is negative or past the end). Roots and orphans
	// are not linked.
	Insert(ctx context.Context, rec Record, index int) error
	Get(ctx context.Context, id string) (*Record, error)
	// Update applies fn to the stored record atomically.
	Update(ctx context.Context, id string, fn func(*Record) error) error
	// List returns every record of a workspace in creation order.
	List(ctx context.Context, workspaceID string) ([]Record, error)

	SetCurrentView(ctx context.Context, workspaceID, email, viewID string) error
	// CurrentView returns "" when email has no current view in the workspace.
	CurrentView(ctx context.Context, workspaceID, email string) (string, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	current map[[2]string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		current: make(map[[2]string]string),
	}
}

func (s *MemoryStore) Insert(_ context.Context, rec Record, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return cmderr.Conflict("view %s already exists", rec.ID)
	}
	if !rec.IsRoot() && !rec.IsOrphan() {
		parent, ok := s.records[rec.ParentViewID]
		if !ok {
			return cmderr.NotFound("parent view %s not found", rec.ParentViewID)
		}
		parent.Children = insertAt(parent.Children, rec.ID, index)
	}
	stored := rec.clone()
	s.records[rec.ID] = &stored
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, cmderr.NotFound("view %s not found", id)
	}
	cp := rec.clone()
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return cmderr.NotFound("view %s not found", id)
	}
	cp := rec.clone()
	if err := fn(&cp); err != nil {
		return err
	}
	cp.ID, cp.WorkspaceID = rec.ID, rec.WorkspaceID
	s.records[id] = &cp
	return nil
}

func (s *MemoryStore) List(_ context.Context, workspaceID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, id := range s.order {
		if rec := s.records[id]; rec.WorkspaceID == workspaceID {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) SetCurrentView(_ context.Context, workspaceID, email, viewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[[2]string{workspaceID, email}] = viewID
	return nil
}

func (s *MemoryStore) CurrentView(_ context.Context, workspaceID, email string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[[2]string{workspaceID, email}], nil
}

func insertAt(ids []string, id string, index int) []string {
	if index < 0 || index >= len(ids) {
		return append(ids, id)
	}
	ids = append(ids, "")
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	return ids
}
