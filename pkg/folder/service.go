package folder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
	"github.com/morezero/workspace-bus/pkg/events"
	"github.com/morezero/workspace-bus/pkg/workspace"
)

const logPrefix = "folder:service"

// Workspaces answers membership questions for the folder domain.
// *workspace.Service implements it.
type Workspaces interface {
	CurrentWorkspace(ctx context.Context, email string) (*workspace.Workspace, error)
	IsMember(ctx context.Context, workspaceID, email string) (bool, error)
}

// Service implements the folder domain on top of a Store.
type Service struct {
	store      Store
	workspaces Workspaces
	publisher  events.EventPublisher
	now        func() time.Time
}

// ServiceOpts configures a Service. Nil or zero values use defaults.
type ServiceOpts struct {
	Publisher events.EventPublisher
	Now       func() time.Time
}

// NewService creates a Service. Pass nil for opts to use defaults.
func NewService(store Store, workspaces Workspaces, opts *ServiceOpts) *Service {
	s := &Service{store: store, workspaces: workspaces, publisher: &events.NoOpPublisher{}, now: time.Now}
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

// InitWorkspace creates the root view of a workspace. The root carries the
// workspace id, so its ancestry ends every chain in the tree. Calling it for
// an initialized workspace is a no-op.
func (s *Service) InitWorkspace(ctx context.Context, w workspace.Workspace) error {
	root := Record{
		ID:          w.ID,
		WorkspaceID: w.ID,
		Name:        w.Name,
		Layout:      LayoutDocument,
		Section:     SectionPublic,
		CreatedAt:   w.CreatedAt,
		CreatedBy:   w.OwnerEmail,
	}
	if root.CreatedAt.IsZero() {
		root.CreatedAt = s.timestamp()
	}
	err := s.store.Insert(ctx, root, -1)
	if cmderr.CodeOf(err) == cmderr.CodeConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s - init workspace %s: %w", logPrefix, w.ID, err)
	}
	slog.Debug(fmt.Sprintf("%s - Initialized view tree for workspace %s", logPrefix, w.ID))
	return nil
}

// CurrentWorkspace returns the caller's open workspace with its top-level views.
func (s *Service) CurrentWorkspace(ctx context.Context) (*WorkspaceView, error) {
	caller, w, err := s.currentWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTree(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.CurrentView(ctx, w.ID, caller)
	if err != nil {
		return nil, err
	}
	return &WorkspaceView{
		ID:            w.ID,
		Name:          w.Name,
		Views:         t.liveChildren(w.ID, true),
		CurrentViewID: current,
	}, nil
}

// WorkspaceViews returns the top-level views of the caller's open workspace.
func (s *Service) WorkspaceViews(ctx context.Context) ([]View, error) {
	wv, err := s.CurrentWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	return wv.Views, nil
}

// AllViews returns every view of the caller's open workspace, trashed and
// orphan views included, in creation order.
func (s *Service) AllViews(ctx context.Context) ([]View, error) {
	_, w, err := s.currentWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTree(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(t.order))
	for _, id := range t.order {
		if rec := t.records[id]; !rec.IsRoot() {
			out = append(out, t.view(rec, true))
		}
	}
	return out, nil
}

// CreateView creates a view under req.ParentViewID.
func (s *Service) CreateView(ctx context.Context, req CreateViewRequest) (*View, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	parent, err := s.liveRecord(ctx, caller, req.ParentViewID)
	if err != nil {
		return nil, err
	}

	rec, err := s.newRecord(caller, parent.WorkspaceID, req.ViewID, req.Name, req.Layout, req.InitialData)
	if err != nil {
		return nil, err
	}
	rec.ParentViewID = parent.ID
	rec.Section = SectionPublic
	if req.Section != nil {
		if *req.Section != SectionPublic && *req.Section != SectionPrivate {
			return nil, cmderr.InvalidArgument("unknown section %q", *req.Section)
		}
		rec.Section = *req.Section
	}
	if req.Icon != nil {
		if err := validateIcon(req.Icon); err != nil {
			return nil, err
		}
		rec.Icon = req.Icon
	}
	if req.Extra != nil {
		rec.Extra = *req.Extra
	}
	if req.Thumbnail != nil {
		rec.Thumbnail = *req.Thumbnail
	}
	index := -1
	if req.Index != nil {
		if *req.Index < 0 {
			return nil, cmderr.InvalidArgument("index must not be negative")
		}
		index = *req.Index
	}

	if err := s.store.Insert(ctx, rec, index); err != nil {
		return nil, err
	}
	if req.SetAsCurrent {
		if err := s.store.SetCurrentView(ctx, rec.WorkspaceID, caller, rec.ID); err != nil {
			return nil, err
		}
	}

	slog.Debug(fmt.Sprintf("%s - %s created %s view %s under %s", logPrefix, caller, rec.Layout, rec.ID, parent.ID))
	s.emit(ctx, rec.WorkspaceID, rec.ID, events.ActionCreated, nil)
	v := toView(&rec)
	return &v, nil
}

// CreateOrphanView creates a view in the caller's open workspace that is
// not attached to the tree.
func (s *Service) CreateOrphanView(ctx context.Context, req CreateOrphanViewRequest) (*View, error) {
	caller, w, err := s.currentWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.newRecord(caller, w.ID, req.ViewID, req.Name, req.Layout, req.InitialData)
	if err != nil {
		return nil, err
	}
	rec.ParentViewID = rec.ID
	rec.Section = SectionPrivate
	if rec.IsRoot() {
		return nil, cmderr.InvalidArgument("view id %s is reserved", rec.ID)
	}

	if err := s.store.Insert(ctx, rec, -1); err != nil {
		return nil, err
	}
	s.emit(ctx, rec.WorkspaceID, rec.ID, events.ActionCreated, nil)
	v := toView(&rec)
	return &v, nil
}

// GetView returns a live view with its children. Trashed views are not found.
func (s *Service) GetView(ctx context.Context, id string) (*View, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.liveRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTree(ctx, rec.WorkspaceID)
	if err != nil {
		return nil, err
	}
	v := t.view(rec, true)
	return &v, nil
}

// DeleteViews moves views to the trash. Every id is validated before any is
// moved, so a bad id leaves the tree untouched.
func (s *Service) DeleteViews(ctx context.Context, ids []string) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return cmderr.InvalidArgument("no views to delete")
	}
	recs := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.liveRecord(ctx, caller, id)
		if err != nil {
			return err
		}
		if rec.IsRoot() {
			return cmderr.InvalidArgument("the workspace root %s cannot be deleted", id)
		}
		recs = append(recs, rec)
	}

	now := s.timestamp()
	for _, rec := range recs {
		err := s.store.Update(ctx, rec.ID, func(r *Record) error {
			r.Trashed = true
			r.DeletedAt = now
			return nil
		})
		if err != nil {
			return err
		}
		s.emit(ctx, rec.WorkspaceID, rec.ID, events.ActionDeleted, nil)
	}
	slog.Debug(fmt.Sprintf("%s - %s moved %d views to trash", logPrefix, caller, len(recs)))
	return nil
}

// UpdateView applies the set fields of req.
func (s *Service) UpdateView(ctx context.Context, req UpdateViewRequest) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	rec, err := s.liveRecord(ctx, caller, req.ViewID)
	if err != nil {
		return err
	}
	if rec.IsRoot() {
		return cmderr.InvalidArgument("the workspace root %s cannot be updated", rec.ID)
	}

	var changed []string
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return cmderr.InvalidArgument("view name must not be empty")
		}
		changed = append(changed, "name")
	}
	if req.Layout != nil {
		if !req.Layout.Valid() {
			return cmderr.InvalidArgument("unknown layout %q", *req.Layout)
		}
		changed = append(changed, "layout")
	}
	if req.Thumbnail != nil {
		changed = append(changed, "thumbnail")
	}
	if req.IsFavorite != nil {
		changed = append(changed, "is_favorite")
	}
	if req.Extra != nil {
		changed = append(changed, "extra")
	}
	if len(changed) == 0 {
		return nil
	}

	err = s.store.Update(ctx, rec.ID, func(r *Record) error {
		if req.Name != nil {
			r.Name = strings.TrimSpace(*req.Name)
		}
		if req.Layout != nil {
			r.Layout = *req.Layout
		}
		if req.Thumbnail != nil {
			r.Thumbnail = *req.Thumbnail
		}
		if req.IsFavorite != nil {
			r.IsFavorite = *req.IsFavorite
		}
		if req.Extra != nil {
			r.Extra = *req.Extra
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, rec.WorkspaceID, rec.ID, events.ActionUpdated, changed)
	return nil
}

// UpdateViewIcon sets or clears a view's icon.
func (s *Service) UpdateViewIcon(ctx context.Context, req UpdateViewIconRequest) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	rec, err := s.liveRecord(ctx, caller, req.ViewID)
	if err != nil {
		return err
	}
	if req.Icon != nil {
		if err := validateIcon(req.Icon); err != nil {
			return err
		}
	}
	err = s.store.Update(ctx, rec.ID, func(r *Record) error {
		r.Icon = req.Icon
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, rec.WorkspaceID, rec.ID, events.ActionUpdated, []string{"icon"})
	return nil
}

// Trash lists the trashed views of the caller's open workspace, oldest deletion first.
func (s *Service) Trash(ctx context.Context) ([]TrashEntry, error) {
	_, w, err := s.currentWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.List(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	out := make([]TrashEntry, 0)
	for i := range recs {
		if recs[i].Trashed {
			out = append(out, trashEntry(&recs[i]))
		}
	}
	sortTrash(out)
	return out, nil
}

func trashEntry(rec *Record) TrashEntry {
	return TrashEntry{ID: rec.ID, Name: rec.Name, DeletedAt: rec.DeletedAt}
}

func sortTrash(entries []TrashEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DeletedAt.Before(entries[j].DeletedAt) })
}

// FolderData returns the caller's open workspace, every view in it and its
// trash, all read from a single listing of the workspace.
func (s *Service) FolderData(ctx context.Context) (*FolderData, error) {
	caller, w, err := s.currentWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTree(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.CurrentView(ctx, w.ID, caller)
	if err != nil {
		return nil, err
	}

	out := &FolderData{
		Workspace: WorkspaceView{
			ID:            w.ID,
			Name:          w.Name,
			Views:         t.liveChildren(w.ID, true),
			CurrentViewID: current,
		},
		Views: make([]View, 0, len(t.order)),
		Trash: []TrashEntry{},
	}
	for _, id := range t.order {
		rec := t.records[id]
		if rec.IsRoot() {
			continue
		}
		out.Views = append(out.Views, t.view(rec, true))
		if rec.Trashed {
			out.Trash = append(out.Trash, trashEntry(rec))
		}
	}
	sortTrash(out.Trash)
	return out, nil
}

// RestoreTrashItem moves a view out of the trash back to its place in the tree.
func (s *Service) RestoreTrashItem(ctx context.Context, id string) error {
	caller, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	rec, err := s.memberRecord(ctx, caller, id)
	if err != nil {
		return err
	}
	if !rec.Trashed {
		return cmderr.NotFound("view %s is not in the trash", id)
	}
	err = s.store.Update(ctx, id, func(r *Record) error {
		r.Trashed = false
		r.DeletedAt = time.Time{}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, rec.WorkspaceID, id, events.ActionRestored, nil)
	return nil
}

// Ancestors returns the chain from the view itself up to the workspace root,
// in that order. Orphans are their own single-element chain.
func (s *Service) Ancestors(ctx context.Context, id string) ([]View, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.liveRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	t, err := s.loadTree(ctx, rec.WorkspaceID)
	if err != nil {
		return nil, err
	}

	chain := []View{t.view(rec, false)}
	seen := map[string]bool{rec.ID: true}
	cur := rec
	for !cur.IsRoot() && !cur.IsOrphan() {
		parent, ok := t.records[cur.ParentViewID]
		if !ok {
			return nil, cmderr.Internal("view %s links to missing parent %s", cur.ID, cur.ParentViewID)
		}
		if seen[parent.ID] {
			return nil, cmderr.Internal("cycle in view tree at %s", parent.ID)
		}
		seen[parent.ID] = true
		chain = append(chain, t.view(parent, false))
		cur = parent
	}
	return chain, nil
}

// Import creates one view per item under req.ParentViewID.
func (s *Service) Import(ctx context.Context, req ImportRequest) ([]View, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	parent, err := s.liveRecord(ctx, caller, req.ParentViewID)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, cmderr.InvalidArgument("nothing to import")
	}

	recs := make([]Record, 0, len(req.Items))
	for i, item := range req.Items {
		layout, ok := item.ImportType.Layout()
		if !ok {
			return nil, cmderr.InvalidArgument("item %d: unsupported import type %q", i, item.ImportType)
		}
		if err := validateImport(item); err != nil {
			return nil, cmderr.InvalidArgument("item %d: %v", i, err)
		}
		name := item.Name
		if strings.TrimSpace(name) == "" {
			name = "Untitled"
		}
		rec, err := s.newRecord(caller, parent.WorkspaceID, "", name, layout, item.Data)
		if err != nil {
			return nil, err
		}
		rec.ParentViewID = parent.ID
		rec.Section = parent.Section
		recs = append(recs, rec)
	}

	out := make([]View, 0, len(recs))
	for i := range recs {
		if err := s.store.Insert(ctx, recs[i], -1); err != nil {
			return nil, err
		}
		s.emit(ctx, recs[i].WorkspaceID, recs[i].ID, events.ActionCreated, nil)
		out = append(out, toView(&recs[i]))
	}
	slog.Debug(fmt.Sprintf("%s - %s imported %d views under %s", logPrefix, caller, len(out), parent.ID))
	return out, nil
}

func (s *Service) currentWorkspace(ctx context.Context) (string, *workspace.Workspace, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return "", nil, err
	}
	w, err := s.workspaces.CurrentWorkspace(ctx, caller)
	if err != nil {
		return "", nil, err
	}
	if err := s.InitWorkspace(ctx, *w); err != nil {
		return "", nil, err
	}
	return caller, w, nil
}

// memberRecord loads a view the caller may see, trashed or not.
func (s *Service) memberRecord(ctx context.Context, caller, id string) (*Record, error) {
	if id == "" {
		return nil, cmderr.InvalidArgument("view id is required")
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.workspaces.IsMember(ctx, rec.WorkspaceID, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cmderr.PermissionDenied("%s is not a member of the workspace of view %s", caller, id)
	}
	return rec, nil
}

// liveRecord is memberRecord restricted to views that are not in the trash.
func (s *Service) liveRecord(ctx context.Context, caller, id string) (*Record, error) {
	rec, err := s.memberRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if rec.Trashed {
		return nil, cmderr.NotFound("view %s is in the trash", id)
	}
	return rec, nil
}

func (s *Service) newRecord(caller, workspaceID, id, name string, layout Layout, data string) (Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Record{}, cmderr.InvalidArgument("view name must not be empty")
	}
	if layout == "" {
		layout = LayoutDocument
	}
	if !layout.Valid() {
		return Record{}, cmderr.InvalidArgument("unknown layout %q", layout)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return Record{
		ID:          id,
		WorkspaceID: workspaceID,
		Name:        name,
		Layout:      layout,
		Data:        data,
		CreatedAt:   s.timestamp(),
		CreatedBy:   caller,
	}, nil
}

// timestamp is the current time at the precision Postgres stores.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) emit(ctx context.Context, workspaceID, viewID, action string, changed []string) {
	e := events.NewChangeEvent(workspaceID, events.EntityView, viewID, action)
	e.ChangedFields = changed
	e.Actor = dispatcher.CallerEmail(ctx)
	events.Emit(ctx, s.publisher, e)
}

func validateIcon(icon *Icon) error {
	switch icon.Type {
	case IconEmoji, IconURL, IconName:
	default:
		return cmderr.InvalidArgument("unknown icon type %q", icon.Type)
	}
	if icon.Value == "" {
		return cmderr.InvalidArgument("icon value must not be empty")
	}
	return nil
}

func requireCaller(ctx context.Context) (string, error) {
	email := strings.ToLower(strings.TrimSpace(dispatcher.CallerEmail(ctx)))
	if email == "" {
		return "", cmderr.PermissionDenied("anonymous caller")
	}
	return email, nil
}
