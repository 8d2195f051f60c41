package workflow

import (
	"context"

	"github.com/morezero/workspace-bus/pkg/client"
	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/folder"
)

// GetCurrentWorkspace returns the open workspace with its top-level views.
func (s *Session) GetCurrentWorkspace(ctx context.Context) folder.WorkspaceView {
	return client.MustQuery[folder.WorkspaceView](ctx, s.c, command.ReadCurrentWorkspace)
}

// GetWorkspaceID returns the id of the open workspace.
func (s *Session) GetWorkspaceID(ctx context.Context) string {
	return s.GetCurrentWorkspace(ctx).ID
}

// CreateView creates a document under parentID.
func (s *Session) CreateView(ctx context.Context, parentID, name string) folder.View {
	return s.CreateViewWithLayout(ctx, parentID, name, folder.LayoutDocument, "")
}

// CreateViewWithLayout creates a view of the given layout under parentID.
func (s *Session) CreateViewWithLayout(ctx context.Context, parentID, name string, layout folder.Layout, initialData string) folder.View {
	return s.CreateViewWithParams(ctx, folder.CreateViewRequest{
		ParentViewID: parentID,
		Name:         name,
		Layout:       layout,
		InitialData:  initialData,
	})
}

// CreateViewWithParams creates a view from a full request.
func (s *Session) CreateViewWithParams(ctx context.Context, req folder.CreateViewRequest) folder.View {
	return client.MustCall[folder.CreateViewRequest, folder.View](ctx, s.c, command.CreateView, req)
}

// CreateOrphanView creates a view outside the tree of the open workspace.
func (s *Session) CreateOrphanView(ctx context.Context, viewID, name string, layout folder.Layout) folder.View {
	return client.MustCall[folder.CreateOrphanViewRequest, folder.View](ctx, s.c, command.CreateOrphanView, folder.CreateOrphanViewRequest{
		ViewID: viewID,
		Name:   name,
		Layout: layout,
	})
}

// GetView returns a live view.
func (s *Session) GetView(ctx context.Context, viewID string) folder.View {
	return client.MustCall[folder.ViewIDValue, folder.View](ctx, s.c, command.GetView, folder.ViewIDValue{Value: viewID})
}

// TryGetView is GetView returning the error.
func (s *Session) TryGetView(ctx context.Context, viewID string) (folder.View, error) {
	return client.Call[folder.ViewIDValue, folder.View](ctx, s.c, command.GetView, folder.ViewIDValue{Value: viewID})
}

// DeleteView moves a view to the trash.
func (s *Session) DeleteView(ctx context.Context, viewID string) {
	client.MustExec(ctx, s.c, command.DeleteView, folder.RepeatedViewIDs{Items: []string{viewID}})
}

// RestoreView moves a view out of the trash.
func (s *Session) RestoreView(ctx context.Context, viewID string) {
	client.MustExec(ctx, s.c, command.RestoreTrashItem, folder.TrashIDRequest{ID: viewID})
}

// UpdateView applies req and returns the failure, if any.
func (s *Session) UpdateView(ctx context.Context, req folder.UpdateViewRequest) *cmderr.Error {
	return cmderr.From(client.Exec(ctx, s.c, command.UpdateView, req))
}

// UpdateViewIcon sets or clears a view's icon and returns the failure, if any.
func (s *Session) UpdateViewIcon(ctx context.Context, viewID string, icon *folder.Icon) *cmderr.Error {
	return cmderr.From(client.Exec(ctx, s.c, command.UpdateViewIcon, folder.UpdateViewIconRequest{ViewID: viewID, Icon: icon}))
}

// GetTrash lists the trash of the open workspace.
func (s *Session) GetTrash(ctx context.Context) []folder.TrashEntry {
	return client.MustQuery[folder.TrashList](ctx, s.c, command.ListTrashItems).Items
}

// GetAllWorkspaceViews lists the top-level views of the open workspace.
func (s *Session) GetAllWorkspaceViews(ctx context.Context) []folder.View {
	return client.MustQuery[folder.ViewList](ctx, s.c, command.ReadCurrentWorkspaceViews).Items
}

// GetAllViews lists every view of the open workspace, trash and orphans included.
func (s *Session) GetAllViews(ctx context.Context) []folder.View {
	return client.MustQuery[folder.ViewList](ctx, s.c, command.GetAllViews).Items
}

// GetViewAncestors returns the chain from viewID up to the workspace root.
func (s *Session) GetViewAncestors(ctx context.Context, viewID string) []folder.View {
	return client.MustCall[folder.ViewIDValue, folder.ViewList](ctx, s.c, command.GetViewAncestors, folder.ViewIDValue{Value: viewID}).Items
}

// ImportData imports content under parentID.
func (s *Session) ImportData(ctx context.Context, parentID string, items ...folder.ImportItem) ([]folder.View, error) {
	out, err := client.Call[folder.ImportRequest, folder.ViewList](ctx, s.c, command.ImportData, folder.ImportRequest{ParentViewID: parentID, Items: items})
	return out.Items, err
}

// GetPublishPayload gathers the publishable content of viewID.
func (s *Session) GetPublishPayload(ctx context.Context, viewID string, includeChildren bool) []folder.PublishPayload {
	return client.MustCall[folder.GatherRequest, folder.PublishList](ctx, s.c, command.GatherPublishPayload, folder.GatherRequest{
		ViewID:          viewID,
		IncludeChildren: includeChildren,
	}).Items
}

// CreateViews creates each view in order. Requests are sent as given, so
// explicit ids, icons and extras are kept.
func (s *Session) CreateViews(ctx context.Context, reqs []folder.CreateViewRequest) []folder.View {
	out := make([]folder.View, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, s.CreateViewWithParams(ctx, req))
	}
	return out
}

// GetFolderData returns a snapshot of the open workspace.
func (s *Session) GetFolderData(ctx context.Context) folder.FolderData {
	return client.MustQuery[folder.FolderData](ctx, s.c, command.GetFolderData)
}

// GatherViewPayload returns the publish payload of viewID alone. The view
// must have the given layout and publishable content.
func (s *Session) GatherViewPayload(ctx context.Context, viewID string, layout folder.Layout) folder.PublishPayload {
	items := s.GetPublishPayload(ctx, viewID, false)
	if len(items) != 1 {
		panic(cmderr.New(cmderr.KindWorkflowAssumption, "view %s gathered %d payloads, want 1", viewID, len(items)))
	}
	if items[0].Layout != layout {
		panic(cmderr.New(cmderr.KindWorkflowAssumption, "view %s has layout %s, want %s", viewID, items[0].Layout, layout))
	}
	return items[0]
}
