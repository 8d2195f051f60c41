package folder

import (
	"context"

	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/registry"
)

// DomainVersion is the version of the folder domain's command surface.
const DomainVersion = "1.3.0"

// RegisterHandlers declares the folder domain and binds its commands to svc.
func RegisterHandlers(b *registry.Builder, svc *Service) error {
	if err := b.DeclareDomain(command.DomainFolder, DomainVersion); err != nil {
		return err
	}

	handlers := map[command.ID]registry.Handler{
		command.ReadCurrentWorkspace: registry.NoInput(svc.CurrentWorkspace),
		command.CreateView:           registry.Typed(svc.CreateView),
		command.CreateOrphanView:     registry.Typed(svc.CreateOrphanView),
		command.GetView: registry.Typed(func(ctx context.Context, req ViewIDValue) (*View, error) {
			return svc.GetView(ctx, req.Value)
		}),
		command.DeleteView: registry.NoOutput(func(ctx context.Context, req RepeatedViewIDs) error {
			return svc.DeleteViews(ctx, req.Items)
		}),
		command.UpdateView:     registry.NoOutput(svc.UpdateView),
		command.UpdateViewIcon: registry.NoOutput(svc.UpdateViewIcon),
		command.ReadCurrentWorkspaceViews: registry.NoInput(func(ctx context.Context) (ViewList, error) {
			items, err := svc.WorkspaceViews(ctx)
			return ViewList{Items: items}, err
		}),
		command.GetAllViews: registry.NoInput(func(ctx context.Context) (ViewList, error) {
			items, err := svc.AllViews(ctx)
			return ViewList{Items: items}, err
		}),
		command.ListTrashItems: registry.NoInput(func(ctx context.Context) (TrashList, error) {
			items, err := svc.Trash(ctx)
			return TrashList{Items: items}, err
		}),
		command.GetFolderData: registry.NoInput(svc.FolderData),
		command.RestoreTrashItem: registry.NoOutput(func(ctx context.Context, req TrashIDRequest) error {
			return svc.RestoreTrashItem(ctx, req.ID)
		}),
		command.GetViewAncestors: registry.Typed(func(ctx context.Context, req ViewIDValue) (ViewList, error) {
			items, err := svc.Ancestors(ctx, req.Value)
			return ViewList{Items: items}, err
		}),
		command.ImportData: registry.Typed(func(ctx context.Context, req ImportRequest) (ViewList, error) {
			items, err := svc.Import(ctx, req)
			return ViewList{Items: items}, err
		}),
		command.GatherPublishPayload: registry.Typed(func(ctx context.Context, req GatherRequest) (PublishList, error) {
			items, err := svc.GatherPublishPayload(ctx, req)
			return PublishList{Items: items}, err
		}),
	}

	for id, h := range handlers {
		if err := b.Register(id, h); err != nil {
			return err
		}
	}
	return nil
}
