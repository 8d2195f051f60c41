package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
	"github.com/morezero/workspace-bus/pkg/events"
	"github.com/morezero/workspace-bus/pkg/folder"
	"github.com/morezero/workspace-bus/pkg/registry"
	"github.com/morezero/workspace-bus/pkg/workspace"
)

const bootstrapLogPrefix = "bootstrap:bootstrap"

// Params holds the dependencies of a Runtime. Nil stores default to the
// in-memory implementations and a nil publisher discards events.
type Params struct {
	WorkspaceStore workspace.Store
	FolderStore    folder.Store
	Publisher      events.EventPublisher
	Middleware     []dispatcher.Middleware
	OnForgetError  func(id command.ID, err *cmderr.Error)
}

// Runtime is a fully wired command bus.
type Runtime struct {
	Registry   *registry.Registry
	Dispatcher *dispatcher.Dispatcher
	Workspaces *workspace.Service
	Folders    *folder.Service
}

// NewRuntime builds the domain services, registers every command once and
// returns the dispatcher over the frozen registry.
func NewRuntime(p Params) (*Runtime, error) {
	if p.WorkspaceStore == nil {
		p.WorkspaceStore = workspace.NewMemoryStore()
	}
	if p.FolderStore == nil {
		p.FolderStore = folder.NewMemoryStore()
	}
	if p.Publisher == nil {
		p.Publisher = &events.NoOpPublisher{}
	}

	workspaces := workspace.NewService(p.WorkspaceStore, &workspace.ServiceOpts{Publisher: p.Publisher})
	folders := folder.NewService(p.FolderStore, workspaces, &folder.ServiceOpts{Publisher: p.Publisher})
	workspaces.OnWorkspaceCreated(folders.InitWorkspace)

	reg, err := NewRegistry(workspaces, folders)
	if err != nil {
		return nil, err
	}

	opts := []dispatcher.Option{dispatcher.WithMiddleware(p.Middleware...)}
	if p.OnForgetError != nil {
		opts = append(opts, dispatcher.WithForgetErrorHook(p.OnForgetError))
	}
	return &Runtime{
		Registry:   reg,
		Dispatcher: dispatcher.NewDispatcher(reg, opts...),
		Workspaces: workspaces,
		Folders:    folders,
	}, nil
}

// NewRegistry registers both command domains and freezes the registry.
func NewRegistry(workspaces *workspace.Service, folders *folder.Service) (*registry.Registry, error) {
	b := registry.NewBuilder()
	if err := workspace.RegisterHandlers(b, workspaces); err != nil {
		return nil, fmt.Errorf("%s - register user domain: %w", bootstrapLogPrefix, err)
	}
	if err := folder.RegisterHandlers(b, folders); err != nil {
		return nil, fmt.Errorf("%s - register folder domain: %w", bootstrapLogPrefix, err)
	}
	reg := b.Build()
	slog.Debug(fmt.Sprintf("%s - %d commands registered", bootstrapLogPrefix, len(reg.Commands())))
	return reg, nil
}
