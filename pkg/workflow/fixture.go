package workflow

import (
	"context"

	"github.com/morezero/workspace-bus/pkg/folder"
)

// ViewFixtureName is the name of the view every fixture creates.
const ViewFixtureName = "View A"

// ViewFixture is a session with one view created under its open workspace.
type ViewFixture struct {
	Session   *Session
	Workspace folder.WorkspaceView
	ChildView folder.View
}

// NewViewFixture creates "View A" with layout and data under the session's
// workspace root and makes it the current view.
func NewViewFixture(ctx context.Context, s *Session, layout folder.Layout, data string) *ViewFixture {
	ws := s.GetCurrentWorkspace(ctx)
	view := s.CreateViewWithParams(ctx, folder.CreateViewRequest{
		ParentViewID: ws.ID,
		Name:         ViewFixtureName,
		Layout:       layout,
		InitialData:  data,
		SetAsCurrent: true,
		Thumbnail:    stringPtr("http://1.png"),
	})
	return &ViewFixture{Session: s, Workspace: ws, ChildView: view}
}

// NewGridViewFixture creates a grid fixture.
func NewGridViewFixture(ctx context.Context, s *Session, data string) *ViewFixture {
	return NewViewFixture(ctx, s, folder.LayoutGrid, data)
}

// NewBoardViewFixture creates a board fixture.
func NewBoardViewFixture(ctx context.Context, s *Session, data string) *ViewFixture {
	return NewViewFixture(ctx, s, folder.LayoutBoard, data)
}

// NewCalendarViewFixture creates a calendar fixture.
func NewCalendarViewFixture(ctx context.Context, s *Session, data string) *ViewFixture {
	return NewViewFixture(ctx, s, folder.LayoutCalendar, data)
}

// Ancestors returns the fixture view's ancestor chain.
func (f *ViewFixture) Ancestors(ctx context.Context) []folder.View {
	return f.Session.GetViewAncestors(ctx, f.ChildView.ID)
}

func stringPtr(s string) *string {
	return &s
}
