//go:build integration

package db

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/workspace-bus/pkg/bootstrap"
	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/folder"
	"github.com/morezero/workspace-bus/pkg/workflow"
	"github.com/morezero/workspace-bus/pkg/workspace"
)

const dbIntegrationPrefix = "db:integration_test"

// setupIntegrationPool connects to DATABASE_URL, applies the repository
// migrations and clears all tables. The test is skipped without DATABASE_URL.
func setupIntegrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("db:integration_test - DATABASE_URL not set, skipping")
	}
	ctx := context.Background()

	if err := EnsureDatabase(ctx, url); err != nil {
		t.Fatalf("%s - EnsureDatabase failed: %v", dbIntegrationPrefix, err)
	}
	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatalf("%s - NewPool failed: %v", dbIntegrationPrefix, err)
	}
	t.Cleanup(pool.Close)

	migrations, err := LoadMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - LoadMigrations failed: %v", dbIntegrationPrefix, err)
	}
	if err := RunMigrations(ctx, pool, migrations); err != nil {
		t.Fatalf("%s - RunMigrations failed: %v", dbIntegrationPrefix, err)
	}
	if err := ClearAll(ctx, pool); err != nil {
		t.Fatalf("%s - ClearAll failed: %v", dbIntegrationPrefix, err)
	}
	return pool
}

func TestIntegration_MigrationsIdempotent(t *testing.T) {
	pool := setupIntegrationPool(t)
	ctx := context.Background()

	migrations, _ := LoadMigrations(filepath.Join("..", "..", "migrations"))
	if err := RunMigrations(ctx, pool, migrations); err != nil {
		t.Fatalf("%s - second RunMigrations: %v", dbIntegrationPrefix, err)
	}
	st, err := MigrationStatus(ctx, pool, filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - MigrationStatus: %v", dbIntegrationPrefix, err)
	}
	if len(st.Pending) != 0 || len(st.Applied) != len(migrations) {
		t.Errorf("%s - status = %+v", dbIntegrationPrefix, st)
	}
}

func TestIntegration_WorkspaceStore(t *testing.T) {
	pool := setupIntegrationPool(t)
	ctx := context.Background()
	s := NewWorkspaceStore(pool)

	if err := s.CreateUser(ctx, workspace.UserProfile{Email: "ann@example.com", Name: "Ann"}); err != nil {
		t.Fatalf("%s - CreateUser: %v", dbIntegrationPrefix, err)
	}
	if err := s.CreateUser(ctx, workspace.UserProfile{Email: "ann@example.com", Name: "Ann"}); cmderr.CodeOf(err) != cmderr.CodeConflict {
		t.Errorf("%s - duplicate user = %v, want CONFLICT", dbIntegrationPrefix, err)
	}
	if _, err := s.GetUser(ctx, "nobody@example.com"); !cmderr.IsNotFound(err) {
		t.Errorf("%s - missing user = %v, want NOT_FOUND", dbIntegrationPrefix, err)
	}
	if err := s.SetCurrentWorkspace(ctx, "nobody@example.com", "w"); !cmderr.IsNotFound(err) {
		t.Errorf("%s - set current for missing user = %v", dbIntegrationPrefix, err)
	}
	if _, err := s.TransitionInvitation(ctx, "missing", workspace.StatusAccepted, nil); !cmderr.IsNotFound(err) {
		t.Errorf("%s - transition missing invitation = %v", dbIntegrationPrefix, err)
	}
	if err := s.RemoveMember(ctx, "w", "ann@example.com"); !cmderr.IsNotFound(err) {
		t.Errorf("%s - remove missing member = %v", dbIntegrationPrefix, err)
	}
}

func TestIntegration_ViewStore(t *testing.T) {
	pool := setupIntegrationPool(t)
	ctx := context.Background()
	s := NewViewStore(pool)

	root := folder.Record{ID: "w1", WorkspaceID: "w1", Name: "Root", Layout: folder.LayoutDocument, Section: folder.SectionPublic}
	if err := s.Insert(ctx, root, -1); err != nil {
		t.Fatalf("%s - insert root: %v", dbIntegrationPrefix, err)
	}
	if err := s.Insert(ctx, root, -1); cmderr.CodeOf(err) != cmderr.CodeConflict {
		t.Errorf("%s - duplicate root = %v, want CONFLICT", dbIntegrationPrefix, err)
	}
	for i, id := range []string{"a", "b", "c"} {
		idx := -1
		if id == "c" {
			idx = 0
		}
		rec := folder.Record{ID: id, WorkspaceID: "w1", ParentViewID: "w1", Name: id, Layout: folder.LayoutGrid, Section: folder.SectionPublic}
		if err := s.Insert(ctx, rec, idx); err != nil {
			t.Fatalf("%s - insert %d: %v", dbIntegrationPrefix, i, err)
		}
	}
	orphan := folder.Record{ID: "o", WorkspaceID: "w1", ParentViewID: "o", Name: "o", Layout: folder.LayoutDocument}
	if err := s.Insert(ctx, orphan, -1); err != nil {
		t.Fatalf("%s - insert orphan: %v", dbIntegrationPrefix, err)
	}
	if err := s.Insert(ctx, folder.Record{ID: "x", WorkspaceID: "w1", ParentViewID: "missing", Name: "x"}, -1); !cmderr.IsNotFound(err) {
		t.Errorf("%s - insert under missing parent = %v", dbIntegrationPrefix, err)
	}

	got, err := s.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("%s - get root: %v", dbIntegrationPrefix, err)
	}
	if want := []string{"c", "a", "b"}; len(got.Children) != 3 || got.Children[0] != want[0] || got.Children[2] != want[2] {
		t.Errorf("%s - children = %v, want %v", dbIntegrationPrefix, got.Children, want)
	}

	err = s.Update(ctx, "a", func(r *folder.Record) error {
		r.Icon = &folder.Icon{Type: folder.IconEmoji, Value: "📌"}
		r.Trashed = true
		return nil
	})
	if err != nil {
		t.Fatalf("%s - update: %v", dbIntegrationPrefix, err)
	}
	a, _ := s.Get(ctx, "a")
	if a.Icon == nil || a.Icon.Value != "📌" || !a.Trashed {
		t.Errorf("%s - updated record = %+v", dbIntegrationPrefix, a)
	}
	if err := s.Update(ctx, "a", func(*folder.Record) error { return cmderr.Conflict("stop") }); cmderr.CodeOf(err) != cmderr.CodeConflict {
		t.Errorf("%s - update error passthrough = %v", dbIntegrationPrefix, err)
	}

	list, err := s.List(ctx, "w1")
	if err != nil || len(list) != 5 || list[0].ID != "w1" || list[4].ID != "o" {
		t.Errorf("%s - list = %d records, %v", dbIntegrationPrefix, len(list), err)
	}

	if cur, _ := s.CurrentView(ctx, "w1", "ann@example.com"); cur != "" {
		t.Errorf("%s - current view before set = %q", dbIntegrationPrefix, cur)
	}
	_ = s.SetCurrentView(ctx, "w1", "ann@example.com", "a")
	_ = s.SetCurrentView(ctx, "w1", "ann@example.com", "b")
	if cur, _ := s.CurrentView(ctx, "w1", "ann@example.com"); cur != "b" {
		t.Errorf("%s - current view = %q, want b", dbIntegrationPrefix, cur)
	}
}

func TestIntegration_RuntimeOnPostgres(t *testing.T) {
	pool := setupIntegrationPool(t)
	ctx := context.Background()

	rt, err := bootstrap.NewRuntime(bootstrap.Params{
		WorkspaceStore: NewWorkspaceStore(pool),
		FolderStore:    NewViewStore(pool),
	})
	if err != nil {
		t.Fatalf("%s - NewRuntime: %v", dbIntegrationPrefix, err)
	}
	owner := workflow.SignUp(ctx, rt.Dispatcher, "owner@example.com", "Owner")
	member := workflow.SignUp(ctx, rt.Dispatcher, "member@example.com", "Member")
	ws := owner.GetWorkspaceID(ctx)
	owner.AddWorkspaceMember(ctx, ws, member)

	if got := len(owner.GetWorkspaceMembers(ctx, ws)); got != 2 {
		t.Errorf("%s - members = %d, want 2", dbIntegrationPrefix, got)
	}

	plain := owner.CreateView(ctx, ws, "Plain")
	if got := owner.GetView(ctx, plain.ID); !reflect.DeepEqual(got, plain) {
		t.Errorf("%s - GetView = %+v, want %+v", dbIntegrationPrefix, got, plain)
	}

	f := workflow.NewGridViewFixture(ctx, owner, "a,b\n")
	child := owner.CreateView(ctx, f.ChildView.ID, "Child")
	chain := owner.GetViewAncestors(ctx, child.ID)
	if len(chain) != 3 || chain[2].ID != ws {
		t.Errorf("%s - ancestors = %+v", dbIntegrationPrefix, chain)
	}

	owner.DeleteView(ctx, f.ChildView.ID)
	if _, err := owner.TryGetView(ctx, f.ChildView.ID); !cmderr.IsNotFound(err) {
		t.Errorf("%s - trashed view = %v, want NOT_FOUND", dbIntegrationPrefix, err)
	}
	if trash := owner.GetTrash(ctx); len(trash) != 1 || trash[0].ID != f.ChildView.ID {
		t.Errorf("%s - trash = %+v", dbIntegrationPrefix, trash)
	}
}
