package db

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("db:migrations_test - failed to write test file %s: %v", name, err)
		}
	}
}

func TestLoadMigrations_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"0003_third.sql":  "THIRD",
		"0001_first.sql":  "FIRST",
		"0002_second.sql": "SECOND",
		"README.md":       "# Migrations",
		"config.json":     "{}",
	})
	if err := os.Mkdir(filepath.Join(dir, "subdir.sql"), 0755); err != nil {
		t.Fatalf("db:migrations_test - failed to create subdir: %v", err)
	}

	got, err := LoadMigrations(dir)
	if err != nil {
		t.Fatalf("db:migrations_test - unexpected error: %v", err)
	}
	want := []Migration{
		{Name: "0001_first.sql", SQL: "FIRST"},
		{Name: "0002_second.sql", SQL: "SECOND"},
		{Name: "0003_third.sql", SQL: "THIRD"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("db:migrations_test - got %+v, want %+v", got, want)
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	got, err := LoadMigrations(t.TempDir())
	if err != nil {
		t.Fatalf("db:migrations_test - unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("db:migrations_test - expected empty result, got %d items", len(got))
	}
}

func TestLoadMigrations_NonExistentDir(t *testing.T) {
	if _, err := LoadMigrations(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Error("db:migrations_test - expected error for non-existent directory")
	}
}

func TestLoadMigrations_RepositoryMigrations(t *testing.T) {
	got, err := LoadMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("db:migrations_test - unexpected error: %v", err)
	}
	if len(got) < 2 || got[0].Name != "0001_workspaces.sql" {
		t.Errorf("db:migrations_test - repository migrations = %v", got)
	}
}

func TestSplitMigrations(t *testing.T) {
	ms := []Migration{{Name: "0001_a.sql"}, {Name: "0002_b.sql"}, {Name: "0003_c.sql"}}

	tests := []struct {
		name        string
		applied     map[string]bool
		wantApplied []string
		wantPending []string
	}{
		{"fresh database", nil, []string{}, []string{"0001_a.sql", "0002_b.sql", "0003_c.sql"}},
		{"partially applied", map[string]bool{"0001_a.sql": true}, []string{"0001_a.sql"}, []string{"0002_b.sql", "0003_c.sql"}},
		{"up to date", map[string]bool{"0001_a.sql": true, "0002_b.sql": true, "0003_c.sql": true}, []string{"0001_a.sql", "0002_b.sql", "0003_c.sql"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := splitMigrations(ms, tt.applied)
			if !reflect.DeepEqual(st.Applied, tt.wantApplied) || !reflect.DeepEqual(st.Pending, tt.wantPending) {
				t.Errorf("db:migrations_test - got %+v", st)
			}
		})
	}
}

func TestMigrationDown_Unsupported(t *testing.T) {
	if err := MigrationDown(context.Background(), nil, ""); err == nil {
		t.Error("db:migrations_test - expected MigrationDown to refuse")
	}
}
