package commsutil

import (
	"testing"

	"github.com/morezero/workspace-bus/pkg/command"
)

func TestBuildChangeSubject(t *testing.T) {
	tests := []struct {
		name        string
		workspaceID string
		entity      string
		want        string
	}{
		{"basic", "w1", "view", "workspace.changed.w1.view"},
		{"dotted id", "a.b", "member", "workspace.changed.a_b.member"},
		{"wildcards", "w*", ">", "workspace.changed.w_._"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildChangeSubject(tt.workspaceID, tt.entity)
			if got != tt.want {
				t.Errorf("BuildChangeSubject(%q, %q) = %q, want %q", tt.workspaceID, tt.entity, got, tt.want)
			}
		})
	}
}

func TestBuildCommandSubject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		id     command.ID
		want   string
	}{
		{"default prefix", "", command.CreateView, "cmd.folder.CreateView"},
		{"custom prefix", "bus.v1", command.InviteWorkspaceMember, "bus.v1.user.InviteWorkspaceMember"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildCommandSubject(tt.prefix, tt.id)
			if got != tt.want {
				t.Errorf("BuildCommandSubject(%q, %v) = %q, want %q", tt.prefix, tt.id, got, tt.want)
			}
			back, err := ParseCommandSubject(tt.prefix, got)
			if err != nil {
				t.Fatalf("commsutil:subjects_test - ParseCommandSubject: %v", err)
			}
			if back != tt.id {
				t.Errorf("commsutil:subjects_test - round trip = %v, want %v", back, tt.id)
			}
		})
	}
}

func TestParseCommandSubject_WrongPrefix(t *testing.T) {
	if _, err := ParseCommandSubject("cmd", "other.folder.GetView"); err == nil {
		t.Error("commsutil:subjects_test - expected error for foreign prefix")
	}
}
