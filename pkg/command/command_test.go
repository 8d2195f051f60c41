package command

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ID
		wantErr bool
	}{
		{"folder.CreateView", CreateView, false},
		{"user.InviteWorkspaceMember", InviteWorkspaceMember, false},
		{"  folder.GetView ", GetView, false},
		{"nodot", ID{}, true},
		{".Name", ID{}, true},
		{"folder.", ID{}, true},
		{"", ID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("command:command_test - expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("command:command_test - unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("command:command_test - Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestID_String(t *testing.T) {
	if got := ListTrashItems.String(); got != "folder.ListTrashItems" {
		t.Errorf("command:command_test - String() = %q", got)
	}
	if !(ID{}).IsZero() || CreateView.IsZero() {
		t.Error("command:command_test - IsZero mismatch")
	}
}
