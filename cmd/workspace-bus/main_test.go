package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/workspace-bus:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "clear", "seed", "commands", "scenario", "DATABASE_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestRunCommands(t *testing.T) {
	var buf bytes.Buffer
	if err := runCommands(&buf); err != nil {
		t.Fatalf("%s - runCommands: %v", mainTestPrefix, err)
	}
	out := buf.String()
	for _, want := range []string{"folder@", "user@", "  user.SignUp\n", "  folder.GatherPublishPayload\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("%s - output missing %q:\n%s", mainTestPrefix, want, out)
		}
	}
}

func TestRunScenario(t *testing.T) {
	var buf bytes.Buffer
	if err := runScenario(context.Background(), &buf); err != nil {
		t.Fatalf("%s - runScenario: %v", mainTestPrefix, err)
	}

	var got scenarioResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("%s - decode output: %v", mainTestPrefix, err)
	}
	if got.WorkspaceID == "" {
		t.Errorf("%s - empty workspace id", mainTestPrefix)
	}
	if len(got.Members) != 2 {
		t.Errorf("%s - members = %v, want alice and bob", mainTestPrefix, got.Members)
	}
	if len(got.Ancestors) != 3 || got.Ancestors[0] != "Bob's board" || got.Ancestors[1] != "View A" {
		t.Errorf("%s - ancestors = %v", mainTestPrefix, got.Ancestors)
	}
	if len(got.Publish) != 2 || got.Publish[0].Data != `{"rows":[]}` {
		t.Errorf("%s - publish = %+v", mainTestPrefix, got.Publish)
	}
}
