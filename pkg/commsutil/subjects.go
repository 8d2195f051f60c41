package commsutil

import (
	"fmt"
	"strings"

	"github.com/morezero/workspace-bus/pkg/command"
)

// Default COMMS subjects.
const (
	SubjectCommandPrefix = "cmd"
	SubjectChangeEvent   = "workspace.changed"
)

// BuildChangeSubject builds a granular change event subject for a workspace and entity kind.
func BuildChangeSubject(workspaceID, entity string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectChangeEvent, sanitizeToken(workspaceID), sanitizeToken(entity))
}

// BuildCommandSubject builds the COMMS subject a command is served on.
func BuildCommandSubject(prefix string, id command.ID) string {
	if prefix == "" {
		prefix = SubjectCommandPrefix
	}
	return fmt.Sprintf("%s.%s.%s", prefix, id.Domain, id.Name)
}

// ParseCommandSubject is the inverse of BuildCommandSubject.
func ParseCommandSubject(prefix, subject string) (command.ID, error) {
	if prefix == "" {
		prefix = SubjectCommandPrefix
	}
	rest := strings.TrimPrefix(subject, prefix+".")
	if rest == subject {
		return command.ID{}, fmt.Errorf("commsutil:subjects - subject %q lacks prefix %q", subject, prefix)
	}
	return command.Parse(rest)
}

// sanitizeToken replaces characters that are not valid inside a single subject token.
func sanitizeToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}
