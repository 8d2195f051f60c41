// Package bootstrap wires the command domains into a registry and dispatcher
// and applies seed data at startup.
package bootstrap

import (
	"github.com/morezero/workspace-bus/pkg/folder"
	"github.com/morezero/workspace-bus/pkg/workspace"
)

// SeedUser is an account created at startup.
type SeedUser struct {
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	WorkspaceName string `json:"workspaceName,omitempty"`
}

// SeedMembership adds a user to another user's first workspace through the
// invitation protocol.
type SeedMembership struct {
	Owner  string         `json:"owner"`
	Member string         `json:"member"`
	Role   workspace.Role `json:"role,omitempty"`
}

// SeedView is a view created in its owner's current workspace.
type SeedView struct {
	Owner    string        `json:"owner,omitempty"`
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name"`
	Layout   folder.Layout `json:"layout,omitempty"`
	Data     string        `json:"data,omitempty"`
	Children []SeedView    `json:"children,omitempty"`
}

// SeedConfig is the root of a seed file.
type SeedConfig struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Users       []SeedUser       `json:"users"`
	Memberships []SeedMembership `json:"memberships,omitempty"`
	Views       []SeedView       `json:"views,omitempty"`
}
