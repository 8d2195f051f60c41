// Package command defines command domains and the identifiers of every command on the bus.
package command

import (
	"fmt"
	"strings"
)

// Domain is a logical grouping of related commands.
type Domain string

// Known command domains.
const (
	DomainFolder Domain = "folder"
	DomainUser   Domain = "user"
)

// ID identifies a handler within the registry.
type ID struct {
	Domain Domain
	Name   string
}

// String returns the "domain.Name" form.
func (id ID) String() string {
	return string(id.Domain) + "." + id.Name
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.Domain == "" && id.Name == ""
}

// Parse parses a "domain.Name" identifier.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	dot := strings.Index(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		return ID{}, fmt.Errorf("command: invalid identifier %q", s)
	}
	return ID{Domain: Domain(s[:dot]), Name: s[dot+1:]}, nil
}

func folder(name string) ID { return ID{Domain: DomainFolder, Name: name} }
func user(name string) ID   { return ID{Domain: DomainUser, Name: name} }

// User domain.
var (
	SignUp                     = user("SignUp")
	GetUserProfile             = user("GetUserProfile")
	InviteWorkspaceMember      = user("InviteWorkspaceMember")
	ListWorkspaceInvitations   = user("ListWorkspaceInvitations")
	AcceptWorkspaceInvitation  = user("AcceptWorkspaceInvitation")
	DeclineWorkspaceInvitation = user("DeclineWorkspaceInvitation")
	RemoveWorkspaceMember      = user("RemoveWorkspaceMember")
	GetWorkspaceMembers        = user("GetWorkspaceMembers")
	GetUserWorkspace           = user("GetUserWorkspace")
	OpenWorkspace              = user("OpenWorkspace")
)

// Folder domain.
var (
	ReadCurrentWorkspace      = folder("ReadCurrentWorkspace")
	CreateView                = folder("CreateView")
	CreateOrphanView          = folder("CreateOrphanView")
	GetView                   = folder("GetView")
	DeleteView                = folder("DeleteView")
	UpdateView                = folder("UpdateView")
	UpdateViewIcon            = folder("UpdateViewIcon")
	ReadCurrentWorkspaceViews = folder("ReadCurrentWorkspaceViews")
	GetAllViews               = folder("GetAllViews")
	ListTrashItems            = folder("ListTrashItems")
	RestoreTrashItem          = folder("RestoreTrashItem")
	GetFolderData             = folder("GetFolderData")
	GetViewAncestors          = folder("GetViewAncestors")
	ImportData                = folder("ImportData")
	GatherPublishPayload      = folder("GatherPublishPayload")
)
