// Package folder implements the folder domain: the per-workspace view tree,
// trash, ancestry, data import and publish payload gathering.
package folder

import "time"

// Layout is the presentation type of a view.
type Layout string

const (
	LayoutDocument Layout = "Document"
	LayoutGrid     Layout = "Grid"
	LayoutBoard    Layout = "Board"
	LayoutCalendar Layout = "Calendar"
	LayoutChat     Layout = "Chat"
)

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	switch l {
	case LayoutDocument, LayoutGrid, LayoutBoard, LayoutCalendar, LayoutChat:
		return true
	}
	return false
}

// Publishable reports whether views of this layout carry publishable content.
func (l Layout) Publishable() bool {
	return l.Valid() && l != LayoutChat
}

// Section places a view in the shared or the personal part of a workspace.
type Section string

const (
	SectionPublic  Section = "public"
	SectionPrivate Section = "private"
)

// IconType distinguishes icon encodings.
type IconType string

const (
	IconEmoji IconType = "Emoji"
	IconURL   IconType = "Url"
	IconName  IconType = "Icon"
)

// Icon is a view's icon.
type Icon struct {
	Type  IconType `json:"ty"`
	Value string   `json:"value"`
}

// View is a node of the workspace view tree. ChildViews holds the live
// children one level deep.
type View struct {
	ID           string    `json:"id"`
	ParentViewID string    `json:"parent_view_id"`
	Name         string    `json:"name"`
	Layout       Layout    `json:"layout"`
	ChildViews   []View    `json:"child_views"`
	Icon         *Icon     `json:"icon,omitempty"`
	Extra        string    `json:"extra,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	IsFavorite   bool      `json:"is_favorite"`
	CreatedAt    time.Time `json:"created_at"`
}

// TrashEntry is a soft-deleted view.
type TrashEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DeletedAt time.Time `json:"deleted_at"`
}

// WorkspaceView is the caller's current workspace with its top-level views.
type WorkspaceView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Views         []View `json:"views"`
	CurrentViewID string `json:"current_view_id,omitempty"`
}

// FolderData is a snapshot of one workspace: its top-level tree, every view
// including trashed and orphan ones, and the trash.
type FolderData struct {
	Workspace WorkspaceView `json:"workspace"`
	Views     []View        `json:"views"`
	Trash     []TrashEntry  `json:"trash"`
}

// PublishViewInfo summarizes a child view inside publish metadata.
type PublishViewInfo struct {
	ViewID string `json:"view_id"`
	Name   string `json:"name"`
	Layout Layout `json:"layout"`
}

// PublishMeta describes a published view.
type PublishMeta struct {
	Name       string            `json:"name"`
	Icon       *Icon             `json:"icon,omitempty"`
	ChildViews []PublishViewInfo `json:"child_views"`
}

// PublishPayload is the publishable content of one view.
type PublishPayload struct {
	ViewID string      `json:"view_id"`
	Layout Layout      `json:"layout"`
	Meta   PublishMeta `json:"meta"`
	Data   string      `json:"data"`
}

// ImportType is the format of imported content.
type ImportType string

const (
	ImportMarkdown  ImportType = "Markdown"
	ImportPlainText ImportType = "PlainText"
	ImportCSV       ImportType = "CSV"
)

// Layout returns the view layout produced by importing this format.
func (t ImportType) Layout() (Layout, bool) {
	switch t {
	case ImportMarkdown, ImportPlainText:
		return LayoutDocument, true
	case ImportCSV:
		return LayoutGrid, true
	}
	return "", false
}

// CreateViewRequest creates a view under ParentViewID.
type CreateViewRequest struct {
	ParentViewID string   `json:"parent_view_id"`
	Name         string   `json:"name"`
	Layout       Layout   `json:"layout"`
	ViewID       string   `json:"view_id,omitempty"`
	InitialData  string   `json:"initial_data,omitempty"`
	SetAsCurrent bool     `json:"set_as_current"`
	Index        *int     `json:"index,omitempty"`
	Section      *Section `json:"section,omitempty"`
	Icon         *Icon    `json:"icon,omitempty"`
	Extra        *string  `json:"extra,omitempty"`
	Thumbnail    *string  `json:"thumbnail,omitempty"`
}

// CreateOrphanViewRequest creates a view outside the tree.
type CreateOrphanViewRequest struct {
	ViewID      string `json:"view_id"`
	Name        string `json:"name"`
	Layout      Layout `json:"layout"`
	InitialData string `json:"initial_data,omitempty"`
}

// ViewIDValue addresses a single view.
type ViewIDValue struct {
	Value string `json:"value"`
}

// RepeatedViewIDs addresses several views.
type RepeatedViewIDs struct {
	Items []string `json:"items"`
}

// UpdateViewRequest changes the set fields of a view.
type UpdateViewRequest struct {
	ViewID     string  `json:"view_id"`
	Name       *string `json:"name,omitempty"`
	Layout     *Layout `json:"layout,omitempty"`
	Thumbnail  *string `json:"thumbnail,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
	Extra      *string `json:"extra,omitempty"`
}

// UpdateViewIconRequest sets or, with a nil Icon, clears a view's icon.
type UpdateViewIconRequest struct {
	ViewID string `json:"view_id"`
	Icon   *Icon  `json:"icon,omitempty"`
}

// TrashIDRequest addresses a trash entry.
type TrashIDRequest struct {
	ID string `json:"id"`
}

// ImportItem is one piece of content to import.
type ImportItem struct {
	Name       string     `json:"name"`
	Data       string     `json:"data"`
	ImportType ImportType `json:"import_type"`
}

// ImportRequest imports content as new views under ParentViewID.
type ImportRequest struct {
	ParentViewID string       `json:"parent_view_id"`
	Items        []ImportItem `json:"items"`
}

// GatherRequest collects the publishable content of a view.
type GatherRequest struct {
	ViewID          string `json:"view_id"`
	IncludeChildren bool   `json:"include_children"`
}

// ViewList is a collection of views.
type ViewList struct {
	Items []View `json:"items"`
}

// TrashList is the response of ListTrashItems.
type TrashList struct {
	Items []TrashEntry `json:"items"`
}

// PublishList is the response of GatherPublishPayload.
type PublishList struct {
	Items []PublishPayload `json:"items"`
}
