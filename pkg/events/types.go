// Package events defines change notifications emitted when workspace
// membership or the view tree changes, and the publishers that deliver them.
package events

import "time"

// Entity kinds carried by ChangeEvent.
const (
	EntityView       = "view"
	EntityMember     = "member"
	EntityInvitation = "invitation"
	EntityWorkspace  = "workspace"
)

// Actions carried by ChangeEvent.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionRestored = "restored"
	ActionAccepted = "accepted"
)

// ChangeEvent is emitted after a handler commits a change.
type ChangeEvent struct {
	WorkspaceID   string   `json:"workspaceId"`
	Entity        string   `json:"entity"`
	EntityID      string   `json:"entityId"`
	Action        string   `json:"action"`
	ChangedFields []string `json:"changedFields,omitempty"`
	Actor         string   `json:"actor,omitempty"`
	Timestamp     string   `json:"timestamp"`
}

// NewChangeEvent builds an event stamped with the current UTC time.
func NewChangeEvent(workspaceID, entity, entityID, action string) *ChangeEvent {
	return &ChangeEvent{
		WorkspaceID: workspaceID,
		Entity:      entity,
		EntityID:    entityID,
		Action:      action,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
}
