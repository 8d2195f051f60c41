package events

import (
	"context"
	"fmt"
	"log/slog"
)

const publisherLogPrefix = "events:publisher"

// EventPublisher publishes change events.
type EventPublisher interface {
	PublishChanged(ctx context.Context, event *ChangeEvent) error
}

// NoOpPublisher discards events. Used when no COMMS connection is configured.
type NoOpPublisher struct{}

// PublishChanged is a no-op.
func (p *NoOpPublisher) PublishChanged(_ context.Context, _ *ChangeEvent) error {
	return nil
}

// CallbackPublisher hands events to a function.
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ChangeEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *ChangeEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishChanged calls the callback.
func (p *CallbackPublisher) PublishChanged(ctx context.Context, event *ChangeEvent) error {
	return p.callback(ctx, event)
}

// Emit publishes event and logs a failure instead of returning it. Handlers
// call it after their change is committed, so a delivery problem must not
// turn a successful command into a failed one.
func Emit(ctx context.Context, pub EventPublisher, event *ChangeEvent) {
	if pub == nil || event == nil {
		return
	}
	if err := pub.PublishChanged(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s %s for %s: %v", publisherLogPrefix, event.Entity, event.Action, event.EntityID, err))
	}
}
