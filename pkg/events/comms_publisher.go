package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/workspace-bus/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalChangeSubject overrides the global subject (CHANGE_EVENT_SUBJECT).
	GlobalChangeSubject string
}

// CommsPublisher publishes change events to COMMS subjects.
type CommsPublisher struct {
	nc                  *comms.Conn
	globalChangeSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectChangeEvent
	if opts != nil && opts.GlobalChangeSubject != "" {
		subject = opts.GlobalChangeSubject
	}
	return &CommsPublisher{nc: nc, globalChangeSubject: subject}
}

// PublishChanged publishes event on the per-workspace subject
// (workspace.changed.<workspace>.<entity>) and on the global subject.
func (p *CommsPublisher) PublishChanged(_ context.Context, event *ChangeEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	for _, subject := range []string{
		commsutil.BuildChangeSubject(event.WorkspaceID, event.Entity),
		p.globalChangeSubject,
	} {
		if err := p.nc.Publish(subject, data); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
			return fmt.Errorf("%s - publish %s: %w", commsPublisherLogPrefix, subject, err)
		}
	}

	slog.Debug(fmt.Sprintf("%s - Published %s %s for %s in %s", commsPublisherLogPrefix, event.Entity, event.Action, event.EntityID, event.WorkspaceID))
	return nil
}
