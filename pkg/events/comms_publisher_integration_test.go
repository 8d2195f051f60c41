package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

const commsTestPrefix = "events:comms_publisher_integration_test"

// startTestServer starts an in-process COMMS server on a random port.
func startTestServer(t *testing.T) *comms.Conn {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   commsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", commsTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", commsTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", commsTestPrefix, err)
	}

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return nc
}

func subscribeEvents(t *testing.T, nc *comms.Conn, subject string) <-chan *ChangeEvent {
	t.Helper()
	ch := make(chan *ChangeEvent, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("%s - failed to unmarshal: %v", commsTestPrefix, err)
			return
		}
		ch <- &event
	})
	if err != nil {
		t.Fatalf("%s - subscribe %s: %v", commsTestPrefix, subject, err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return ch
}

func expectEvent(t *testing.T, ch <-chan *ChangeEvent, what string) *ChangeEvent {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for %s event", commsTestPrefix, what)
		return nil
	}
}

func TestCommsPublisher_PublishesGranularAndGlobal(t *testing.T) {
	nc := startTestServer(t)
	publisher := NewCommsPublisher(nc, nil)

	granular := subscribeEvents(t, nc, "workspace.changed.w1.view")
	global := subscribeEvents(t, nc, "workspace.changed")
	wildcard := subscribeEvents(t, nc, "workspace.changed.*.>")

	event := NewChangeEvent("w1", EntityView, "v1", ActionCreated)
	event.ChangedFields = []string{"name"}
	if err := publisher.PublishChanged(context.Background(), event); err != nil {
		t.Fatalf("%s - PublishChanged: %v", commsTestPrefix, err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("%s - Flush: %v", commsTestPrefix, err)
	}

	got := expectEvent(t, granular, "granular")
	if got.WorkspaceID != "w1" || got.EntityID != "v1" || got.Action != ActionCreated {
		t.Errorf("%s - granular event = %+v", commsTestPrefix, got)
	}
	if len(got.ChangedFields) != 1 || got.ChangedFields[0] != "name" {
		t.Errorf("%s - changed fields = %v", commsTestPrefix, got.ChangedFields)
	}
	expectEvent(t, global, "global")
	expectEvent(t, wildcard, "wildcard")
}

func TestCommsPublisher_CustomGlobalSubject(t *testing.T) {
	nc := startTestServer(t)
	customSubject := "custom.events.changed"
	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{GlobalChangeSubject: customSubject})

	received := subscribeEvents(t, nc, customSubject)

	if err := publisher.PublishChanged(context.Background(), NewChangeEvent("w2", EntityMember, "bob@example.com", ActionAccepted)); err != nil {
		t.Fatalf("%s - PublishChanged: %v", commsTestPrefix, err)
	}
	_ = nc.Flush()

	got := expectEvent(t, received, "custom global")
	if got.Entity != EntityMember || got.EntityID != "bob@example.com" {
		t.Errorf("%s - event = %+v", commsTestPrefix, got)
	}
}

func TestCommsPublisher_SanitizesWorkspaceToken(t *testing.T) {
	nc := startTestServer(t)
	publisher := NewCommsPublisher(nc, nil)

	received := subscribeEvents(t, nc, "workspace.changed.team_alpha.view")

	if err := publisher.PublishChanged(context.Background(), NewChangeEvent("team.alpha", EntityView, "v1", ActionDeleted)); err != nil {
		t.Fatalf("%s - PublishChanged: %v", commsTestPrefix, err)
	}
	_ = nc.Flush()

	if got := expectEvent(t, received, "sanitized"); got.WorkspaceID != "team.alpha" {
		t.Errorf("%s - workspace = %q", commsTestPrefix, got.WorkspaceID)
	}
}

func TestCommsPublisher_ClosedConnection(t *testing.T) {
	nc := startTestServer(t)
	publisher := NewCommsPublisher(nc, nil)
	nc.Close()

	if err := publisher.PublishChanged(context.Background(), NewChangeEvent("w1", EntityView, "v1", ActionCreated)); err == nil {
		t.Errorf("%s - expected error on closed connection", commsTestPrefix)
	}
}
