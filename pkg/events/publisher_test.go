package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	if err := pub.PublishChanged(context.Background(), NewChangeEvent("w1", EntityView, "v1", ActionCreated)); err != nil {
		t.Errorf("events:publisher_test - expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *ChangeEvent
	pub := NewCallbackPublisher(func(_ context.Context, event *ChangeEvent) error {
		captured = event
		return nil
	})

	event := NewChangeEvent("w1", EntityMember, "bob@example.com", ActionAccepted)
	if err := pub.PublishChanged(context.Background(), event); err != nil {
		t.Fatalf("events:publisher_test - PublishChanged: %v", err)
	}
	if captured == nil {
		t.Fatal("events:publisher_test - expected callback to be called")
	}
	if captured.WorkspaceID != "w1" || captured.Entity != EntityMember || captured.Action != ActionAccepted {
		t.Errorf("events:publisher_test - captured = %+v", captured)
	}
}

func TestNewChangeEvent_Timestamp(t *testing.T) {
	event := NewChangeEvent("w1", EntityView, "v1", ActionDeleted)
	if _, err := time.Parse(time.RFC3339Nano, event.Timestamp); err != nil {
		t.Errorf("events:publisher_test - timestamp %q: %v", event.Timestamp, err)
	}
}

func TestEmit_SwallowsErrors(t *testing.T) {
	calls := 0
	pub := NewCallbackPublisher(func(_ context.Context, _ *ChangeEvent) error {
		calls++
		return errors.New("broker down")
	})

	Emit(context.Background(), pub, NewChangeEvent("w1", EntityView, "v1", ActionUpdated))
	Emit(context.Background(), nil, NewChangeEvent("w1", EntityView, "v1", ActionUpdated))
	Emit(context.Background(), pub, nil)

	if calls != 1 {
		t.Errorf("events:publisher_test - callback calls = %d, want 1", calls)
	}
}
