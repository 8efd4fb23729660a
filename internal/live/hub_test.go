package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(client)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	// Give the pattern subscription a moment to establish.
	time.Sleep(50 * time.Millisecond)
	return hub
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := newTestHub(t)

	ch, cancel := hub.Subscribe("prj_1")
	defer cancel()

	payload, _ := json.Marshal(map[string]string{"name": "Portfolio"})
	err := hub.Publish(context.Background(), Event{
		Type:      EventProjectRenamed,
		ProjectID: "prj_1",
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case event := <-ch:
		if event.Type != EventProjectRenamed {
			t.Errorf("Type = %q, want %q", event.Type, EventProjectRenamed)
		}
		if event.ProjectID != "prj_1" {
			t.Errorf("ProjectID = %q", event.ProjectID)
		}
		if event.At.IsZero() {
			t.Error("At should be stamped on publish")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeIsScopedToProject(t *testing.T) {
	hub := newTestHub(t)

	ch, cancel := hub.Subscribe("prj_1")
	defer cancel()

	if err := hub.Publish(context.Background(), Event{Type: EventProjectSaved, ProjectID: "prj_other"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case event := <-ch:
		t.Fatalf("unexpected event for other project: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	hub := newTestHub(t)

	_, cancel := hub.Subscribe("prj_1")
	if got := hub.SubscriberCount("prj_1"); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}
	cancel()
	if got := hub.SubscriberCount("prj_1"); got != 0 {
		t.Fatalf("SubscriberCount after cancel = %d, want 0", got)
	}
}

func TestSaveEventCarriesVersion(t *testing.T) {
	hub := newTestHub(t)

	ch, cancel := hub.Subscribe("prj_1")
	defer cancel()

	if err := hub.Publish(context.Background(), Event{Type: EventProjectSaved, ProjectID: "prj_1", Version: 7}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case event := <-ch:
		if event.Version != 7 {
			t.Errorf("Version = %d, want 7", event.Version)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
