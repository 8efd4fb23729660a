// Package live fans project events out to connected editors. Events travel
// through Redis pub/sub so every API instance sees writes made on any other,
// then get delivered to in-process subscribers over channels that the HTTP
// layer drains into server-sent event streams.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "live:"

// Event types pushed to editors.
const (
	EventProjectSnapshot = "project.snapshot"
	EventProjectSaved    = "project.saved"
	EventProjectRenamed  = "project.renamed"
	EventProjectDeleted  = "project.deleted"
	EventChatAppended    = "chat.appended"
	EventGenerateStarted = "generate.started"
	EventGenerateChunk   = "generate.chunk"
	EventGenerateDone    = "generate.done"
	EventGenerateFailed  = "generate.failed"
	EventEditingMarker   = "editing.marker"
	EventImageAdded      = "image.added"
	EventDeployFinished  = "deploy.finished"
)

// Event is the wire format for one project notification. Version carries the
// project document version for save events so clients can apply
// last-write-wins ordering and discard anything older than what they already
// rendered.
type Event struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId"`
	Version   int64           `json:"version,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

type Hub struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub(client *redis.Client) *Hub {
	return &Hub{
		client: client,
		subs:   map[string]map[chan Event]struct{}{},
	}
}

// Run consumes the Redis pattern subscription until ctx is cancelled. It is
// meant to be started once per process.
func (h *Hub) Run(ctx context.Context) error {
	pubsub := h.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("live subscription closed")
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("live: dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			if event.ProjectID == "" {
				event.ProjectID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			h.dispatch(event)
		}
	}
}

// Publish sends an event to every instance, including this one. Marshal
// errors are the only local failure mode; delivery is fire-and-forget.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	if err := h.client.Publish(ctx, channelPrefix+event.ProjectID, payload).Err(); err != nil {
		return fmt.Errorf("publish live event: %w", err)
	}
	return nil
}

// Subscribe registers a listener for one project. The returned cancel func
// must be called when the client disconnects.
func (h *Hub) Subscribe(projectID string) (<-chan Event, func()) {
	ch := make(chan Event, 32)

	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = map[chan Event]struct{}{}
	}
	h.subs[projectID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[projectID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, projectID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// dispatch delivers without blocking. A subscriber that cannot keep up loses
// intermediate events; save events carry the full document so the next one
// restores a consistent view.
func (h *Hub) dispatch(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[event.ProjectID] {
		select {
		case ch <- event:
		default:
			log.Printf("live: dropping event %s for slow subscriber on project %s", event.Type, event.ProjectID)
		}
	}
}

// SubscriberCount reports how many listeners a project currently has.
func (h *Hub) SubscriberCount(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[projectID])
}
