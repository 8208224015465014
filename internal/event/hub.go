package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// GlobalTopic is the watermill topic carrying every session's events.
const GlobalTopic = "websmith.events"

// Queue is a bounded FIFO for one session. Publishing to a full queue
// drops the oldest event, so a slow or absent consumer never blocks
// the agent loop.
type Queue struct {
	mu sync.Mutex
	ch chan Event
}

func newQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Event, capacity)}
}

// Events returns the receive side of the queue.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

func (q *Queue) publish(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- e:
			return
		default:
		}
		select {
		case <-q.ch: // drop oldest
		default:
		}
	}
}

// Hub owns the per-session queues. Queues are refcounted: the agent
// loop holds a reference for the duration of a turn, the SSE handler
// for the duration of a connection, and the queue is discarded when
// the last reference is released.
type Hub struct {
	mu       sync.Mutex
	queues   map[string]*hubEntry
	capacity int
	pubsub   *gochannel.GoChannel
}

type hubEntry struct {
	queue *Queue
	refs  int
}

// NewHub creates a hub whose queues hold up to capacity events.
func NewHub(capacity int) *Hub {
	return &Hub{
		queues:   make(map[string]*hubEntry),
		capacity: capacity,
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: int64(capacity),
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// Acquire returns the session's queue, creating it on first use.
// Every Acquire must be paired with a Release.
func (h *Hub) Acquire(sessionID string) *Queue {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.queues[sessionID]
	if !ok {
		entry = &hubEntry{queue: newQueue(h.capacity)}
		h.queues[sessionID] = entry
	}
	entry.refs++
	return entry.queue
}

// Release drops one reference to the session's queue.
func (h *Hub) Release(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.queues[sessionID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(h.queues, sessionID)
	}
}

// Publish delivers an event to the session's queue (if anyone holds
// it) and mirrors it on the global watermill topic.
func (h *Hub) Publish(sessionID string, e Event) {
	h.mu.Lock()
	entry, ok := h.queues[sessionID]
	h.mu.Unlock()

	if ok {
		entry.queue.publish(e)
	}

	if data, err := json.Marshal(e); err == nil {
		msg := message.NewMessage(watermill.NewUUID(), data)
		msg.Metadata.Set("session_id", sessionID)
		_ = h.pubsub.Publish(GlobalTopic, msg)
	}
}

// SubscribeGlobal returns a watermill subscription over all sessions'
// events, for logging or future distributed backends.
func (h *Hub) SubscribeGlobal(ctx context.Context) (<-chan *message.Message, error) {
	return h.pubsub.Subscribe(ctx, GlobalTopic)
}

// Close shuts the hub down and drops all queues.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.queues = make(map[string]*hubEntry)
	h.mu.Unlock()
	return h.pubsub.Close()
}
