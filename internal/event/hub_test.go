package event

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDropsOldestWhenFull(t *testing.T) {
	h := NewHub(3)
	defer h.Close()

	q := h.Acquire("sess-1")
	defer h.Release("sess-1")

	for i := 0; i < 5; i++ {
		h.Publish("sess-1", Event{Type: TypeThinkingDelta, Data: i})
	}

	var got []int
	for len(q.Events()) > 0 {
		e := <-q.Events()
		got = append(got, e.Data.(int))
	}
	assert.Equal(t, []int{2, 3, 4}, got, "oldest events are dropped first")
}

func TestPublishNeverBlocks(t *testing.T) {
	h := NewHub(2)
	defer h.Close()

	h.Acquire("sess-1")
	defer h.Release("sess-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish("sess-1", Event{Type: TypePing})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no consumer")
	}
}

func TestQueueRefcountLifecycle(t *testing.T) {
	h := NewHub(10)
	defer h.Close()

	q1 := h.Acquire("sess-1")
	q2 := h.Acquire("sess-1")
	assert.Same(t, q1, q2, "same session shares one queue")

	h.Release("sess-1")
	h.Publish("sess-1", Event{Type: TypeDone})
	require.Len(t, q1.Events(), 1, "queue survives while a reference remains")

	h.Release("sess-1")
	q3 := h.Acquire("sess-1")
	defer h.Release("sess-1")
	assert.NotSame(t, q1, q3, "fully released queue is discarded")
}

func TestPublishWithoutConsumerIsNoop(t *testing.T) {
	h := NewHub(10)
	defer h.Close()

	// No Acquire for this session; publish must not panic or leak.
	h.Publish("ghost", Event{Type: TypeDone})
}

func TestSessionsAreIsolated(t *testing.T) {
	h := NewHub(10)
	defer h.Close()

	qa := h.Acquire("a")
	qb := h.Acquire("b")
	defer h.Release("a")
	defer h.Release("b")

	h.Publish("a", Event{Type: TypeCompleted})

	assert.Len(t, qa.Events(), 1)
	assert.Len(t, qb.Events(), 0)
}

func TestGlobalSubscriptionMirrorsAllSessions(t *testing.T) {
	h := NewHub(10)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := h.SubscribeGlobal(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		h.Publish(fmt.Sprintf("sess-%d", i), Event{Type: TypePing})
	}

	for i := 0; i < 3; i++ {
		select {
		case msg := <-msgs:
			msg.Ack()
			assert.Equal(t, fmt.Sprintf("sess-%d", i), msg.Metadata.Get("session_id"))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for mirrored event")
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Event{Type: TypeDone}.Terminal())
	assert.True(t, Event{Type: TypeError}.Terminal())
	assert.False(t, Event{Type: TypeCompleted}.Terminal())
	assert.False(t, Event{Type: TypePing}.Terminal())
}
