package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/websmith-ai/websmith/internal/event"
)

// heartbeatInterval is how long the stream waits for an event before
// emitting a ping. Variable so tests can shorten it.
var heartbeatInterval = 15 * time.Second

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// writeEvent writes one SSE block: optional id line, event line, one
// data line per line of the JSON payload, then a blank line.
func (s *sseWriter) writeEvent(id, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	fmt.Fprintf(&b, "event: %s\n", name)
	for _, line := range strings.Split(string(payload), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	if _, err := fmt.Fprint(s.w, b.String()); err != nil {
		return err
	}

	// ResponseController flushes through middleware wrappers; fall back
	// to the plain flusher if it cannot.
	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

// streamEvents handles GET /api/sessions/{sessionID}/messages/stream.
//
// On connect it emits a sync snapshot if a turn is in flight, then
// forwards live events from the session queue until a terminal event
// arrives or the client goes away. Historical steps are not replayed
// here; clients reconcile through the step-list endpoints.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.readableSession(w, r)
	if sess == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	queue := s.hub.Acquire(sess.ID)
	defer s.hub.Release(sess.ID)

	// Sync snapshot: latest assistant message with a non-terminal step
	// means a turn is still running.
	if latest, err := s.store.LatestAssistantMessage(r.Context(), sess.ID); err == nil {
		if step, err := s.store.LatestStep(r.Context(), latest.ID); err == nil && !step.Status.Terminal() {
			payload := map[string]any{
				"message_id":  latest.ID,
				"latest_step": step,
				"is_running":  true,
			}
			if err := sse.writeEvent(ulid.Make().String(), string(event.TypeSync), payload); err != nil {
				return
			}
		}
	}

	// Pings fire only after a quiet wait; forwarding an event resets
	// the heartbeat.
	heartbeat := time.NewTimer(heartbeatInterval)
	defer heartbeat.Stop()
	pings := 0

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			pings++
			payload := map[string]any{
				"ping":      pings,
				"timestamp": float64(time.Now().UnixMilli()) / 1000,
			}
			if err := sse.writeEvent("", string(event.TypePing), payload); err != nil {
				return
			}
			heartbeat.Reset(heartbeatInterval)

		case ev := <-queue.Events():
			if err := sse.writeEvent(ulid.Make().String(), string(ev.Type), eventPayload(ev)); err != nil {
				return
			}
			if closesStream(ev) {
				return
			}
			if !heartbeat.Stop() {
				select {
				case <-heartbeat.C:
				default:
				}
			}
			heartbeat.Reset(heartbeatInterval)
		}
	}
}

// eventPayload maps an internal event to its wire payload. Step events
// are wrapped in the {type:"step", data:...} envelope.
func eventPayload(ev event.Event) any {
	switch ev.Type {
	case event.TypeThinking, event.TypeThinkingDelta,
		event.TypeToolCalling, event.TypeToolExecuting, event.TypeToolCompleted,
		event.TypeFailed, event.TypeCompleted:
		return map[string]any{"type": "step", "data": ev.Data}
	default:
		return ev.Data
	}
}

// closesStream reports whether the stream ends after forwarding the
// event.
func closesStream(ev event.Event) bool {
	return ev.Terminal() || ev.Type == event.TypeCompleted || ev.Type == event.TypeFailed
}
