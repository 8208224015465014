// Package event carries execution-step events from the agent loop to
// the SSE streaming endpoint. Each session has one bounded FIFO queue;
// a watermill channel mirrors everything for global observers.
package event

// Type identifies an event on the stream.
type Type string

const (
	TypeSync          Type = "sync"
	TypeThinking      Type = "thinking"
	TypeThinkingDelta Type = "thinking_delta"
	TypeToolCalling   Type = "tool_calling"
	TypeToolExecuting Type = "tool_executing"
	TypeToolCompleted Type = "tool_completed"
	TypeFailed        Type = "failed"
	TypeCompleted     Type = "completed"
	TypeTodosUpdate   Type = "todos_update"
	TypeDone          Type = "done"
	TypeError         Type = "error"
	TypePing          Type = "ping"
)

// Event is one item on a session's stream.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Terminal reports whether the event closes the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeDone || e.Type == TypeError
}
