package types

import (
	"encoding/json"
	"time"
)

// StepStatus tracks the state of one agent-loop transition.
type StepStatus string

const (
	StepThinking      StepStatus = "thinking"
	StepToolCalling   StepStatus = "tool_calling"
	StepToolExecuting StepStatus = "tool_executing"
	StepToolCompleted StepStatus = "tool_completed"
	StepCompleted     StepStatus = "completed"
	StepFailed        StepStatus = "failed"
)

// Terminal reports whether no further steps follow this status.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// ExecutionStep is one durably recorded transition of the agent loop.
// Steps are append-only except that the reasoning text of an in-flight
// thinking step grows in place as stream deltas arrive.
//
// ToolArguments holds the provider's argument JSON verbatim so that it
// serializes as an object on the wire without ever being rebuilt.
type ExecutionStep struct {
	ID               int64           `json:"id"`
	SessionID        string          `json:"session_id"`
	MessageID        int64           `json:"message_id"`
	UserID           int64           `json:"-"`
	Iteration        int             `json:"iteration"`
	Status           StepStatus      `json:"status"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolName         string          `json:"tool_name,omitempty"`
	ToolArguments    json.RawMessage `json:"tool_arguments,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	ToolResult       string          `json:"tool_result,omitempty"`
	ToolError        string          `json:"tool_error,omitempty"`
	Progress         float64         `json:"progress"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
