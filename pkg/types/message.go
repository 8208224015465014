// Package types defines the shared data model for the websmith server.
package types

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// FunctionCall is the function portion of a provider tool call.
// Arguments is kept as the raw JSON string received from the provider;
// it is echoed back byte-identical on subsequent requests.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a provider-issued tool invocation embedded in an
// assistant message. The wire shape is fixed by the provider:
// {"id": "...", "type": "function", "function": {...}}.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// NewToolCall builds a tool call in provider echo shape.
func NewToolCall(id, name, arguments string) ToolCall {
	return ToolCall{
		ID:   id,
		Type: "function",
		Function: FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}

// Message is one entry in a session's chat history.
//
// ToolCallID is set only for role=tool and links the message to the
// assistant tool call it answers. ReasoningContent is stored verbatim
// for assistant messages because the provider requires it to be echoed
// alongside tool calls.
type Message struct {
	ID               int64      `json:"id"`
	SessionID        string     `json:"session_id"`
	Role             Role       `json:"role"`
	Content          string     `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID       string     `json:"tool_call_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
