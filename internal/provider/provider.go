// Package provider wraps the reasoning chat model behind a streaming
// client built on the Eino framework.
package provider

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/websmith-ai/websmith/pkg/types"
)

// EventKind discriminates stream events.
type EventKind int

const (
	// KindReasoningDelta carries a new fragment of model thinking.
	KindReasoningDelta EventKind = iota
	// KindToolCalls signals the assistant turn ends with tool calls.
	KindToolCalls
	// KindDone signals the assistant turn ends with text only.
	KindDone
	// KindError signals the turn failed after the fallback was exhausted.
	KindError
)

// StreamEvent is one item of a provider stream.
type StreamEvent struct {
	Kind EventKind

	// Chunk is the new reasoning fragment (KindReasoningDelta only).
	Chunk string

	// Reasoning is the accumulated reasoning text so far.
	Reasoning string

	// Content is the accumulated assistant text so far.
	Content string

	// ToolCalls is the finalized call list (KindToolCalls only); the
	// arguments strings are kept exactly as the provider sent them.
	ToolCalls []types.ToolCall

	// Err is set on KindError.
	Err error
}

// Client is the streaming interface the agent loop drives.
type Client interface {
	// Stream sends one chat request and returns its event sequence.
	// The channel is closed after a KindToolCalls, KindDone, or
	// KindError event.
	Stream(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (<-chan StreamEvent, error)
}
