package provider

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/websmith-ai/websmith/pkg/types"
)

// accumulator folds streamed message chunks into the final assistant
// turn. Tool-call argument fragments arrive indexed and are appended
// per index; the joined strings are never re-stringified, so the echo
// stays byte-identical to what the provider emitted.
type accumulator struct {
	content   strings.Builder
	reasoning strings.Builder
	calls     []*callBuffer
	byIndex   map[int]*callBuffer
}

type callBuffer struct {
	id   string
	name string
	args strings.Builder
}

func newAccumulator() *accumulator {
	return &accumulator{byIndex: make(map[int]*callBuffer)}
}

// add folds one stream chunk in.
func (a *accumulator) add(msg *schema.Message) {
	a.content.WriteString(msg.Content)
	a.reasoning.WriteString(msg.ReasoningContent)

	for _, tc := range msg.ToolCalls {
		buf := a.buffer(tc.Index)
		if tc.ID != "" {
			buf.id = tc.ID
		}
		if tc.Function.Name != "" {
			buf.name = tc.Function.Name
		}
		buf.args.WriteString(tc.Function.Arguments)
	}
}

func (a *accumulator) buffer(index *int) *callBuffer {
	if index == nil {
		// Unindexed fragments extend the most recent call.
		if len(a.calls) == 0 {
			buf := &callBuffer{}
			a.calls = append(a.calls, buf)
		}
		return a.calls[len(a.calls)-1]
	}

	if buf, ok := a.byIndex[*index]; ok {
		return buf
	}
	buf := &callBuffer{}
	a.byIndex[*index] = buf
	a.calls = append(a.calls, buf)
	return buf
}

func (a *accumulator) hasToolCalls() bool {
	return len(a.calls) > 0
}

// toolCalls returns the finalized calls in arrival order.
func (a *accumulator) toolCalls() []types.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	out := make([]types.ToolCall, 0, len(a.calls))
	for _, buf := range a.calls {
		out = append(out, types.NewToolCall(buf.id, buf.name, buf.args.String()))
	}
	return out
}
