// Package agent drives the iterative think-act loop: it streams the
// reasoning model, dispatches tool calls against the sandbox, records
// every transition as a durable execution step, and feeds live events
// to the session's stream. A step is always persisted before its
// event is emitted.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/websmith-ai/websmith/internal/event"
	"github.com/websmith-ai/websmith/internal/logging"
	"github.com/websmith-ai/websmith/internal/prompt"
	"github.com/websmith-ai/websmith/internal/provider"
	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/internal/tool"
	"github.com/websmith-ai/websmith/pkg/types"
)

const resultPreviewLen = 1000

// Config bounds one turn of the loop.
type Config struct {
	MaxIterations int
	ToolTimeout   time.Duration
}

// Loop executes agent turns.
type Loop struct {
	store     *store.Store
	registry  *tool.Registry
	assembler *prompt.Assembler
	client    provider.Client
	hub       *event.Hub
	cfg       Config
}

// New creates a loop over the given collaborators.
func New(st *store.Store, reg *tool.Registry, asm *prompt.Assembler, client provider.Client, hub *event.Hub, cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}
	return &Loop{store: st, registry: reg, assembler: asm, client: client, hub: hub, cfg: cfg}
}

// Run executes one turn against the already-persisted user message and
// the empty assistant row. It is launched as a background goroutine by
// the create-message handler; the ctx must therefore outlive the
// request.
func (l *Loop) Run(ctx context.Context, sess *types.Session, assistant *types.Message) {
	l.hub.Acquire(sess.ID)
	defer l.hub.Release(sess.ID)

	if err := l.runTurn(ctx, sess, assistant); err != nil {
		logging.Error().Err(err).
			Str("session_id", sess.ID).
			Int64("message_id", assistant.ID).
			Msg("agent turn failed")

		assistant.Content = fmt.Sprintf("AI服务出错：%v", err)
		if ferr := l.store.FinalizeAssistantMessage(ctx, assistant); ferr != nil {
			logging.Error().Err(ferr).Msg("failed to finalize error message")
		}

		// The step record must not end on a non-terminal status. The
		// failed step is persisted first; the error event then closes
		// the stream, so the step itself is not published.
		failed := l.newStep(sess, assistant, 1)
		if last, serr := l.store.LatestStep(ctx, assistant.ID); serr == nil {
			failed.Iteration = last.Iteration
		}
		failed.Status = types.StepFailed
		failed.ToolError = err.Error()
		failed.Progress = 100
		if aerr := l.store.AppendStep(ctx, failed); aerr != nil {
			logging.Error().Err(aerr).Msg("failed to append failure step")
		}

		l.hub.Publish(sess.ID, event.Event{Type: event.TypeError, Data: map[string]any{"error": err.Error()}})
		return
	}

	if err := l.store.TouchSession(ctx, sess.ID); err != nil {
		logging.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to touch session")
	}
	l.hub.Publish(sess.ID, event.Event{Type: event.TypeDone, Data: map[string]any{"done": true}})
}

func (l *Loop) runTurn(ctx context.Context, sess *types.Session, assistant *types.Message) error {
	msgs, err := l.assembler.Assemble(ctx, sess.ID, sess.UserID, assistant.ID)
	if err != nil {
		return err
	}
	tools := l.registry.ToolInfos()

	var (
		contentBuf     strings.Builder
		finalReasoning string
		finalToolCalls []types.ToolCall
		iteration      int
	)

	for i := 1; i <= l.cfg.MaxIterations; i++ {
		iteration = i

		thinking := l.newStep(sess, assistant, i)
		thinking.Status = types.StepThinking
		thinking.Progress = thinkingProgress(i)
		if err := l.appendAndPublish(ctx, sess.ID, event.TypeThinking, thinking); err != nil {
			return err
		}

		events, err := l.client.Stream(ctx, msgs, tools)
		if err != nil {
			return err
		}

		var (
			content   string
			reasoning string
			toolCalls []types.ToolCall
			streamErr error
		)
		for ev := range events {
			switch ev.Kind {
			case provider.KindReasoningDelta:
				thinking.ReasoningContent = ev.Reasoning
				thinking.Progress = reasoningProgress(i)
				if err := l.store.UpdateStepReasoning(ctx, thinking.ID, ev.Reasoning, thinking.Progress); err != nil {
					return err
				}
				snapshot := *thinking
				l.hub.Publish(sess.ID, event.Event{Type: event.TypeThinkingDelta, Data: &snapshot})

			case provider.KindToolCalls:
				content, reasoning, toolCalls = ev.Content, ev.Reasoning, ev.ToolCalls

			case provider.KindDone:
				content, reasoning = ev.Content, ev.Reasoning

			case provider.KindError:
				streamErr = ev.Err
			}
		}
		if streamErr != nil {
			return streamErr
		}

		if reasoning != "" {
			finalReasoning = reasoning
		}
		if len(toolCalls) > 0 {
			finalToolCalls = toolCalls
		}
		contentBuf.WriteString(content)

		// Echo message for the next request. The provider rejects
		// assistant tool calls without a reasoning field, so it is set
		// even when empty.
		echo := &schema.Message{Role: schema.Assistant, Content: content}
		if len(toolCalls) > 0 {
			echo.ReasoningContent = reasoning
			for _, tc := range toolCalls {
				echo.ToolCalls = append(echo.ToolCalls, schema.ToolCall{
					ID:   tc.ID,
					Type: tc.Type,
					Function: schema.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
		}
		msgs = append(msgs, echo)

		if len(toolCalls) == 0 {
			break
		}

		for _, call := range toolCalls {
			toolMsg, err := l.executeCall(ctx, sess, assistant, i, call)
			if err != nil {
				return err
			}
			msgs = append(msgs, toolMsg)
		}
	}

	completed := l.newStep(sess, assistant, iteration)
	completed.Status = types.StepCompleted
	completed.Progress = 100
	if err := l.appendAndPublish(ctx, sess.ID, event.TypeCompleted, completed); err != nil {
		return err
	}

	assistant.Content = contentBuf.String()
	assistant.ReasoningContent = finalReasoning
	assistant.ToolCalls = finalToolCalls
	return l.store.FinalizeAssistantMessage(ctx, assistant)
}

// executeCall runs one tool call through its step transitions and
// returns the provider-format tool message for the next request.
func (l *Loop) executeCall(ctx context.Context, sess *types.Session, assistant *types.Message, iteration int, call types.ToolCall) (*schema.Message, error) {
	name := call.Function.Name
	args := json.RawMessage(call.Function.Arguments)

	calling := l.newStep(sess, assistant, iteration)
	calling.Status = types.StepToolCalling
	calling.ToolName = name
	calling.ToolArguments = args
	calling.ToolCallID = call.ID
	calling.Progress = toolCallingProgress(iteration)
	if err := l.appendAndPublish(ctx, sess.ID, event.TypeToolCalling, calling); err != nil {
		return nil, err
	}

	executing := l.newStep(sess, assistant, iteration)
	executing.Status = types.StepToolExecuting
	executing.ToolName = name
	executing.ToolArguments = args
	executing.ToolCallID = call.ID
	executing.Progress = toolExecutingProgress(iteration)
	if err := l.appendAndPublish(ctx, sess.ID, event.TypeToolExecuting, executing); err != nil {
		return nil, err
	}

	result, execErr := l.dispatch(ctx, sess, name, args)
	if execErr != nil {
		errMsg := fmt.Sprintf("工具 %s 执行失败: %v", name, execErr)
		logging.Error().Str("tool", name).Err(execErr).Msg("tool execution failed")

		failed := l.newStep(sess, assistant, iteration)
		failed.Status = types.StepFailed
		failed.ToolName = name
		failed.ToolArguments = args
		failed.ToolCallID = call.ID
		failed.ToolError = errMsg
		failed.Progress = toolCompletedProgress(iteration)
		if err := l.appendAndPublish(ctx, sess.ID, event.TypeFailed, failed); err != nil {
			return nil, err
		}

		// The model is told about the failure and gets to recover.
		if err := l.persistToolMessage(ctx, sess.ID, call.ID, errMsg); err != nil {
			return nil, err
		}
		return &schema.Message{Role: schema.Tool, Content: errMsg, ToolCallID: call.ID}, nil
	}

	done := l.newStep(sess, assistant, iteration)
	done.Status = types.StepToolCompleted
	done.ToolName = name
	done.ToolArguments = args
	done.ToolCallID = call.ID
	done.ToolResult = truncateResult(result)
	done.Progress = toolCompletedProgress(iteration)
	if err := l.appendAndPublish(ctx, sess.ID, event.TypeToolCompleted, done); err != nil {
		return nil, err
	}

	if err := l.persistToolMessage(ctx, sess.ID, call.ID, result); err != nil {
		return nil, err
	}

	switch name {
	case "todo_write":
		var summary types.TodoSummary
		if err := json.Unmarshal([]byte(result), &summary); err == nil {
			l.hub.Publish(sess.ID, event.Event{Type: event.TypeTodosUpdate, Data: summary})
		}
	case "write":
		l.noteFileChange(ctx, sess.ID, args, result)
	}

	return &schema.Message{Role: schema.Tool, Content: result, ToolCallID: call.ID}, nil
}

func (l *Loop) dispatch(ctx context.Context, sess *types.Session, name string, args json.RawMessage) (string, error) {
	t, ok := l.registry.Get(name)
	if !ok {
		return "", fmt.Errorf("未知工具: %s", name)
	}

	execCtx, cancel := context.WithTimeout(ctx, l.cfg.ToolTimeout)
	defer cancel()

	return t.Execute(execCtx, args, &tool.Context{UserID: sess.UserID, SessionID: sess.ID})
}

// noteFileChange records a system note after a successful write so
// later prompts can list what changed.
func (l *Loop) noteFileChange(ctx context.Context, sessionID string, args json.RawMessage, result string) {
	if !strings.HasPrefix(result, "成功写入文件") {
		return
	}
	var input struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(args, &input); err != nil || input.Filename == "" {
		return
	}

	note := &types.Message{
		SessionID: sessionID,
		Role:      types.RoleSystem,
		Content:   fmt.Sprintf("✅ 已更新文件: %s", input.Filename),
	}
	if err := l.store.CreateMessage(ctx, note); err != nil {
		logging.Warn().Err(err).Msg("failed to record file-change note")
	}
}

func (l *Loop) persistToolMessage(ctx context.Context, sessionID, callID, content string) error {
	msg := &types.Message{
		SessionID:  sessionID,
		Role:       types.RoleTool,
		Content:    content,
		ToolCallID: callID,
	}
	return l.store.CreateMessage(ctx, msg)
}

func (l *Loop) newStep(sess *types.Session, assistant *types.Message, iteration int) *types.ExecutionStep {
	return &types.ExecutionStep{
		SessionID: sess.ID,
		MessageID: assistant.ID,
		UserID:    sess.UserID,
		Iteration: iteration,
	}
}

func (l *Loop) appendAndPublish(ctx context.Context, sessionID string, t event.Type, step *types.ExecutionStep) error {
	if err := l.store.AppendStep(ctx, step); err != nil {
		return err
	}
	// The loop keeps mutating the thinking step on later deltas while
	// the stream marshals the event, so each event carries its own copy.
	snapshot := *step
	l.hub.Publish(sessionID, event.Event{Type: t, Data: &snapshot})
	return nil
}

func truncateResult(s string) string {
	runes := []rune(s)
	if len(runes) <= resultPreviewLen {
		return s
	}
	return string(runes[:resultPreviewLen])
}
