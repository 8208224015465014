package agent_test

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/websmith-ai/websmith/internal/agent"
	"github.com/websmith-ai/websmith/internal/event"
	"github.com/websmith-ai/websmith/internal/prompt"
	"github.com/websmith-ai/websmith/internal/provider"
	"github.com/websmith-ai/websmith/internal/sandbox"
	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/internal/tool"
	"github.com/websmith-ai/websmith/pkg/types"
)

// scriptedClient replays one event sequence per Stream call.
type scriptedClient struct {
	turns [][]provider.StreamEvent
	calls int

	// requests records every message array sent, for echo assertions.
	requests [][]*schema.Message
}

func (c *scriptedClient) Stream(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (<-chan provider.StreamEvent, error) {
	c.requests = append(c.requests, messages)
	if c.calls >= len(c.turns) {
		return nil, fmt.Errorf("unexpected provider call %d", c.calls+1)
	}
	turn := c.turns[c.calls]
	c.calls++

	ch := make(chan provider.StreamEvent, len(turn))
	for _, ev := range turn {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

var _ = Describe("Loop", func() {
	var (
		st        *store.Store
		sb        *sandbox.Service
		hub       *event.Hub
		sess      *types.Session
		assistant *types.Message
		queue     *event.Queue
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		st, err = store.Open(":memory:")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { st.Close() })

		sb = sandbox.New(GinkgoT().TempDir(), 1<<20, 100<<20)
		hub = event.NewHub(100)
		DeferCleanup(func() { hub.Close() })

		user := &types.User{Username: "dev"}
		Expect(st.CreateUser(ctx, user)).To(Succeed())

		sess = &types.Session{ID: "sess-1", UserID: user.ID, Title: "todo list"}
		Expect(st.CreateSession(ctx, sess)).To(Succeed())

		userMsg := &types.Message{SessionID: sess.ID, Role: types.RoleUser, Content: "做一个 Todo List"}
		Expect(st.CreateMessage(ctx, userMsg)).To(Succeed())

		assistant = &types.Message{SessionID: sess.ID, Role: types.RoleAssistant}
		Expect(st.CreateMessage(ctx, assistant)).To(Succeed())

		queue = hub.Acquire(sess.ID)
		DeferCleanup(func() { hub.Release(sess.ID) })
	})

	newLoop := func(client provider.Client) *agent.Loop {
		reg := tool.NewRegistry()
		reg.Register(tool.NewListTool(sb))
		reg.Register(tool.NewReadTool(sb))
		reg.Register(tool.NewWriteTool(sb))
		reg.Register(tool.NewBashTool(sb, 30*time.Second))
		reg.Register(tool.NewTodoWriteTool(st))

		asm := prompt.New(st, sb, prompt.Config{
			MaxHistory:        20,
			EnableTruncation:  true,
			MaxUserInput:      1000,
			TruncationWarning: "...(消息已截取)",
		})

		return agent.New(st, reg, asm, client, hub, agent.Config{
			MaxIterations: 10,
			ToolTimeout:   30 * time.Second,
		})
	}

	drainEvents := func() []event.Event {
		var events []event.Event
		for {
			select {
			case ev := <-queue.Events():
				events = append(events, ev)
			default:
				return events
			}
		}
	}

	eventTypes := func(events []event.Event) []event.Type {
		out := make([]event.Type, len(events))
		for i, ev := range events {
			out[i] = ev.Type
		}
		return out
	}

	Describe("a single-file creation turn", func() {
		writeArgs := `{"filename":"index.html","content":"<input id=\"new-todo\"><ul id=\"list\"></ul>"}`

		BeforeEach(func() {
			client := &scriptedClient{turns: [][]provider.StreamEvent{
				{
					{Kind: provider.KindReasoningDelta, Chunk: "用户需要", Reasoning: "用户需要"},
					{Kind: provider.KindReasoningDelta, Chunk: "一个任务列表", Reasoning: "用户需要一个任务列表"},
					{
						Kind:      provider.KindToolCalls,
						Reasoning: "用户需要一个任务列表",
						ToolCalls: []types.ToolCall{types.NewToolCall("call_1", "write", writeArgs)},
					},
				},
				{
					{Kind: provider.KindDone, Content: "好的，Todo List 已创建。", Reasoning: ""},
				},
			}}
			newLoop(client).Run(ctx, sess, assistant)
		})

		It("writes the file into the sandbox", func() {
			data, err := sb.Read(sess.UserID, sess.ID, "index.html")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("<input"))
		})

		It("persists the step sequence in order", func() {
			steps, err := st.ListSteps(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())

			var statuses []types.StepStatus
			for _, s := range steps {
				statuses = append(statuses, s.Status)
			}
			Expect(statuses).To(Equal([]types.StepStatus{
				types.StepThinking,
				types.StepToolCalling,
				types.StepToolExecuting,
				types.StepToolCompleted,
				types.StepThinking,
				types.StepCompleted,
			}))
		})

		It("grows the thinking step's reasoning in place", func() {
			steps, err := st.ListSteps(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps[0].ReasoningContent).To(Equal("用户需要一个任务列表"))
		})

		It("finishes with progress 100 and a non-empty assistant message", func() {
			steps, err := st.ListSteps(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())
			final := steps[len(steps)-1]
			Expect(final.Status).To(Equal(types.StepCompleted))
			Expect(final.Progress).To(Equal(100.0))

			msg, err := st.GetMessage(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Content).To(ContainSubstring("Todo List"))
			Expect(msg.ToolCalls).To(HaveLen(1))
			Expect(msg.ToolCalls[0].Function.Arguments).To(Equal(writeArgs))
		})

		It("stores the full tool result as a tool message", func() {
			msgs, err := st.ListMessages(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())

			var toolMsgs []*types.Message
			for _, m := range msgs {
				if m.Role == types.RoleTool {
					toolMsgs = append(toolMsgs, m)
				}
			}
			Expect(toolMsgs).To(HaveLen(1))
			Expect(toolMsgs[0].ToolCallID).To(Equal("call_1"))
			Expect(toolMsgs[0].Content).To(ContainSubstring("成功写入文件 index.html"))
		})

		It("records a file-change system note", func() {
			notes, err := st.RecentSystemMessages(ctx, sess.ID, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Content).To(Equal("✅ 已更新文件: index.html"))
		})

		It("publishes a distinct snapshot per thinking delta", func() {
			events := drainEvents()

			var deltas []*types.ExecutionStep
			for _, ev := range events {
				if ev.Type == event.TypeThinkingDelta {
					step, ok := ev.Data.(*types.ExecutionStep)
					Expect(ok).To(BeTrue())
					deltas = append(deltas, step)
				}
			}
			Expect(deltas).To(HaveLen(2))
			Expect(deltas[0].ReasoningContent).To(Equal("用户需要"))
			Expect(deltas[1].ReasoningContent).To(Equal("用户需要一个任务列表"))
		})

		It("ends the stream with a done event", func() {
			events := drainEvents()
			kinds := eventTypes(events)
			Expect(kinds[0]).To(Equal(event.TypeThinking))
			Expect(kinds).To(ContainElement(event.TypeThinkingDelta))
			Expect(kinds).To(ContainElement(event.TypeToolCompleted))
			Expect(kinds[len(kinds)-1]).To(Equal(event.TypeDone))
		})
	})

	Describe("a text-only turn", func() {
		BeforeEach(func() {
			client := &scriptedClient{turns: [][]provider.StreamEvent{
				{{Kind: provider.KindDone, Content: "你好！需要我帮你做什么网页？"}},
			}}
			newLoop(client).Run(ctx, sess, assistant)
		})

		It("completes in one iteration", func() {
			steps, err := st.ListSteps(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(HaveLen(2))
			Expect(steps[0].Status).To(Equal(types.StepThinking))
			Expect(steps[1].Status).To(Equal(types.StepCompleted))
		})

		It("touches the session timestamp", func() {
			got, err := st.GetSession(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UpdatedAt).NotTo(BeZero())
		})
	})

	Describe("a failing tool call", func() {
		BeforeEach(func() {
			client := &scriptedClient{turns: [][]provider.StreamEvent{
				{{
					Kind:      provider.KindToolCalls,
					ToolCalls: []types.ToolCall{types.NewToolCall("call_x", "glob", `{"pattern":"*.html"}`)},
				}},
				{{Kind: provider.KindDone, Content: "工具不可用，我换个方式。"}},
			}}
			newLoop(client).Run(ctx, sess, assistant)
		})

		It("records a failed step and keeps going", func() {
			steps, err := st.ListSteps(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())

			var failed *types.ExecutionStep
			for _, s := range steps {
				if s.Status == types.StepFailed {
					failed = s
				}
			}
			Expect(failed).NotTo(BeNil())
			Expect(failed.ToolError).To(ContainSubstring("工具 glob 执行失败"))

			Expect(steps[len(steps)-1].Status).To(Equal(types.StepCompleted))
		})

		It("feeds the error back to the model as a tool message", func() {
			Expect(len(drainEvents())).To(BeNumerically(">", 0))

			msgs, err := st.ListMessages(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			var toolMsg *types.Message
			for _, m := range msgs {
				if m.Role == types.RoleTool {
					toolMsg = m
				}
			}
			Expect(toolMsg).NotTo(BeNil())
			Expect(toolMsg.Content).To(ContainSubstring("执行失败"))
		})
	})

	Describe("a todo_write call", func() {
		BeforeEach(func() {
			todoArgs := `{"todos":[{"content":"创建页面","status":"in_progress","activeForm":"正在创建页面"}]}`
			client := &scriptedClient{turns: [][]provider.StreamEvent{
				{{
					Kind:      provider.KindToolCalls,
					ToolCalls: []types.ToolCall{types.NewToolCall("call_t", "todo_write", todoArgs)},
				}},
				{{Kind: provider.KindDone, Content: "任务已记录。"}},
			}}
			newLoop(client).Run(ctx, sess, assistant)
		})

		It("emits a todos_update event with the counts", func() {
			events := drainEvents()

			var update *event.Event
			for i := range events {
				if events[i].Type == event.TypeTodosUpdate {
					update = &events[i]
				}
			}
			Expect(update).NotTo(BeNil())

			summary, ok := update.Data.(types.TodoSummary)
			Expect(ok).To(BeTrue())
			Expect(summary.Total).To(Equal(1))
			Expect(summary.InProgress).To(Equal(1))
		})
	})

	Describe("echo invariants across iterations", func() {
		writeArgs := `{"filename":"style.css","content":"body{}"}`
		var client *scriptedClient

		BeforeEach(func() {
			client = &scriptedClient{turns: [][]provider.StreamEvent{
				{{
					Kind:      provider.KindToolCalls,
					Reasoning: "写样式",
					ToolCalls: []types.ToolCall{types.NewToolCall("call_css", "write", writeArgs)},
				}},
				{{Kind: provider.KindDone, Content: "样式已更新。"}},
			}}
			newLoop(client).Run(ctx, sess, assistant)
		})

		It("echoes the assistant tool call verbatim with its reasoning", func() {
			Expect(client.requests).To(HaveLen(2))

			var echo *schema.Message
			for _, m := range client.requests[1] {
				if m.Role == schema.Assistant && len(m.ToolCalls) > 0 {
					echo = m
				}
			}
			Expect(echo).NotTo(BeNil())
			Expect(echo.ToolCalls[0].Function.Arguments).To(Equal(writeArgs))
			Expect(echo.ToolCalls[0].Type).To(Equal("function"))
			Expect(echo.ReasoningContent).To(Equal("写样式"))
		})

		It("follows the echo with the matching tool message", func() {
			req := client.requests[1]
			last := req[len(req)-1]
			Expect(last.Role).To(Equal(schema.Tool))
			Expect(last.ToolCallID).To(Equal("call_css"))
			Expect(last.Content).To(ContainSubstring("成功写入文件 style.css"))
		})
	})

	Describe("a provider failure", func() {
		BeforeEach(func() {
			client := &scriptedClient{turns: [][]provider.StreamEvent{
				{{Kind: provider.KindError, Err: fmt.Errorf("connection reset")}},
			}}
			newLoop(client).Run(ctx, sess, assistant)
		})

		It("finalizes the assistant message with the error body", func() {
			msg, err := st.GetMessage(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Content).To(HavePrefix("AI服务出错："))
		})

		It("closes the step record with a failed step", func() {
			steps, err := st.ListSteps(ctx, sess.ID, assistant.ID)
			Expect(err).NotTo(HaveOccurred())

			last := steps[len(steps)-1]
			Expect(last.Status).To(Equal(types.StepFailed))
			Expect(last.Progress).To(Equal(100.0))
			Expect(last.ToolError).To(ContainSubstring("connection reset"))
			Expect(last.Iteration).To(Equal(1))
		})

		It("ends the stream with an error event", func() {
			events := drainEvents()
			Expect(events[len(events)-1].Type).To(Equal(event.TypeError))
		})
	})
})
