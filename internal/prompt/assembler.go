package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/websmith-ai/websmith/internal/sandbox"
	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/pkg/types"
)

const (
	noteTrimLen       = 150
	recentNotes       = 3
	recentCompleted   = 5
	defaultMaxHistory = 20
)

// Config controls history truncation and input capping.
type Config struct {
	MaxHistory        int
	EnableTruncation  bool
	MaxUserInput      int
	TruncationWarning string
}

// SessionContext is the live session state injected into each user
// message.
type SessionContext struct {
	Files          []string
	PendingTodos   []types.Todo
	CompletedTodos []types.Todo
	SystemNotes    []string
}

// Assembler builds the message array sent to the provider.
type Assembler struct {
	store   *store.Store
	sandbox *sandbox.Service
	cfg     Config
}

// New creates an assembler over the given stores.
func New(st *store.Store, sb *sandbox.Service, cfg Config) *Assembler {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	return &Assembler{store: st, sandbox: sb, cfg: cfg}
}

// Assemble gathers the session's stored history and live state and
// returns the ordered provider message array. excludeID skips the
// in-flight assistant row that was created empty to anchor execution
// steps; pass 0 to include everything.
func (a *Assembler) Assemble(ctx context.Context, sessionID string, userID int64, excludeID int64) ([]*schema.Message, error) {
	history, err := a.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	if excludeID != 0 {
		kept := history[:0]
		for _, msg := range history {
			if msg.ID != excludeID {
				kept = append(kept, msg)
			}
		}
		history = kept
	}

	sc, err := a.gatherContext(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	return Build(history, sc, a.cfg), nil
}

func (a *Assembler) gatherContext(ctx context.Context, sessionID string, userID int64) (*SessionContext, error) {
	sc := &SessionContext{}

	files, err := a.sandbox.List(userID, sessionID)
	if err == nil {
		sc.Files = files
	}

	if sc.PendingTodos, err = a.store.PendingTodos(ctx, sessionID); err != nil {
		return nil, err
	}
	if sc.CompletedTodos, err = a.store.RecentCompletedTodos(ctx, sessionID, recentCompleted); err != nil {
		return nil, err
	}

	notes, err := a.store.RecentSystemMessages(ctx, sessionID, recentNotes)
	if err != nil {
		return nil, err
	}
	for _, note := range notes {
		sc.SystemNotes = append(sc.SystemNotes, note.Content)
	}

	return sc, nil
}

// Build is the pure assembly transformation: stored history plus live
// session state in, provider message array out.
func Build(history []*types.Message, sc *SessionContext, cfg Config) []*schema.Message {
	if cfg.EnableTruncation {
		history = truncate(history, cfg.MaxHistory)
	}

	out := make([]*schema.Message, 0, len(history)+1)
	out = append(out, &schema.Message{Role: schema.System, Content: SystemPrompt})

	for _, msg := range history {
		out = append(out, convert(msg, sc))
	}
	return out
}

func convert(msg *types.Message, sc *SessionContext) *schema.Message {
	switch msg.Role {
	case types.RoleUser:
		return &schema.Message{Role: schema.User, Content: ContextualPrompt(sc, msg.Content)}

	case types.RoleAssistant:
		m := &schema.Message{
			Role:    schema.Assistant,
			Content: msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, schema.ToolCall{
					ID:   tc.ID,
					Type: tc.Type,
					Function: schema.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			// Assistant messages carrying tool calls must echo the
			// reasoning text, empty string included.
			m.ReasoningContent = msg.ReasoningContent
		}
		return m

	case types.RoleTool:
		return &schema.Message{Role: schema.Tool, Content: msg.Content, ToolCallID: msg.ToolCallID}

	default:
		return &schema.Message{Role: schema.System, Content: msg.Content}
	}
}

// truncate keeps the first user message, every system message, the
// newest limit assistants, and the tool messages paired to those
// assistants. Relative order is preserved.
func truncate(history []*types.Message, limit int) []*types.Message {
	var assistantIdx []int
	for i, msg := range history {
		if msg.Role == types.RoleAssistant {
			assistantIdx = append(assistantIdx, i)
		}
	}

	keptAssistants := make(map[int]bool)
	keptToolCallIDs := make(map[string]bool)
	start := 0
	if len(assistantIdx) > limit {
		start = len(assistantIdx) - limit
	}
	for _, i := range assistantIdx[start:] {
		keptAssistants[i] = true
		for _, tc := range history[i].ToolCalls {
			keptToolCallIDs[tc.ID] = true
		}
	}

	firstUserSeen := false
	var kept []*types.Message
	for i, msg := range history {
		switch msg.Role {
		case types.RoleSystem:
			kept = append(kept, msg)
		case types.RoleUser:
			if !firstUserSeen {
				kept = append(kept, msg)
				firstUserSeen = true
			}
		case types.RoleAssistant:
			if keptAssistants[i] {
				kept = append(kept, msg)
			}
		case types.RoleTool:
			if keptToolCallIDs[msg.ToolCallID] {
				kept = append(kept, msg)
			}
		}
	}
	return kept
}

// ContextualPrompt wraps the user's text with the session's current
// state: sandbox listing, task list, and recent file-change notes.
func ContextualPrompt(sc *SessionContext, userMessage string) string {
	var parts []string

	if len(sc.Files) > 0 {
		parts = append(parts, "## 当前沙箱文件")
		for _, name := range sc.Files {
			parts = append(parts, "- "+name)
		}
		parts = append(parts, "")
	}

	if len(sc.PendingTodos) > 0 {
		parts = append(parts, fmt.Sprintf("## 待办任务（%d项）", len(sc.PendingTodos)))
		for i, todo := range sc.PendingTodos {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, todo.Content))
		}
		parts = append(parts, "")
	}

	if len(sc.CompletedTodos) > 0 {
		parts = append(parts, "## 已完成任务（最近5项）")
		for i, todo := range sc.CompletedTodos {
			parts = append(parts, fmt.Sprintf("%d. %s ✓", i+1, todo.Content))
		}
		parts = append(parts, "")
	}

	if len(sc.SystemNotes) > 0 {
		parts = append(parts, "## 最近操作")
		for _, note := range sc.SystemNotes {
			trimmed := note
			if len([]rune(trimmed)) > noteTrimLen {
				trimmed = string([]rune(trimmed)[:noteTrimLen]) + "..."
			}
			parts = append(parts, "- "+trimmed)
		}
		parts = append(parts, "")
	}

	parts = append(parts, "## 用户消息", userMessage)
	return strings.Join(parts, "\n")
}

// CapUserInput enforces the input-length limit on a fresh user
// message, appending the truncation marker when it cuts.
func CapUserInput(text string, cfg Config) string {
	if cfg.MaxUserInput <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= cfg.MaxUserInput {
		return text
	}
	return string(runes[:cfg.MaxUserInput]) + cfg.TruncationWarning
}
