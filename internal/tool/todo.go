package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/pkg/types"
)

// TodoWriteTool replaces the session's task list snapshot.
type TodoWriteTool struct {
	store *store.Store
}

// NewTodoWriteTool creates the todo_write tool.
func NewTodoWriteTool(st *store.Store) *TodoWriteTool {
	return &TodoWriteTool{store: st}
}

func (t *TodoWriteTool) ID() string { return "todo_write" }

func (t *TodoWriteTool) Description() string {
	return "任务列表管理工具。用于记录和追踪任务进度。\n" +
		"每次调用会完全替换当前 session 的 todo 列表。\n" +
		"状态类型：pending（待处理）、in_progress（进行中）、completed（已完成）"
}

func (t *TodoWriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"description": "完整的任务列表",
				"items": {
					"type": "object",
					"properties": {
						"content": {
							"type": "string",
							"description": "任务描述（祈使句形式，如：创建 HTML 结构）"
						},
						"status": {
							"type": "string",
							"enum": ["pending", "in_progress", "completed"],
							"description": "任务状态"
						},
						"activeForm": {
							"type": "string",
							"description": "任务的进行时形式（如：正在创建 HTML 结构）"
						}
					},
					"required": ["content", "status", "activeForm"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

func (t *TodoWriteTool) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	var input struct {
		Todos []types.Todo `json:"todos"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "错误：todos 必须是数组", nil
	}

	if err := t.store.ReplaceTodos(ctx, tc.SessionID, input.Todos); err != nil {
		return fmt.Sprintf("错误：%v", err), nil
	}

	data, err := json.MarshalIndent(types.Summarize(input.Todos), "", "  ")
	if err != nil {
		return fmt.Sprintf("错误：%v", err), nil
	}
	return string(data), nil
}
