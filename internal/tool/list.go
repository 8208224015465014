package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/websmith-ai/websmith/internal/sandbox"
)

// ListTool lists the files in the session sandbox.
type ListTool struct {
	sandbox *sandbox.Service
}

// NewListTool creates the list tool.
func NewListTool(sb *sandbox.Service) *ListTool {
	return &ListTool{sandbox: sb}
}

func (t *ListTool) ID() string { return "list" }

func (t *ListTool) Description() string {
	return "列出沙箱中的所有文件。无需参数。"
}

func (t *ListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {},
		"required": []
	}`)
}

func (t *ListTool) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	files, err := t.sandbox.List(tc.UserID, tc.SessionID)
	if err != nil {
		return fmt.Sprintf("列出文件时出错：%v", err), nil
	}
	if len(files) == 0 {
		return "沙箱为空，没有文件。", nil
	}

	var sb strings.Builder
	sb.WriteString("沙箱文件列表：\n")
	for _, name := range files {
		sb.WriteString("- ")
		sb.WriteString(name)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
