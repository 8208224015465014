package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/websmith-ai/websmith/internal/sandbox"
)

// WriteTool creates or overwrites one sandbox file.
type WriteTool struct {
	sandbox *sandbox.Service
}

// NewWriteTool creates the write tool.
func NewWriteTool(sb *sandbox.Service) *WriteTool {
	return &WriteTool{sandbox: sb}
}

func (t *WriteTool) ID() string { return "write" }

func (t *WriteTool) Description() string {
	return "创建新文件或完全覆盖现有文件。" +
		"注意：此操作会覆盖现有内容，请谨慎使用。建议先使用read工具查看现有内容。"
}

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filename": {
				"type": "string",
				"description": "文件名，例如：index.html, style.css, script.js"
			},
			"content": {
				"type": "string",
				"description": "文件的完整内容"
			}
		},
		"required": ["filename", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	var input struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid write arguments: %w", err)
	}

	err := t.sandbox.Write(tc.UserID, tc.SessionID, input.Filename, []byte(input.Content))
	switch {
	case errors.Is(err, sandbox.ErrInvalidName), errors.Is(err, sandbox.ErrQuotaExceeded):
		return fmt.Sprintf("错误：%v", err), nil
	case err != nil:
		return fmt.Sprintf("写入文件时出错：%v", err), nil
	}

	return fmt.Sprintf("成功写入文件 %s（大小：%d 字节）", input.Filename, len(input.Content)), nil
}
