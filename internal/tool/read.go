package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/websmith-ai/websmith/internal/sandbox"
)

// ReadTool reads one sandbox file.
type ReadTool struct {
	sandbox *sandbox.Service
}

// NewReadTool creates the read tool.
func NewReadTool(sb *sandbox.Service) *ReadTool {
	return &ReadTool{sandbox: sb}
}

func (t *ReadTool) ID() string { return "read" }

func (t *ReadTool) Description() string {
	return "读取沙箱中文件的内容。需要提供文件名。"
}

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filename": {
				"type": "string",
				"description": "要读取的文件名，例如：index.html, style.css"
			}
		},
		"required": ["filename"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	var input struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid read arguments: %w", err)
	}

	content, err := t.sandbox.Read(tc.UserID, tc.SessionID, input.Filename)
	switch {
	case errors.Is(err, sandbox.ErrFileNotFound):
		return fmt.Sprintf("错误：文件 %s 不存在。", input.Filename), nil
	case errors.Is(err, sandbox.ErrInvalidName):
		return fmt.Sprintf("错误：%v", err), nil
	case err != nil:
		return fmt.Sprintf("读取文件时出错：%v", err), nil
	}

	return fmt.Sprintf("文件 %s 的内容：\n\n%s", input.Filename, content), nil
}
