package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// defaultCheckFiles maps each check type to the file it inspects when
// no filename is given.
var defaultCheckFiles = map[string]string{
	"html": "index.html",
	"css":  "style.css",
	"js":   "script.js",
}

// installHints tells the model how to get a missing linter.
var installHints = map[string]string{
	"html": "brew install tidy-html5 (macOS) 或 apt-get install tidy (Linux)",
	"css":  "npm install -g stylelint",
	"js":   "npm install -g eslint",
}

var checkerBinaries = map[string]string{
	"html": "tidy",
	"css":  "stylelint",
	"js":   "eslint",
}

// CheckTool lints sandbox files with tidy, stylelint, and eslint.
// Missing linters produce install hints rather than failures.
type CheckTool struct {
	sandboxDir func(userID int64, sessionID string) string
	lookPath   func(name string) (string, error)
}

// NewCheckTool creates the check tool. sandboxDir resolves a session's
// sandbox directory.
func NewCheckTool(sandboxDir func(userID int64, sessionID string) string) *CheckTool {
	return &CheckTool{sandboxDir: sandboxDir, lookPath: exec.LookPath}
}

func (t *CheckTool) ID() string { return "check" }

func (t *CheckTool) Description() string {
	return `检查代码质量。

支持以下检查类型：
- html: 检查HTML语法（使用 tidy）
- css: 检查CSS语法（使用 stylelint）
- js: 检查JavaScript语法（使用 eslint）

参数示例：
{"type": "html", "filename": "index.html"}
{"type": "css", "filename": "style.css"}
{"type": "js", "filename": "script.js"}
{"type": "all"}  # 检查所有默认文件

注意：如果检查工具未安装，会返回提示信息而不会报错
`
}

func (t *CheckTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {
				"type": "string",
				"enum": ["html", "css", "js", "all"],
				"description": "检查类型"
			},
			"filename": {
				"type": "string",
				"description": "文件名（当type为all时可选）"
			}
		},
		"required": ["type"]
	}`)
}

func (t *CheckTool) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	var input struct {
		Type     string `json:"type"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid check arguments: %w", err)
	}

	dir := t.sandboxDir(tc.UserID, tc.SessionID)

	if input.Type == "all" {
		return t.checkAll(ctx, dir, input.Filename), nil
	}

	if _, ok := checkerBinaries[input.Type]; !ok {
		return fmt.Sprintf("错误：不支持的检查类型 '%s'", input.Type), nil
	}
	if !t.available(input.Type) {
		return unavailableMessage(input.Type), nil
	}
	return t.runCheck(ctx, dir, input.Type, input.Filename), nil
}

func (t *CheckTool) checkAll(ctx context.Context, dir, filename string) string {
	var results []string
	for _, checkType := range []string{"html", "css", "js"} {
		if !t.available(checkType) {
			results = append(results,
				fmt.Sprintf("**%s检查**: 检查工具未安装，跳过此项检查", strings.ToUpper(checkType)))
			continue
		}
		name := filename
		if name == "" {
			name = defaultCheckFiles[checkType]
		}
		result := t.runCheck(ctx, dir, checkType, name)
		if result != "" {
			results = append(results,
				fmt.Sprintf("**%s检查**:\n%s", strings.ToUpper(checkType), result))
		}
	}
	if len(results) == 0 {
		return "没有可用的检查工具"
	}
	return strings.Join(results, "\n\n")
}

func (t *CheckTool) available(checkType string) bool {
	_, err := t.lookPath(checkerBinaries[checkType])
	return err == nil
}

func (t *CheckTool) runCheck(ctx context.Context, dir, checkType, filename string) string {
	if filename == "" {
		filename = defaultCheckFiles[checkType]
	}

	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Sprintf("⚠️ 文件不存在: %s", filename)
	}

	execCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch checkType {
	case "html":
		_, stderr, code := run(execCtx, "tidy", "-q", "-e", path)
		// tidy exits 1 for warnings on an otherwise parseable file.
		if code == 0 || code == 1 {
			if stderr == "" {
				return "✅ HTML检查通过，无语法错误"
			}
			return fmt.Sprintf("⚠️ HTML发现问题:\n%s", stderr)
		}
		return fmt.Sprintf("❌ HTML检查失败:\n%s", stderr)

	case "css":
		stdout, _, code := run(execCtx, "stylelint", path)
		if code == 0 {
			return "✅ CSS检查通过"
		}
		return fmt.Sprintf("⚠️ CSS发现问题:\n%s", stdout)

	case "js":
		stdout, _, code := run(execCtx, "eslint", path)
		if code == 0 {
			return "✅ JavaScript检查通过"
		}
		return fmt.Sprintf("⚠️ JavaScript发现问题:\n%s", stdout)
	}
	return ""
}

func run(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int) {
	cmd := exec.CommandContext(ctx, name, args...)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	err := cmd.Run()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	return out.String(), errOut.String(), code
}

func unavailableMessage(checkType string) string {
	return fmt.Sprintf("%s检查工具未安装。\n如需使用此功能，请先安装：\n- %s",
		strings.ToUpper(checkType), installHints[checkType])
}
