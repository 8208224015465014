package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/websmith-ai/websmith/internal/sandbox"
)

// allowedCommands is the bash allow-list. Every command appearing in
// the parsed script must be on it, including those behind pipes and
// separators.
var allowedCommands = map[string]bool{
	"ls":    true,
	"cat":   true,
	"head":  true,
	"tail":  true,
	"grep":  true,
	"find":  true,
	"mkdir": true,
	"rm":    true,
	"mv":    true,
	"cp":    true,
	"pwd":   true,
	"echo":  true,
}

// BashTool runs an allow-listed shell command pinned to the session
// sandbox directory.
type BashTool struct {
	sandbox *sandbox.Service
	timeout time.Duration
}

// NewBashTool creates the bash tool with the given execution deadline.
func NewBashTool(sb *sandbox.Service, timeout time.Duration) *BashTool {
	return &BashTool{sandbox: sb, timeout: timeout}
}

func (t *BashTool) ID() string { return "bash" }

func (t *BashTool) Description() string {
	return "执行bash命令（仅限沙箱内操作）。" +
		"支持的命令：ls（列出文件）, cat（查看文件）, grep（搜索）, " +
		"mkdir（创建目录）, rm（删除）, mv（移动）, cp（复制）等。"
}

func (t *BashTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "要执行的bash命令，例如：ls -la, cat index.html"
			}
		},
		"required": ["command"]
	}`)
}

func (t *BashTool) Execute(ctx context.Context, args json.RawMessage, tc *Context) (string, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid bash arguments: %w", err)
	}

	command := strings.TrimSpace(input.Command)
	if command == "" {
		return "错误：命令为空", nil
	}

	names, err := commandNames(command)
	if err != nil {
		return fmt.Sprintf("执行bash命令时出错：%v", err), nil
	}
	if len(names) == 0 {
		return "错误：命令为空", nil
	}
	for _, name := range names {
		if !allowedCommands[name] {
			return fmt.Sprintf("错误：不允许执行命令 '%s'。仅支持：%s", name, allowedList()), nil
		}
	}

	dir := t.sandbox.Dir(tc.UserID, tc.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Sprintf("执行bash命令时出错：%v", err), nil
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "bash", "-c", command)
	cmd.Dir = dir
	cmd.Env = []string{"PATH=" + os.Getenv("PATH"), "HOME=" + dir}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("错误：命令执行超时（>%d秒）", int(t.timeout.Seconds())), nil
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return fmt.Sprintf("命令执行失败（退出码: %d）\n%s", exitErr.ExitCode(), stderr.String()), nil
		}
		return fmt.Sprintf("执行bash命令时出错：%v", runErr), nil
	}

	if stdout.Len() == 0 {
		return "命令执行成功（无输出）", nil
	}
	return stdout.String(), nil
}

// commandNames parses the script and returns the name of every
// command it would run.
func commandNames(command string) ([]string, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var names []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			if name := wordToString(call.Args[0]); name != "" {
				names = append(names, name)
			}
		}
		return true
	})
	return names, nil
}

// wordToString flattens a parsed word to its literal text. Dynamic
// parts (expansions, substitutions) yield placeholders that fail the
// allow-list check.
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

func allowedList() string {
	names := make([]string, 0, len(allowedCommands))
	for name := range allowedCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
