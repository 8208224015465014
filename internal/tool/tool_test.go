package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websmith-ai/websmith/internal/sandbox"
	"github.com/websmith-ai/websmith/internal/store"
	"github.com/websmith-ai/websmith/pkg/types"
)

func testSandbox(t *testing.T) *sandbox.Service {
	t.Helper()
	return sandbox.New(t.TempDir(), 1<<20, 100<<20)
}

func testContext() *Context {
	return &Context{UserID: 1, SessionID: "sess-1"}
}

func TestListToolEmptySandbox(t *testing.T) {
	lt := NewListTool(testSandbox(t))

	out, err := lt.Execute(context.Background(), json.RawMessage(`{}`), testContext())
	require.NoError(t, err)
	assert.Equal(t, "沙箱为空，没有文件。", out)
}

func TestWriteThenReadThenList(t *testing.T) {
	sb := testSandbox(t)
	tc := testContext()
	ctx := context.Background()

	wt := NewWriteTool(sb)
	out, err := wt.Execute(ctx, json.RawMessage(`{"filename":"index.html","content":"<h1>hi</h1>"}`), tc)
	require.NoError(t, err)
	assert.Contains(t, out, "成功写入文件 index.html")

	rt := NewReadTool(sb)
	out, err = rt.Execute(ctx, json.RawMessage(`{"filename":"index.html"}`), tc)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>hi</h1>")

	lt := NewListTool(sb)
	out, err = lt.Execute(ctx, json.RawMessage(`{}`), tc)
	require.NoError(t, err)
	assert.Contains(t, out, "- index.html")
}

func TestReadToolMissingFile(t *testing.T) {
	rt := NewReadTool(testSandbox(t))

	out, err := rt.Execute(context.Background(), json.RawMessage(`{"filename":"nope.html"}`), testContext())
	require.NoError(t, err)
	assert.Equal(t, "错误：文件 nope.html 不存在。", out)
}

func TestWriteToolInvalidName(t *testing.T) {
	wt := NewWriteTool(testSandbox(t))

	out, err := wt.Execute(context.Background(), json.RawMessage(`{"filename":"../escape","content":"x"}`), testContext())
	require.NoError(t, err)
	assert.Contains(t, out, "错误：")
}

func TestBashToolEcho(t *testing.T) {
	bt := NewBashTool(testSandbox(t), 30*time.Second)

	out, err := bt.Execute(context.Background(), json.RawMessage(`{"command":"echo hello"}`), testContext())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestBashToolRejectsDisallowedCommand(t *testing.T) {
	bt := NewBashTool(testSandbox(t), 30*time.Second)

	out, err := bt.Execute(context.Background(), json.RawMessage(`{"command":"curl http://example.com"}`), testContext())
	require.NoError(t, err)
	assert.Contains(t, out, "错误：不允许执行命令 'curl'")
	assert.Contains(t, out, "仅支持：")
}

func TestBashToolRejectsDisallowedInPipeline(t *testing.T) {
	bt := NewBashTool(testSandbox(t), 30*time.Second)

	// Every command in the script is checked, not just the first token.
	out, err := bt.Execute(context.Background(), json.RawMessage(`{"command":"echo x | python3"}`), testContext())
	require.NoError(t, err)
	assert.Contains(t, out, "错误：不允许执行命令 'python3'")
}

func TestBashToolEmptyCommand(t *testing.T) {
	bt := NewBashTool(testSandbox(t), 30*time.Second)

	out, err := bt.Execute(context.Background(), json.RawMessage(`{"command":"  "}`), testContext())
	require.NoError(t, err)
	assert.Equal(t, "错误：命令为空", out)
}

func TestBashToolRunsInSandboxDir(t *testing.T) {
	sb := testSandbox(t)
	tc := testContext()
	ctx := context.Background()

	require.NoError(t, sb.Write(tc.UserID, tc.SessionID, "a.txt", []byte("x")))

	bt := NewBashTool(sb, 30*time.Second)
	out, err := bt.Execute(ctx, json.RawMessage(`{"command":"ls"}`), tc)
	require.NoError(t, err)
	assert.Equal(t, "a.txt\n", out)
}

func TestBashToolNonZeroExit(t *testing.T) {
	bt := NewBashTool(testSandbox(t), 30*time.Second)

	out, err := bt.Execute(context.Background(), json.RawMessage(`{"command":"cat missing.txt"}`), testContext())
	require.NoError(t, err)
	assert.Contains(t, out, "命令执行失败（退出码: 1）")
}

func TestBashToolTimeout(t *testing.T) {
	bt := NewBashTool(testSandbox(t), 50*time.Millisecond)

	// cat /dev/zero never exits on its own.
	out, err := bt.Execute(context.Background(), json.RawMessage(`{"command":"cat /dev/zero"}`), testContext())
	require.NoError(t, err)
	assert.Contains(t, out, "错误：命令执行超时")
}

func TestTodoWriteToolReplacesSnapshot(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tt := NewTodoWriteTool(st)
	tc := testContext()
	ctx := context.Background()

	args := `{"todos":[
		{"content":"创建 HTML 结构","status":"completed","activeForm":"正在创建 HTML 结构"},
		{"content":"编写样式","status":"in_progress","activeForm":"正在编写样式"},
		{"content":"添加交互","status":"pending","activeForm":"正在添加交互"}
	]}`
	out, err := tt.Execute(ctx, json.RawMessage(args), tc)
	require.NoError(t, err)

	var resp types.TodoSummary
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Completed)
	assert.Equal(t, 1, resp.InProgress)
	assert.Equal(t, 1, resp.Pending)

	stored, err := st.ListTodos(ctx, tc.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestCheckToolUnavailableLinter(t *testing.T) {
	ct := NewCheckTool(func(int64, string) string { return t.TempDir() })
	ct.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	out, err := ct.Execute(context.Background(), json.RawMessage(`{"type":"css"}`), testContext())
	require.NoError(t, err)
	assert.Contains(t, out, "CSS检查工具未安装")
	assert.Contains(t, out, "stylelint")
}

func TestCheckToolAllSkipsMissingLinters(t *testing.T) {
	ct := NewCheckTool(func(int64, string) string { return t.TempDir() })
	ct.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	out, err := ct.Execute(context.Background(), json.RawMessage(`{"type":"all"}`), testContext())
	require.NoError(t, err)
	assert.Contains(t, out, "**HTML检查**: 检查工具未安装，跳过此项检查")
	assert.Contains(t, out, "**CSS检查**")
	assert.Contains(t, out, "**JS检查**")
}

func TestRegistryLookupAndInfos(t *testing.T) {
	sb := testSandbox(t)
	r := NewRegistry()
	r.Register(NewListTool(sb))
	r.Register(NewReadTool(sb))
	r.Register(NewWriteTool(sb))
	r.Register(NewBashTool(sb, 30*time.Second))

	_, ok := r.Get("write")
	assert.True(t, ok)
	_, ok = r.Get("glob")
	assert.False(t, ok)

	assert.Equal(t, []string{"bash", "list", "read", "write"}, r.IDs())

	infos := r.ToolInfos()
	require.Len(t, infos, 4)
	assert.Equal(t, "bash", infos[0].Name)
}
