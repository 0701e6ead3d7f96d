package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentic-research/subreq/internal/replacer"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBatch = `[
		{"uri": "/ipsum/{{foo.body@$.things[*]}}", "requestId": "oop", "body": {"answer": "{{foo.body@$.stuff}}"}},
		{"uri": "/gone/{{nobody.body@$.x}}", "requestId": "gone"}
	]`
	testResponses = `[{"headers": {"Content-ID": "<foo>"}, "body": {"things": ["what", "keep"], "stuff": 42}}]`
)

func call(t *testing.T, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tl := &tools{replacer: replacer.New(), logger: zap.NewNop()}
	req := mcp.CallToolRequest{}
	req.Params.Name = ToolReplaceBatch
	req.Params.Arguments = args
	res, err := tl.replaceBatch(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, c mcp.Content) string {
	t.Helper()
	tc, ok := c.(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", c)
	return tc.Text
}

func TestReplaceBatchTool(t *testing.T) {
	res := call(t, map[string]any{"batch": testBatch, "responses": testResponses})
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res.Content[0])), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "/ipsum/what", out[0]["uri"])
	assert.Equal(t, map[string]any{"answer": float64(42)}, out[0]["body"])
	assert.Equal(t, true, out[0]["_resolved"])
	assert.Equal(t, "/ipsum/keep", out[1]["uri"])
}

func TestReplaceBatchTool_Report(t *testing.T) {
	res := call(t, map[string]any{"batch": testBatch, "responses": testResponses, "report": true})
	require.False(t, res.IsError)
	require.Len(t, res.Content, 2)

	var sum replacer.Summary
	require.NoError(t, json.Unmarshal([]byte(text(t, res.Content[1])), &sum))
	assert.Equal(t, []replacer.RequestSummary{
		{RequestID: "oop", Variants: 2},
		{RequestID: "gone", Variants: 0, Dropped: true},
	}, sum.Requests)
}

func TestReplaceBatchTool_YAML(t *testing.T) {
	res := call(t, map[string]any{"batch": testBatch, "responses": testResponses, "format": "yaml"})
	require.False(t, res.IsError)
	assert.Contains(t, text(t, res.Content[0]), "- uri: /ipsum/what\n")
}

func TestReplaceBatchTool_BadInput(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing batch", map[string]any{"responses": testResponses}},
		{"missing responses", map[string]any{"batch": testBatch}},
		{"malformed batch", map[string]any{"batch": `[{"uri":`, "responses": testResponses}},
		{"duplicate ids", map[string]any{"batch": `[{"uri":"/a","requestId":"x"},{"uri":"/b","requestId":"x"}]`, "responses": `[]`}},
		{"malformed responses", map[string]any{"batch": testBatch, "responses": `{}`}},
		{"bad format", map[string]any{"batch": testBatch, "responses": testResponses, "format": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, tt.args)
			assert.True(t, res.IsError)
		})
	}
}

func TestNew_ListsTool(t *testing.T) {
	s := New(replacer.New(), nil, "test")
	msg := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"replace_batch"`)
	assert.Contains(t, string(raw), `"batch"`)
}
