package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/easeaico/adk-rule-memory/internal/llm"
	"github.com/easeaico/adk-rule-memory/internal/memory"
	"github.com/easeaico/adk-rule-memory/internal/tools"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServerHandler(t *testing.T) *tools.Handler {
	t.Helper()
	ctx := context.Background()
	embedder := &llm.FakeEmbedder{}

	store, err := memory.NewSQLiteStore(ctx, ":memory:", embedder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.InitSchema(ctx))

	svc := memory.NewService(store, &llm.FakeClassifier{}, embedder, memory.ServiceConfig{}, nil)
	return tools.NewHandler(svc, tools.Defaults{MaxResults: 5, SimilarityThreshold: 0.7})
}

// call sends one JSON-RPC request through the server and decodes the result.
func call(t *testing.T, s *server.MCPServer, method string, params any, result any) {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	require.NoError(t, err)

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &envelope))
	require.Nil(t, envelope.Error)
	require.NoError(t, json.Unmarshal(envelope.Result, result))
}

func TestNew_RegistersTools(t *testing.T) {
	s := New(newTestServerHandler(t))

	var listed struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	call(t, s, "tools/list", map[string]any{}, &listed)

	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{tools.RememberInstructionTool, tools.GetRelevantRulesTool}, names)
}

func TestNew_HandlesToolCall(t *testing.T) {
	s := New(newTestServerHandler(t))

	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	call(t, s, "tools/call", map[string]any{
		"name":      tools.RememberInstructionTool,
		"arguments": map[string]any{"instruction": "Always wrap errors with context"},
	}, &result)

	assert.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Contains(t, result.Content[0].Text, "Rule created")

	call(t, s, "tools/call", map[string]any{
		"name":      tools.GetRelevantRulesTool,
		"arguments": map[string]any{"taskDescription": ""},
	}, &result)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Invalid input")
}

func TestServerInstructions(t *testing.T) {
	instr := serverInstructions()
	assert.Contains(t, instr, tools.GetRelevantRulesTool)
	assert.Contains(t, instr, tools.RememberInstructionTool)
}
