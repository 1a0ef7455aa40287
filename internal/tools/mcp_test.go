package tools

import (
	"context"
	"testing"

	"github.com/easeaico/adk-rule-memory/internal/llm"
	"github.com/easeaico/adk-rule-memory/internal/memory"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func newTestHandler(t *testing.T, classifier llm.Classifier, embedder llm.Embedder) *Handler {
	t.Helper()
	ctx := context.Background()

	store, err := memory.NewSQLiteStore(ctx, ":memory:", embedder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.InitSchema(ctx))

	svc := memory.NewService(store, classifier, embedder, memory.ServiceConfig{}, zaptest.NewLogger(t))
	return NewHandler(svc, Defaults{MaxResults: 5, SimilarityThreshold: 0.5})
}

func TestRememberTool_Definition(t *testing.T) {
	def := NewRememberTool(nil).Definition()

	assert.Equal(t, RememberInstructionTool, def.Name)
	assert.Contains(t, def.InputSchema.Properties, "instruction")
	assert.Contains(t, def.InputSchema.Properties, "context")
	assert.Equal(t, []string{"instruction"}, def.InputSchema.Required)
}

func TestRelevantRulesTool_Definition(t *testing.T) {
	def := NewRelevantRulesTool(nil).Definition()

	assert.Equal(t, GetRelevantRulesTool, def.Name)
	for _, p := range []string{"taskDescription", "maxResults", "similarityThreshold"} {
		assert.Contains(t, def.InputSchema.Properties, p)
	}
	assert.Equal(t, []string{"taskDescription"}, def.InputSchema.Required)
}

func TestMCPTools_RoundTrip(t *testing.T) {
	ctx := context.Background()
	embedder := &llm.FakeEmbedder{}
	h := newTestHandler(t, &llm.FakeClassifier{}, embedder)
	remember := NewRememberTool(h)
	rules := NewRelevantRulesTool(h)

	res, err := remember.Handle(ctx, makeReq(map[string]interface{}{
		"instruction": "Write table-driven tests for parsers",
		"context":     "parser package",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(res), "Rule created (rule id 1, instruction id 1)")
	assert.Contains(t, resultText(res), "Category: testing")

	res, err = remember.Handle(ctx, makeReq(map[string]interface{}{
		"instruction": "Move the button 3 px right",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(res), "not generalizable")

	res, err = rules.Handle(ctx, makeReq(map[string]interface{}{
		"taskDescription": "Write table-driven tests for parsers",
		"maxResults":      float64(1),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(res), "1. [testing] Write table-driven tests for parsers (relevance: 1.00)")

	res, err = rules.Handle(ctx, makeReq(map[string]interface{}{
		"taskDescription":     "deploy kubernetes manifests",
		"similarityThreshold": float64(0.99),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, NoRulesMessage, resultText(res))
}

func TestRelevantRulesTool_Validation(t *testing.T) {
	embedder := &llm.FakeEmbedder{}
	h := newTestHandler(t, &llm.FakeClassifier{}, embedder)
	tool := NewRelevantRulesTool(h)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing description", map[string]interface{}{}, "invalid taskDescription"},
		{"max results too large", map[string]interface{}{"taskDescription": "x", "maxResults": float64(101)}, "invalid maxResults"},
		{"fractional max results", map[string]interface{}{"taskDescription": "x", "maxResults": float64(2.9)}, "invalid maxResults: must be an integer, got 2.9"},
		{"fractional max results below one", map[string]interface{}{"taskDescription": "x", "maxResults": float64(0.5)}, "invalid maxResults"},
		{"threshold out of range", map[string]interface{}{"taskDescription": "x", "similarityThreshold": float64(-2)}, "invalid similarityThreshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Handle(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(res), tt.want)
		})
	}
	assert.Zero(t, embedder.Calls())
}
