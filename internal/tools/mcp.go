package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/easeaico/adk-rule-memory/internal/memory"
	"github.com/mark3labs/mcp-go/mcp"
)

// RememberTool handles the remember_instruction MCP tool.
type RememberTool struct {
	handler *Handler
}

// NewRememberTool creates a RememberTool.
func NewRememberTool(handler *Handler) *RememberTool {
	return &RememberTool{handler: handler}
}

// Definition returns the MCP tool definition for remember_instruction.
func (t *RememberTool) Definition() mcp.Tool {
	return mcp.NewTool(RememberInstructionTool,
		mcp.WithDescription(rememberDescription),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("The developer instruction to remember verbatim"),
		),
		mcp.WithString("context",
			mcp.Description("What the developer was working on when giving the instruction"),
		),
	)
}

// Handle processes the remember_instruction tool call.
func (t *RememberTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toMCPResult(t.handler.Remember(ctx, RememberInstructionArgs{
		Instruction: req.GetString("instruction", ""),
		Context:     req.GetString("context", ""),
	})), nil
}

// RelevantRulesTool handles the get_relevant_rules MCP tool.
type RelevantRulesTool struct {
	handler *Handler
}

// NewRelevantRulesTool creates a RelevantRulesTool.
func NewRelevantRulesTool(handler *Handler) *RelevantRulesTool {
	return &RelevantRulesTool{handler: handler}
}

// Definition returns the MCP tool definition for get_relevant_rules.
func (t *RelevantRulesTool) Definition() mcp.Tool {
	return mcp.NewTool(GetRelevantRulesTool,
		mcp.WithDescription(relevantRulesDescription),
		mcp.WithString("taskDescription",
			mcp.Required(),
			mcp.Description("Description of the task about to be performed"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of rules to return (default: 5, max: 100)"),
		),
		mcp.WithNumber("similarityThreshold",
			mcp.Description("Minimum cosine similarity between -1 and 1"),
		),
	)
}

// Handle processes the get_relevant_rules tool call.
func (t *RelevantRulesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := RelevantRulesArgs{TaskDescription: req.GetString("taskDescription", "")}

	// JSON numbers arrive as float64; absent keys keep the handler defaults.
	raw := req.GetArguments()
	if v, ok := raw["maxResults"].(float64); ok {
		if v != math.Trunc(v) {
			err := &memory.ValidationError{Field: "maxResults", Reason: fmt.Sprintf("must be an integer, got %v", v)}
			return mcp.NewToolResultError(FormatRulesError(err)), nil
		}
		n := int(v)
		args.MaxResults = &n
	}
	if v, ok := raw["similarityThreshold"].(float64); ok {
		args.SimilarityThreshold = &v
	}

	return toMCPResult(t.handler.RelevantRules(ctx, args)), nil
}

func toMCPResult(r ToolResult) *mcp.CallToolResult {
	if !r.Success {
		return mcp.NewToolResultError(r.Error)
	}
	return mcp.NewToolResultText(r.Data)
}
