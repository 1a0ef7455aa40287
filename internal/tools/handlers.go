package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/easeaico/adk-rule-memory/internal/memory"
)

// RuleMemory is the part of memory.Service the tools depend on.
type RuleMemory interface {
	RememberInstruction(ctx context.Context, instruction, contextText string) (*memory.RememberResult, error)
	RelevantRules(ctx context.Context, q memory.RelevantRulesQuery) ([]memory.RelevantRule, error)
}

// Defaults fills optional retrieval arguments.
type Defaults struct {
	MaxResults          int
	SimilarityThreshold float64
}

// Handler provides implementations for the rule tools, independent of the
// transport that exposes them.
type Handler struct {
	memory   RuleMemory
	defaults Defaults
}

// NewHandler creates a new tool handler with the given dependencies.
func NewHandler(mem RuleMemory, defaults Defaults) *Handler {
	if defaults.MaxResults <= 0 {
		defaults.MaxResults = 5
	}
	return &Handler{
		memory:   mem,
		defaults: defaults,
	}
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RememberInstructionArgs is the input for remember_instruction tool.
type RememberInstructionArgs struct {
	Instruction string `json:"instruction" jsonschema:"The developer instruction to remember verbatim"`
	Context     string `json:"context,omitempty" jsonschema:"What the developer was working on when giving the instruction"`
}

// RelevantRulesArgs is the input for get_relevant_rules tool.
type RelevantRulesArgs struct {
	TaskDescription     string   `json:"taskDescription" jsonschema:"Description of the task about to be performed"`
	MaxResults          *int     `json:"maxResults,omitempty" jsonschema:"Maximum number of rules to return (1-100)"`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty" jsonschema:"Minimum cosine similarity between -1 and 1"`
}

// Remember runs the intake pipeline and never returns a Go error.
func (h *Handler) Remember(ctx context.Context, args RememberInstructionArgs) (result ToolResult) {
	defer recoverResult(&result)

	res, err := h.memory.RememberInstruction(ctx, args.Instruction, args.Context)
	if err != nil {
		return ToolResult{Success: false, Error: FormatRememberError(err)}
	}
	return ToolResult{Success: true, Data: FormatRemember(res)}
}

// RelevantRules runs retrieval and never returns a Go error.
func (h *Handler) RelevantRules(ctx context.Context, args RelevantRulesArgs) (result ToolResult) {
	defer recoverResult(&result)

	q := memory.RelevantRulesQuery{
		TaskDescription:     args.TaskDescription,
		MaxResults:          h.defaults.MaxResults,
		SimilarityThreshold: h.defaults.SimilarityThreshold,
	}
	if args.MaxResults != nil {
		q.MaxResults = *args.MaxResults
	}
	if args.SimilarityThreshold != nil {
		q.SimilarityThreshold = *args.SimilarityThreshold
	}

	rules, err := h.memory.RelevantRules(ctx, q)
	if err != nil {
		return ToolResult{Success: false, Error: FormatRulesError(err)}
	}
	return ToolResult{Success: true, Data: FormatRules(rules)}
}

// HandleToolCall dispatches a tool call given by name with JSON arguments.
func (h *Handler) HandleToolCall(ctx context.Context, name string, rawArgs []byte) (string, error) {
	var result ToolResult

	switch name {
	case RememberInstructionTool:
		var args RememberInstructionArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			result = ToolResult{Success: false, Error: fmt.Sprintf("Invalid input: %v", err)}
			break
		}
		result = h.Remember(ctx, args)
	case GetRelevantRulesTool:
		var args RelevantRulesArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			result = ToolResult{Success: false, Error: fmt.Sprintf("Invalid input: %v", err)}
			break
		}
		result = h.RelevantRules(ctx, args)
	default:
		result = ToolResult{
			Success: false,
			Error:   fmt.Sprintf("unknown tool: %s", name),
		}
	}

	jsonResult, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(jsonResult), nil
}

func recoverResult(result *ToolResult) {
	if r := recover(); r != nil {
		*result = ToolResult{Success: false, Error: fmt.Sprintf("Unexpected error: %v", r)}
	}
}
