// Package tools exposes the rule memory to agents: as ADK function tools for
// the in-process agent and as MCP tools for external hosts. Both share one
// Handler, so results read the same on every transport.
package tools

import (
	"fmt"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// Tool names.
const (
	RememberInstructionTool = "remember_instruction"
	GetRelevantRulesTool    = "get_relevant_rules"
)

const (
	rememberDescription = "Remember a coding instruction given by the developer. " +
		"Generalizable instructions become reusable rules; one-off instructions are not stored."
	relevantRulesDescription = "Find the stored coding rules most relevant to the task you are about to perform. " +
		"Call this before starting work and follow the returned rules."
)

// ToolsConfig holds dependencies for creating tools.
type ToolsConfig struct {
	Handler *Handler
	// WorkDir enables the workspace tools when set.
	WorkDir string
}

func createRememberInstructionTool(cfg ToolsConfig) (tool.Tool, error) {
	handler := func(ctx tool.Context, args RememberInstructionArgs) (ToolResult, error) {
		return cfg.Handler.Remember(ctx, args), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        RememberInstructionTool,
		Description: rememberDescription,
	}, handler)
}

func createRelevantRulesTool(cfg ToolsConfig) (tool.Tool, error) {
	handler := func(ctx tool.Context, args RelevantRulesArgs) (ToolResult, error) {
		return cfg.Handler.RelevantRules(ctx, args), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        GetRelevantRulesTool,
		Description: relevantRulesDescription,
	}, handler)
}

// BuildTools creates all agent tools with the given configuration.
func BuildTools(cfg ToolsConfig) ([]tool.Tool, error) {
	var tools []tool.Tool

	rememberTool, err := createRememberInstructionTool(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", RememberInstructionTool, err)
	}
	tools = append(tools, rememberTool)

	rulesTool, err := createRelevantRulesTool(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", GetRelevantRulesTool, err)
	}
	tools = append(tools, rulesTool)

	if cfg.WorkDir == "" {
		return tools, nil
	}

	readFileTool, err := createReadFileTool(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create read_file_content tool: %w", err)
	}
	tools = append(tools, readFileTool)

	listDirTool, err := createListDirectoryTool(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create list_directory tool: %w", err)
	}
	tools = append(tools, listDirTool)

	return tools, nil
}
