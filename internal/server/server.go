// Package server creates the MCP server that exposes the rule memory to a
// host agent. No business logic lives here, only wiring.
package server

import (
	"github.com/easeaico/adk-rule-memory/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the MCP server name reported to clients.
const Name = "rule-memory"

// New creates the MCP server with both rule tools registered.
func New(handler *tools.Handler) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	rememberTool := tools.NewRememberTool(handler)
	s.AddTool(rememberTool.Definition(), rememberTool.Handle)

	rulesTool := tools.NewRelevantRulesTool(handler)
	s.AddTool(rulesTool.Definition(), rulesTool.Handle)

	return s
}

func serverInstructions() string {
	return `Rule memory keeps the coding rules this developer has taught you.

- Before starting a task, call get_relevant_rules with a short description of the task and follow the rules it returns.
- When the developer gives an instruction that should apply beyond the current change, call remember_instruction with the instruction verbatim and a one-line description of what you were doing.
- One-off instructions (exact values, single files, temporary tweaks) are rejected by the classifier; that is expected.`
}
