// Package main runs a coding agent that learns rules from the developer's
// instructions and applies them to later tasks.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/template"

	"github.com/easeaico/adk-rule-memory/internal/app"
	"github.com/easeaico/adk-rule-memory/internal/config"
	"github.com/easeaico/adk-rule-memory/internal/llm"
	"github.com/easeaico/adk-rule-memory/internal/tools"
	"go.uber.org/zap"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.LLMBackend != config.BackendGemini {
		logger.Fatal("the agent needs LLM_BACKEND=gemini", zap.String("llm_backend", cfg.LLMBackend))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize rule memory", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	llmAgent, err := newAgent(ctx, cfg, a)
	if err != nil {
		logger.Fatal("failed to initialize agent", zap.Error(err))
	}

	launcherCfg := &launcher.Config{
		AgentLoader:   agent.NewSingleLoader(llmAgent),
		MemoryService: a.Service,
	}
	l := full.NewLauncher()
	if err := l.Execute(ctx, launcherCfg, os.Args[1:]); err != nil {
		logger.Fatal("failed to run agent", zap.Error(err), zap.String("usage", l.CommandLineSyntax()))
	}
}

// newAgent creates the LLM agent that owns the rule tools.
func newAgent(ctx context.Context, cfg config.Config, a *app.App) (agent.Agent, error) {
	agentTools, err := tools.BuildTools(tools.ToolsConfig{
		Handler: a.Handler,
		WorkDir: cfg.WorkDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build tools: %w", err)
	}

	llmModel, err := gemini.NewModel(ctx, cfg.ClassifierModel, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}

	instruction, err := buildSystemPrompt(cfg.WorkDir != "")
	if err != nil {
		return nil, err
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:        "rule_keeper",
		Description: "A coding assistant that remembers the developer's coding rules and follows them.",
		Model:       llmModel,
		Instruction: instruction,
		Tools:       agentTools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return llmAgent, nil
}

var systemPromptTmpl = template.Must(template.New("systemPrompt").Funcs(template.FuncMap{"inc": inc}).Parse(`
You are a senior software engineer who remembers how this developer likes code to be written.

Before starting any task, call {{.RulesTool}} with a one-sentence description of the task and follow every rule it returns.

When the developer gives an instruction that should apply to future work, call {{.RememberTool}} with the instruction verbatim and a short description of what you were doing. Rules are filed under one of these categories:
{{- range $idx, $c := .Categories }}
{{inc $idx}}. {{$c}}
{{- end}}

One-off instructions (exact values, a single file, a temporary tweak) are not stored; tell the developer when that happens.
{{- if .HasWorkspace }}

Use read_file_content and list_directory to inspect the project before changing it.
{{- end}}
`))

// inc is a small helper for incrementing index
func inc(i int) int { return i + 1 }

// buildSystemPrompt renders the agent instruction.
func buildSystemPrompt(hasWorkspace bool) (string, error) {
	data := struct {
		RulesTool    string
		RememberTool string
		Categories   []string
		HasWorkspace bool
	}{
		RulesTool:    tools.GetRelevantRulesTool,
		RememberTool: tools.RememberInstructionTool,
		Categories:   llm.CategoryNames(),
		HasWorkspace: hasWorkspace,
	}

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return buf.String(), nil
}
