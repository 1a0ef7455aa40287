package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/easeaico/adk-rule-memory/internal/memory"
)

// NoRulesMessage is returned when retrieval succeeds with no matches.
const NoRulesMessage = "No relevant rules found for this task."

// FormatRemember renders a successful intake outcome.
func FormatRemember(res *memory.RememberResult) string {
	if res.Outcome == memory.OutcomeSkipped {
		return fmt.Sprintf("No rule generated: the instruction is not generalizable. Reason: %s", res.Reason)
	}
	return fmt.Sprintf("Rule created (rule id %d, instruction id %d).\nRule: %s\nCategory: %s",
		res.Rule.ID, res.Instruction.ID, res.Rule.RuleText, res.Rule.Category)
}

// FormatRememberError renders an intake failure with a message per failed step.
func FormatRememberError(err error) string {
	if errors.Is(err, memory.ErrInvalidInput) {
		return fmt.Sprintf("Invalid input: %v", err)
	}

	var stepErr *memory.StepError
	if !errors.As(err, &stepErr) {
		return fmt.Sprintf("Unexpected error: %v", err)
	}

	switch stepErr.Step {
	case memory.StepClassify:
		return fmt.Sprintf("Failed to classify instruction: %v", stepErr.Err)
	case memory.StepInstruction:
		return fmt.Sprintf("Failed to store instruction: %v", stepErr.Err)
	case memory.StepRule:
		return fmt.Sprintf("Failed to create rule: %v", stepErr.Err)
	case memory.StepLink:
		return fmt.Sprintf("Failed to link instruction to rule: %v", stepErr.Err)
	case memory.StepStorage:
		return fmt.Sprintf("Storage error: %v", stepErr.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", err)
	}
}

// FormatRules renders a ranked rule list, most relevant first.
func FormatRules(rules []memory.RelevantRule) string {
	if len(rules) == 0 {
		return NoRulesMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant rules:\n", len(rules))
	for i, r := range rules {
		fmt.Fprintf(&b, "\n%d. [%s] %s (relevance: %.2f)", i+1, r.Category, r.RuleText, r.RelevanceScore)
	}
	return b.String()
}

// FormatRulesError renders a retrieval failure.
func FormatRulesError(err error) string {
	if errors.Is(err, memory.ErrInvalidInput) {
		return fmt.Sprintf("Invalid input: %v", err)
	}

	var stepErr *memory.StepError
	if !errors.As(err, &stepErr) {
		return fmt.Sprintf("Unexpected error: %v", err)
	}

	switch stepErr.Step {
	case memory.StepEmbedding:
		return fmt.Sprintf("Failed to generate embedding for task description: %v", stepErr.Err)
	case memory.StepSearch:
		return fmt.Sprintf("Failed to search rules: %v", stepErr.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", err)
	}
}
