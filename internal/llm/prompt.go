package llm

import (
	"bytes"
	"text/template"

	"google.golang.org/genai"
)

var classifierSystemPrompt = `You turn a developer's instruction into a reusable coding rule, or decide
that the instruction is a one-off that must not become a rule.

A rule is GENERALIZABLE when it states a practice that applies beyond the
current edit, for example about testing, security, naming, error handling,
performance, architecture, documentation, style or general best practices.

An instruction is NOT GENERALIZABLE when it only makes sense for the change at
hand: pixel-level layout tweaks, specific identifiers, file names, line
numbers or coordinates used once, or references bound to a date, a ticket or a
single moment.

When generalizable, rewrite the instruction as a short imperative rule that no
longer mentions the concrete situation, and pick exactly one category.
When not generalizable, explain briefly why.`

var classifierPromptTmpl = template.Must(template.New("classify").Parse(`Categories: {{range $i, $c := .Categories}}{{if $i}}, {{end}}{{$c}}{{end}}

Examples:
- Instruction: "Always wrap errors with context before returning them"
  Context: "reviewing the payment service"
  Answer: {"generalizable": true, "rule_text": "Wrap returned errors with context describing the failed operation", "category": "error-handling"}
- Instruction: "Use table-driven tests for the parser"
  Context: "adding parser tests"
  Answer: {"generalizable": true, "rule_text": "Write table-driven tests for functions with many input cases", "category": "testing"}
- Instruction: "Never log the raw access token"
  Context: "debugging the auth middleware"
  Answer: {"generalizable": true, "rule_text": "Never write credentials or tokens to logs", "category": "security"}
- Instruction: "Move the submit button 3px to the right"
  Context: "polishing the signup form"
  Answer: {"generalizable": false, "reason": "Pixel-level adjustment of a single element"}
- Instruction: "Rename tmp2.go to handler.go"
  Context: "cleaning up the repo"
  Answer: {"generalizable": false, "reason": "Refers to a specific file used once"}
- Instruction: "Ship this before Friday's demo"
  Context: "sprint planning"
  Answer: {"generalizable": false, "reason": "Time-bound request, not a coding practice"}

Instruction: {{printf "%q" .Instruction}}
Context: {{printf "%q" .Context}}`))

// buildClassifierPrompt renders the user prompt for one instruction.
func buildClassifierPrompt(instruction, contextText string) (string, error) {
	data := struct {
		Categories  []string
		Instruction string
		Context     string
	}{
		Categories:  CategoryNames(),
		Instruction: instruction,
		Context:     contextText,
	}

	var buf bytes.Buffer
	if err := classifierPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// verdictSchema restricts the model answer to the verdict structure.
func verdictSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"generalizable": {
				Type:        genai.TypeBoolean,
				Description: "Whether the instruction states a reusable practice",
			},
			"rule_text": {
				Type:        genai.TypeString,
				Description: "The abstracted rule; required when generalizable",
			},
			"category": {
				Type:        genai.TypeString,
				Enum:        CategoryNames(),
				Description: "Rule category; required when generalizable",
			},
			"reason": {
				Type:        genai.TypeString,
				Description: "Why no rule was extracted; required when not generalizable",
			},
		},
		Required:         []string{"generalizable"},
		PropertyOrdering: []string{"generalizable", "rule_text", "category", "reason"},
	}
}
