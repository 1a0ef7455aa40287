// Package memory provides the rule memory: persistent instructions and
// rules with their embeddings, the intake pipeline that turns instructions
// into rules, and similarity retrieval over stored rules.
package memory

import (
	"time"

	"github.com/easeaico/adk-rule-memory/internal/llm"
)

// Instruction is a verbatim developer directive plus the context it was
// given in. RuleID is nil until the instruction is linked to its rule.
type Instruction struct {
	ID          int64
	Instruction string
	Context     string
	InsertedAt  time.Time
	RuleID      *int64
}

// Rule is an abstracted coding guideline derived from one instruction.
// A rule row never exists without a full-length embedding.
type Rule struct {
	ID                       int64
	RuleText                 string
	Category                 llm.Category
	Context                  string
	Embedding                []float32
	CreatedFromInstructionID int64
	InstructionsCount        int
	LastApplied              *time.Time
	InsertedAt               time.Time
}

// RelevantRule is a rule scored against a query embedding.
type RelevantRule struct {
	Rule
	// RelevanceScore is the cosine similarity in [-1, 1].
	RelevanceScore float64
}

// Stats holds aggregate counts for the two tables.
type Stats struct {
	Instructions       int `json:"instructions"`
	LinkedInstructions int `json:"linked_instructions"`
	Rules              int `json:"rules"`
}
