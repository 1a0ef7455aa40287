package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/easeaico/adk-rule-memory/internal/llm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("memory: not found")

// InstructionStore persists raw instructions and their link to a rule.
type InstructionStore interface {
	// CreateInstruction inserts a new instruction with no rule linked.
	CreateInstruction(ctx context.Context, instruction, contextText string) (*Instruction, error)

	// FindInstructionByID returns ErrNotFound when no row has the id.
	FindInstructionByID(ctx context.Context, id int64) (*Instruction, error)

	// FindInstructionsByRuleID returns the instructions linked to a rule,
	// oldest first. The result may be empty.
	FindInstructionsByRuleID(ctx context.Context, ruleID int64) ([]Instruction, error)

	// LinkToRule sets rule_id on an instruction whose rule_id is still unset.
	// Unknown or already-linked instructions are left untouched.
	LinkToRule(ctx context.Context, instructionID, ruleID int64) error
}

// RuleStore persists rules together with their embeddings.
type RuleStore interface {
	// CreateRule embeds ruleText and inserts the rule with instructions_count 1.
	// If embedding fails nothing is inserted.
	CreateRule(ctx context.Context, ruleText string, category llm.Category, contextText string, createdFromInstructionID int64) (*Rule, error)

	// InsertRule inserts a rule with an embedding computed beforehand. The
	// embedding must have llm.EmbeddingDimensions elements.
	InsertRule(ctx context.Context, ruleText string, category llm.Category, contextText string, createdFromInstructionID int64, embedding []float32) (*Rule, error)

	// FindRuleByID returns ErrNotFound when no row has the id.
	FindRuleByID(ctx context.Context, id int64) (*Rule, error)

	// FindSimilarRules returns at most limit rules whose cosine similarity to
	// queryEmbedding is at least threshold, most similar first.
	FindSimilarRules(ctx context.Context, queryEmbedding []float32, limit int, threshold float64) ([]RelevantRule, error)
}

// Store combines both stores over one database.
type Store interface {
	InstructionStore
	RuleStore

	// WithTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a transactional Store reuses its transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// InitSchema creates the tables if they do not exist.
	InitSchema(ctx context.Context) error

	// Stats reports row counts.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases any resources held by the store.
	Close() error
}

// embedRule produces the embedding stored with a rule and checks its length,
// so that a rule row is only ever written with a complete vector.
func embedRule(ctx context.Context, embedder llm.Embedder, ruleText string) ([]float32, error) {
	embedding, err := embedder.Embed(ctx, ruleText)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rule embedding: %w", err)
	}
	if err := checkEmbedding(embedding); err != nil {
		return nil, fmt.Errorf("failed to generate rule embedding: %w", err)
	}
	return embedding, nil
}

func checkEmbedding(embedding []float32) error {
	if len(embedding) != llm.EmbeddingDimensions {
		return fmt.Errorf("got %d dimensions, want %d", len(embedding), llm.EmbeddingDimensions)
	}
	return nil
}

// parseTimestamp parses a SQLite timestamp string to time.Time.
// SQLite stores timestamps as TEXT in ISO8601/RFC3339 format.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02T15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}
