package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/easeaico/adk-rule-memory/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vectorEmbedder returns fixed vectors per text and falls back to HashVector.
type vectorEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return llm.HashVector(text, llm.EmbeddingDimensions), nil
}

// mixed returns a unit vector with cos(angle to e_0) == sim, using axis as
// the orthogonal component.
func mixed(sim float64, axis int) []float32 {
	v := make([]float32, llm.EmbeddingDimensions)
	v[0] = float32(sim)
	v[axis] = float32(math.Sqrt(1 - sim*sim))
	return v
}

type storeFactory func(t *testing.T, embedder llm.Embedder) Store

// runStoreContract exercises behavior every Store implementation shares.
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("CreateRuleStoresFullEmbedding", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		inst, err := store.CreateInstruction(ctx, "Prefer table-driven tests", "go tests")
		require.NoError(t, err)
		assert.Nil(t, inst.RuleID)

		rule, err := store.CreateRule(ctx, "Prefer table-driven tests", llm.CategoryTesting, "go tests", inst.ID)
		require.NoError(t, err)
		assert.Len(t, rule.Embedding, llm.EmbeddingDimensions)
		assert.Equal(t, 1, rule.InstructionsCount)
		assert.Nil(t, rule.LastApplied)

		got, err := store.FindRuleByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.RuleText, got.RuleText)
		assert.Equal(t, llm.CategoryTesting, got.Category)
		assert.Equal(t, "go tests", got.Context)
		assert.Equal(t, inst.ID, got.CreatedFromInstructionID)
		assert.InDeltaSlice(t, rule.Embedding, got.Embedding, 1e-6)
	})

	t.Run("CreateRuleEmbeddingFailureInsertsNothing", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{Err: errors.New("quota exceeded")})

		inst, err := store.CreateInstruction(ctx, "Never commit secrets", "")
		require.NoError(t, err)

		_, err = store.CreateRule(ctx, "Never commit secrets", llm.CategorySecurity, "", inst.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Rules)
	})

	t.Run("CreateRuleRejectsShortEmbedding", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{Vector: []float32{1, 0, 0}})

		inst, err := store.CreateInstruction(ctx, "Keep functions small", "")
		require.NoError(t, err)

		_, err = store.CreateRule(ctx, "Keep functions small", llm.CategoryStyle, "", inst.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimensions")
	})

	t.Run("InsertRuleRejectsShortEmbedding", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		inst, err := store.CreateInstruction(ctx, "Keep functions small", "")
		require.NoError(t, err)

		_, err = store.InsertRule(ctx, "Keep functions small", llm.CategoryStyle, "", inst.ID, []float32{1, 0, 0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimensions")

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Rules)
	})

	t.Run("FindSimilarRulesReturnsEveryMatchUpToLimit", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		const total = 60
		for i := 0; i < total; i++ {
			text := fmt.Sprintf("Rule number %d", i)
			inst, err := store.CreateInstruction(ctx, text, "")
			require.NoError(t, err)
			_, err = store.CreateRule(ctx, text, llm.CategoryBestPractices, "", inst.ID)
			require.NoError(t, err)
		}

		query := llm.HashVector("Rule number 0", llm.EmbeddingDimensions)

		all, err := store.FindSimilarRules(ctx, query, MaxResultsLimit, -1)
		require.NoError(t, err)
		assert.Len(t, all, total)
		assert.Equal(t, "Rule number 0", all[0].RuleText)

		limited, err := store.FindSimilarRules(ctx, query, 50, -1)
		require.NoError(t, err)
		assert.Len(t, limited, 50)
	})

	t.Run("FindSimilarRulesEmptyTable", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		rules, err := store.FindSimilarRules(ctx, mixed(1, 1), 5, -1)
		require.NoError(t, err)
		assert.NotNil(t, rules)
		assert.Empty(t, rules)
	})

	t.Run("FindSimilarRulesOrdersAndLimits", func(t *testing.T) {
		store := newStore(t, &vectorEmbedder{vectors: map[string][]float32{
			"close":   mixed(0.9, 1),
			"nearby":  mixed(0.8, 2),
			"distant": mixed(0.1, 3),
		}})

		for _, text := range []string{"distant", "nearby", "close"} {
			inst, err := store.CreateInstruction(ctx, text, "")
			require.NoError(t, err)
			_, err = store.CreateRule(ctx, text, llm.CategoryBestPractices, "", inst.ID)
			require.NoError(t, err)
		}

		query := mixed(1, 1)

		rules, err := store.FindSimilarRules(ctx, query, 2, 0.5)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "close", rules[0].RuleText)
		assert.Equal(t, "nearby", rules[1].RuleText)
		assert.InDelta(t, 0.9, rules[0].RelevanceScore, 1e-4)
		assert.InDelta(t, 0.8, rules[1].RelevanceScore, 1e-4)

		all, err := store.FindSimilarRules(ctx, query, 10, -1)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, sort.SliceIsSorted(all, func(i, j int) bool {
			return all[i].RelevanceScore > all[j].RelevanceScore
		}))

		none, err := store.FindSimilarRules(ctx, query, 0, -1)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("FindSimilarRulesThresholdMonotonic", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		for _, text := range []string{
			"write unit tests for handlers",
			"write integration tests for storage",
			"document exported functions",
			"never log secrets",
		} {
			inst, err := store.CreateInstruction(ctx, text, "")
			require.NoError(t, err)
			_, err = store.CreateRule(ctx, text, llm.CategoryTesting, "", inst.ID)
			require.NoError(t, err)
		}

		query := llm.HashVector("write tests", llm.EmbeddingDimensions)
		prev := math.MaxInt
		for _, threshold := range []float64{-1, 0, 0.2, 0.4, 0.6, 0.8, 1} {
			rules, err := store.FindSimilarRules(ctx, query, 100, threshold)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(rules), prev, "threshold %v", threshold)
			for _, r := range rules {
				assert.GreaterOrEqual(t, r.RelevanceScore, threshold-1e-9)
			}
			prev = len(rules)
		}
	})

	t.Run("SelfSimilarity", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		inst, err := store.CreateInstruction(ctx, "Wrap errors with context", "")
		require.NoError(t, err)
		rule, err := store.CreateRule(ctx, "Wrap errors with context", llm.CategoryErrorHandling, "", inst.ID)
		require.NoError(t, err)

		rules, err := store.FindSimilarRules(ctx, rule.Embedding, 1, 0.99)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, rule.ID, rules[0].ID)
		assert.InDelta(t, 1.0, rules[0].RelevanceScore, 1e-4)
	})

	t.Run("LinkToRuleSetsOnce", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		inst, err := store.CreateInstruction(ctx, "Use context for cancellation", "")
		require.NoError(t, err)
		first, err := store.CreateRule(ctx, "Use context for cancellation", llm.CategoryBestPractices, "", inst.ID)
		require.NoError(t, err)
		second, err := store.CreateRule(ctx, "Pass context first", llm.CategoryStyle, "", inst.ID)
		require.NoError(t, err)

		require.NoError(t, store.LinkToRule(ctx, inst.ID, first.ID))
		require.NoError(t, store.LinkToRule(ctx, inst.ID, second.ID))

		got, err := store.FindInstructionByID(ctx, inst.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RuleID)
		assert.Equal(t, first.ID, *got.RuleID)

		linked, err := store.FindInstructionsByRuleID(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, linked, 1)
		assert.Equal(t, inst.ID, linked[0].ID)

		unlinked, err := store.FindInstructionsByRuleID(ctx, second.ID)
		require.NoError(t, err)
		assert.Empty(t, unlinked)

		assert.NoError(t, store.LinkToRule(ctx, inst.ID+1000, first.ID))
	})

	t.Run("LinkToRuleRejectsUnknownRule", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		inst, err := store.CreateInstruction(ctx, "Check every error", "")
		require.NoError(t, err)

		require.Error(t, store.LinkToRule(ctx, inst.ID, 4242))

		got, err := store.FindInstructionByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RuleID)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		_, err := store.FindInstructionByID(ctx, 4242)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.FindRuleByID(ctx, 4242)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("WithTxRollsBack", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})
		boom := errors.New("boom")

		err := store.WithTx(ctx, func(tx Store) error {
			if _, err := tx.CreateInstruction(ctx, "Sort imports", ""); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, *stats)
	})

	t.Run("WithTxCommits", func(t *testing.T) {
		store := newStore(t, &llm.FakeEmbedder{})

		err := store.WithTx(ctx, func(tx Store) error {
			inst, err := tx.CreateInstruction(ctx, "Sort imports", "")
			if err != nil {
				return err
			}
			rule, err := tx.CreateRule(ctx, "Sort imports", llm.CategoryStyle, "", inst.ID)
			if err != nil {
				return err
			}
			return tx.LinkToRule(ctx, inst.ID, rule.ID)
		})
		require.NoError(t, err)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Instructions: 1, LinkedInstructions: 1, Rules: 1}, *stats)
	})
}
