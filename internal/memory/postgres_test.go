package memory

import (
	"context"
	"os"
	"testing"

	"github.com/easeaico/adk-rule-memory/internal/llm"
	"github.com/stretchr/testify/require"
)

// TestPostgresStore runs against a pgvector-enabled database named by
// TEST_DATABASE_URL. The rules and instructions tables are dropped first.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	runStoreContract(t, func(t *testing.T, embedder llm.Embedder) Store {
		ctx := context.Background()

		store, err := NewPostgresStore(ctx, url, embedder)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		_, err = store.pool.Exec(ctx, `DROP TABLE IF EXISTS instructions, rules CASCADE`)
		require.NoError(t, err)
		require.NoError(t, store.InitSchema(ctx))
		// A second run must find the constraint and index state already in place.
		require.NoError(t, store.InitSchema(ctx))
		return store
	})
}
