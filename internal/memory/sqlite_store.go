package memory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/easeaico/adk-rule-memory/internal/llm"
	"modernc.org/sqlite"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	registerVectorOnce sync.Once
	registerVectorErr  error
)

// registerVectorFunctions installs vec_cosine_distance(a, b) on every SQLite
// connection opened afterwards. Both arguments are little-endian float32
// blobs; mismatched or malformed blobs yield NULL.
func registerVectorFunctions() error {
	registerVectorOnce.Do(func() {
		registerVectorErr = sqlite.RegisterDeterministicScalarFunction("vec_cosine_distance", 2,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				a, okA := args[0].([]byte)
				b, okB := args[1].([]byte)
				if !okA || !okB {
					return nil, nil
				}
				va, vb := llm.DecodeVector(a), llm.DecodeVector(b)
				if len(va) == 0 || len(va) != len(vb) {
					return nil, nil
				}
				return 1 - llm.CosineSimilarity(va, vb), nil
			})
	})
	return registerVectorErr
}

// SQLiteStore implements Store using an embedded SQLite database.
// Vector distance is computed by the vec_cosine_distance SQL function, so
// similarity queries are filtered, ordered and limited inside SQLite.
type SQLiteStore struct {
	db       *sql.DB
	q        sqlQuerier
	tx       *sql.Tx
	embedder llm.Embedder
}

// NewSQLiteStore creates a new SQLiteStore connected to the given database path.
// The path should be a file path (e.g., "./data.db") or ":memory:" for in-memory database.
// Rules are embedded with embedder when they are created.
func NewSQLiteStore(ctx context.Context, dbPath string, embedder llm.Embedder) (*SQLiteStore, error) {
	if err := registerVectorFunctions(); err != nil {
		return nil, fmt.Errorf("failed to register vector functions: %w", err)
	}

	// Enable WAL mode and foreign keys for better performance and data integrity
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, q: db, embedder: embedder}, nil
}

// InitSchema creates the necessary tables if they don't exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS instructions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instruction TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			inserted_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			rule_id INTEGER REFERENCES rules(id)
		);

		CREATE INDEX IF NOT EXISTS idx_instructions_rule_id ON instructions(rule_id);

		CREATE TABLE IF NOT EXISTS rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_text TEXT NOT NULL,
			category TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			relevance_score REAL,
			embedding BLOB NOT NULL CHECK (length(embedding) = %d),
			created_from_instruction_id INTEGER NOT NULL REFERENCES instructions(id),
			last_applied TEXT,
			instructions_count INTEGER NOT NULL DEFAULT 1,
			inserted_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_rules_category ON rules(category);
	`, llm.EmbeddingDimensions*4)

	if _, err := s.q.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// WithTx runs fn inside a single SQLite transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: tx, embedder: s.embedder}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateInstruction inserts a new instruction row with rule_id unset.
func (s *SQLiteStore) CreateInstruction(ctx context.Context, instruction, contextText string) (*Instruction, error) {
	query := `
		INSERT INTO instructions (instruction, context)
		VALUES (?, ?)
		RETURNING id, inserted_at
	`

	inst := &Instruction{Instruction: instruction, Context: contextText}
	var insertedAt string
	if err := s.q.QueryRowContext(ctx, query, instruction, contextText).Scan(&inst.ID, &insertedAt); err != nil {
		return nil, fmt.Errorf("failed to create instruction: %w", err)
	}
	inst.InsertedAt, _ = parseTimestamp(insertedAt)

	return inst, nil
}

// FindInstructionByID retrieves a single instruction.
func (s *SQLiteStore) FindInstructionByID(ctx context.Context, id int64) (*Instruction, error) {
	query := `
		SELECT id, instruction, context, inserted_at, rule_id
		FROM instructions
		WHERE id = ?
	`

	inst, err := scanSQLiteInstruction(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find instruction %d: %w", id, err)
	}
	return inst, nil
}

// FindInstructionsByRuleID lists the instructions linked to a rule.
func (s *SQLiteStore) FindInstructionsByRuleID(ctx context.Context, ruleID int64) ([]Instruction, error) {
	query := `
		SELECT id, instruction, context, inserted_at, rule_id
		FROM instructions
		WHERE rule_id = ?
		ORDER BY id
	`

	rows, err := s.q.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instructions: %w", err)
	}
	defer rows.Close()

	instructions := []Instruction{}
	for rows.Next() {
		inst, err := scanSQLiteInstruction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instruction: %w", err)
		}
		instructions = append(instructions, *inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instructions: %w", err)
	}

	return instructions, nil
}

// LinkToRule records the rule generated from an instruction.
func (s *SQLiteStore) LinkToRule(ctx context.Context, instructionID, ruleID int64) error {
	query := `
		UPDATE instructions
		SET rule_id = ?
		WHERE id = ? AND rule_id IS NULL
	`

	if _, err := s.q.ExecContext(ctx, query, ruleID, instructionID); err != nil {
		return fmt.Errorf("failed to link instruction %d to rule %d: %w", instructionID, ruleID, err)
	}
	return nil
}

// CreateRule embeds ruleText and inserts the rule.
func (s *SQLiteStore) CreateRule(ctx context.Context, ruleText string, category llm.Category, contextText string, createdFromInstructionID int64) (*Rule, error) {
	embedding, err := embedRule(ctx, s.embedder, ruleText)
	if err != nil {
		return nil, err
	}
	return s.InsertRule(ctx, ruleText, category, contextText, createdFromInstructionID, embedding)
}

// InsertRule inserts a rule with a precomputed embedding.
func (s *SQLiteStore) InsertRule(ctx context.Context, ruleText string, category llm.Category, contextText string, createdFromInstructionID int64, embedding []float32) (*Rule, error) {
	if err := checkEmbedding(embedding); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	query := `
		INSERT INTO rules (rule_text, category, context, embedding, created_from_instruction_id, instructions_count)
		VALUES (?, ?, ?, ?, ?, 1)
		RETURNING id, inserted_at
	`

	rule := &Rule{
		RuleText:                 ruleText,
		Category:                 category,
		Context:                  contextText,
		Embedding:                embedding,
		CreatedFromInstructionID: createdFromInstructionID,
		InstructionsCount:        1,
	}
	var insertedAt string
	err := s.q.QueryRowContext(ctx, query,
		ruleText, string(category), contextText, llm.EncodeVector(embedding), createdFromInstructionID,
	).Scan(&rule.ID, &insertedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	rule.InsertedAt, _ = parseTimestamp(insertedAt)

	return rule, nil
}

// FindRuleByID retrieves a single rule including its embedding.
func (s *SQLiteStore) FindRuleByID(ctx context.Context, id int64) (*Rule, error) {
	query := `
		SELECT id, rule_text, category, context, embedding, created_from_instruction_id,
		       last_applied, instructions_count, inserted_at
		FROM rules
		WHERE id = ?
	`

	var rule Rule
	err := scanSQLiteRule(s.q.QueryRowContext(ctx, query, id), &rule)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rule %d: %w", id, err)
	}
	return &rule, nil
}

// FindSimilarRules ranks rules by cosine similarity to queryEmbedding.
func (s *SQLiteStore) FindSimilarRules(ctx context.Context, queryEmbedding []float32, limit int, threshold float64) ([]RelevantRule, error) {
	if limit <= 0 {
		return []RelevantRule{}, nil
	}

	query := `
		SELECT id, rule_text, category, context, embedding, created_from_instruction_id,
		       last_applied, instructions_count, inserted_at, score
		FROM (
			SELECT id, rule_text, category, context, embedding, created_from_instruction_id,
			       last_applied, instructions_count, inserted_at,
			       1 - vec_cosine_distance(embedding, ?) AS score
			FROM rules
		)
		WHERE score >= ?
		ORDER BY score DESC
		LIMIT ?
	`

	rows, err := s.q.QueryContext(ctx, query, llm.EncodeVector(queryEmbedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar rules: %w", err)
	}
	defer rows.Close()

	results := []RelevantRule{}
	for rows.Next() {
		var rr RelevantRule
		if err := scanSQLiteRule(rows, &rr.Rule, &rr.RelevanceScore); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		results = append(results, rr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return results, nil
}

// Stats reports row counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM instructions),
			(SELECT COUNT(*) FROM instructions WHERE rule_id IS NOT NULL),
			(SELECT COUNT(*) FROM rules)
	`

	var st Stats
	if err := s.q.QueryRowContext(ctx, query).Scan(&st.Instructions, &st.LinkedInstructions, &st.Rules); err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return &st, nil
}

// Close releases the database connection. It is a no-op on a
// transactional store.
func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteInstruction(row rowScanner) (*Instruction, error) {
	var (
		inst       Instruction
		insertedAt string
		ruleID     sql.NullInt64
	)
	if err := row.Scan(&inst.ID, &inst.Instruction, &inst.Context, &insertedAt, &ruleID); err != nil {
		return nil, err
	}
	inst.InsertedAt, _ = parseTimestamp(insertedAt)
	if ruleID.Valid {
		id := ruleID.Int64
		inst.RuleID = &id
	}
	return &inst, nil
}

// scanSQLiteRule scans the rule columns in select order, followed by extra.
func scanSQLiteRule(row rowScanner, rule *Rule, extra ...any) error {
	var (
		category    string
		embedding   []byte
		lastApplied sql.NullString
		insertedAt  string
	)
	dest := []any{
		&rule.ID, &rule.RuleText, &category, &rule.Context, &embedding,
		&rule.CreatedFromInstructionID, &lastApplied, &rule.InstructionsCount, &insertedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	rule.Category = llm.Category(category)
	rule.Embedding = llm.DecodeVector(embedding)
	rule.InsertedAt, _ = parseTimestamp(insertedAt)
	if lastApplied.Valid {
		if t, err := parseTimestamp(lastApplied.String); err == nil {
			rule.LastApplied = &t
		}
	}
	return nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
