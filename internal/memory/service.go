package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/easeaico/adk-rule-memory/internal/llm"
	"go.uber.org/zap"
	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const (
	// MaxResultsLimit bounds RelevantRulesQuery.MaxResults.
	MaxResultsLimit = 100

	// RememberToolName is the tool whose presence in a session means the
	// agent already stored its instructions explicitly.
	RememberToolName = "remember_instruction"
)

// Outcome is the terminal state of one intake request.
type Outcome int

const (
	// OutcomeStored means an instruction and its rule were persisted.
	OutcomeStored Outcome = iota + 1
	// OutcomeSkipped means the instruction was not generalizable; nothing was written.
	OutcomeSkipped
)

// RememberResult describes what RememberInstruction did.
type RememberResult struct {
	Outcome     Outcome
	Instruction *Instruction
	Rule        *Rule
	// Reason is set when Outcome is OutcomeSkipped.
	Reason string
}

// RelevantRulesQuery is the input of RelevantRules.
type RelevantRulesQuery struct {
	TaskDescription     string
	MaxResults          int
	SimilarityThreshold float64
}

// Validate checks the query bounds.
func (q RelevantRulesQuery) Validate() error {
	if strings.TrimSpace(q.TaskDescription) == "" {
		return &ValidationError{Field: "taskDescription", Reason: "must not be empty"}
	}
	if q.MaxResults < 1 || q.MaxResults > MaxResultsLimit {
		return &ValidationError{Field: "maxResults", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxResultsLimit, q.MaxResults)}
	}
	if !(q.SimilarityThreshold >= -1 && q.SimilarityThreshold <= 1) {
		return &ValidationError{Field: "similarityThreshold", Reason: fmt.Sprintf("must be between -1 and 1, got %v", q.SimilarityThreshold)}
	}
	return nil
}

// ServiceConfig holds the retrieval defaults used by Search.
type ServiceConfig struct {
	SearchMaxResults int
	SearchThreshold  float64
}

// Service is the rule memory: it turns instructions into rules and finds the
// rules relevant to a task. It also implements adk's memory.Service.
type Service struct {
	store      Store
	classifier llm.Classifier
	embedder   llm.Embedder
	cfg        ServiceConfig
	logger     *zap.Logger
}

// NewService creates a new rule memory service.
func NewService(store Store, classifier llm.Classifier, embedder llm.Embedder, cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SearchMaxResults <= 0 {
		cfg.SearchMaxResults = 5
	}
	return &Service{
		store:      store,
		classifier: classifier,
		embedder:   embedder,
		cfg:        cfg,
		logger:     logger,
	}
}

// RememberInstruction classifies an instruction and, when it is
// generalizable, stores the instruction, its rule and the link between them
// in one transaction. A non-generalizable instruction writes nothing and is
// reported through RememberResult, not as an error.
func (s *Service) RememberInstruction(ctx context.Context, instruction, contextText string) (*RememberResult, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, &ValidationError{Field: "instruction", Reason: "must not be empty"}
	}

	verdict, err := s.classifier.Classify(ctx, instruction, contextText)
	if err != nil {
		return nil, &StepError{Step: StepClassify, Err: err}
	}

	switch v := verdict.(type) {
	case llm.NotGeneralizable:
		s.logger.Info("instruction not generalizable", zap.String("reason", v.Reason))
		return &RememberResult{Outcome: OutcomeSkipped, Reason: v.Reason}, nil
	case llm.Generalizable:
		return s.storeRule(ctx, instruction, contextText, v)
	default:
		return nil, &StepError{Step: StepClassify, Err: fmt.Errorf("unexpected verdict type %T", verdict)}
	}
}

func (s *Service) storeRule(ctx context.Context, instruction, contextText string, v llm.Generalizable) (*RememberResult, error) {
	// The embedding call stays outside the transaction so that a slow
	// provider never holds the database write lock.
	embedding, err := embedRule(ctx, s.embedder, v.RuleText)
	if err != nil {
		s.logger.Warn("failed to remember instruction", zap.String("step", string(StepRule)), zap.Error(err))
		return nil, &StepError{Step: StepRule, Err: err}
	}

	var result *RememberResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		inst, err := tx.CreateInstruction(ctx, instruction, contextText)
		if err != nil {
			return &StepError{Step: StepInstruction, Err: err}
		}

		rule, err := tx.InsertRule(ctx, v.RuleText, v.Category, contextText, inst.ID, embedding)
		if err != nil {
			return &StepError{Step: StepRule, Err: err}
		}

		if err := tx.LinkToRule(ctx, inst.ID, rule.ID); err != nil {
			return &StepError{Step: StepLink, Err: err}
		}
		ruleID := rule.ID
		inst.RuleID = &ruleID

		result = &RememberResult{Outcome: OutcomeStored, Instruction: inst, Rule: rule}
		return nil
	})
	if err != nil {
		if FailedStep(err) == "" {
			err = &StepError{Step: StepStorage, Err: err}
		}
		s.logger.Warn("failed to remember instruction", zap.String("step", string(FailedStep(err))), zap.Error(err))
		return nil, err
	}

	s.logger.Info("rule stored",
		zap.Int64("instruction_id", result.Instruction.ID),
		zap.Int64("rule_id", result.Rule.ID),
		zap.String("category", string(result.Rule.Category)),
	)
	return result, nil
}

// RelevantRules embeds the task description and returns the most similar
// rules. An empty result is not an error.
func (s *Service) RelevantRules(ctx context.Context, q RelevantRulesQuery) ([]RelevantRule, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, strings.TrimSpace(q.TaskDescription))
	if err != nil {
		return nil, &StepError{Step: StepEmbedding, Err: err}
	}

	rules, err := s.store.FindSimilarRules(ctx, embedding, q.MaxResults, q.SimilarityThreshold)
	if err != nil {
		return nil, &StepError{Step: StepSearch, Err: err}
	}

	s.logger.Debug("relevant rules retrieved", zap.Int("count", len(rules)))
	return rules, nil
}

// AddSession implements memory.Service interface.
// It feeds the last user message of the session, with the agent message
// preceding it as context, through RememberInstruction, unless the agent
// already called the remember tool during the session.
func (s *Service) AddSession(ctx context.Context, sess session.Session) error {
	var (
		instruction  string
		contextText  string
		lastResponse string
	)

	for event := range sess.Events().All() {
		if event.Content == nil {
			continue
		}

		for _, part := range event.Content.Parts {
			if part.FunctionCall != nil && part.FunctionCall.Name == RememberToolName {
				return nil
			}
		}

		text := strings.Join(extractTextFromContent([]*genai.Content{event.Content}), " ")
		if text == "" {
			continue
		}
		if event.Author == "user" {
			instruction = text
			contextText = lastResponse
		} else {
			lastResponse = text
		}
	}

	if instruction == "" {
		return nil
	}

	if _, err := s.RememberInstruction(ctx, instruction, contextText); err != nil {
		return fmt.Errorf("failed to remember session instruction: %w", err)
	}
	return nil
}

// Search implements memory.Service interface.
// It returns the rules relevant to the query as memory entries.
func (s *Service) Search(ctx context.Context, req *adkmemory.SearchRequest) (*adkmemory.SearchResponse, error) {
	rules, err := s.RelevantRules(ctx, RelevantRulesQuery{
		TaskDescription:     req.Query,
		MaxResults:          s.cfg.SearchMaxResults,
		SimilarityThreshold: s.cfg.SearchThreshold,
	})
	if errors.Is(err, ErrInvalidInput) {
		return &adkmemory.SearchResponse{Memories: []adkmemory.Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search relevant rules: %w", err)
	}

	memories := make([]adkmemory.Entry, 0, len(rules))
	for _, r := range rules {
		contents := genai.Text(fmt.Sprintf("[%s] %s", r.Category, r.RuleText))
		if len(contents) == 0 {
			continue
		}
		memories = append(memories, adkmemory.Entry{
			Content:   contents[0],
			Author:    "system",
			Timestamp: r.InsertedAt,
		})
	}

	return &adkmemory.SearchResponse{Memories: memories}, nil
}

// extractTextFromContent extracts text from genai.Content parts
func extractTextFromContent(content []*genai.Content) []string {
	var texts []string
	for _, c := range content {
		for _, part := range c.Parts {
			if text := part.Text; text != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts
}

var _ adkmemory.Service = (*Service)(nil)
