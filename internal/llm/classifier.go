package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Classifier decides whether an instruction yields a reusable rule.
type Classifier interface {
	Classify(ctx context.Context, instruction, contextText string) (Verdict, error)
}

// RuleClassifier is a Classifier backed by a schema-constrained chat model.
type RuleClassifier struct {
	model  JSONGenerator
	retry  RetryConfig
	logger *zap.Logger
}

// NewRuleClassifier creates a classifier that calls model at most
// cfg.MaxAttempts times per instruction.
func NewRuleClassifier(model JSONGenerator, cfg RetryConfig, logger *zap.Logger) *RuleClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleClassifier{model: model, retry: cfg, logger: logger}
}

// verdictResponse mirrors verdictSchema.
type verdictResponse struct {
	Generalizable *bool  `json:"generalizable"`
	RuleText      string `json:"rule_text"`
	Category      string `json:"category"`
	Reason        string `json:"reason"`
}

// Classify asks the model for a verdict. Call failures are retried; an answer
// that does not fit the schema fails at once.
func (c *RuleClassifier) Classify(ctx context.Context, instruction, contextText string) (Verdict, error) {
	prompt, err := buildClassifierPrompt(instruction, contextText)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier prompt: %w", err)
	}

	var verdict Verdict
	attempts, err := retry(ctx, c.retry, c.logger, "classify", func() error {
		raw, err := c.model.GenerateJSON(ctx, classifierSystemPrompt, prompt, verdictSchema())
		if err != nil {
			if isContractError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		v, err := ParseVerdict(raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		verdict = v
		return nil
	})
	if err != nil {
		if isContractError(err) {
			return nil, fmt.Errorf("classifier response rejected: %w", err)
		}
		return nil, fmt.Errorf("classification failed after %d attempts: %w", attempts, err)
	}

	return verdict, nil
}

// ParseVerdict decodes a model answer into a Verdict, enforcing that a rule
// carries text and a known category and that a rejection carries a reason.
func ParseVerdict(raw string) (Verdict, error) {
	var resp verdictResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Generalizable == nil {
		return nil, fmt.Errorf("%w: missing generalizable flag", ErrMalformedResponse)
	}

	if !*resp.Generalizable {
		reason := strings.TrimSpace(resp.Reason)
		if reason == "" {
			return nil, fmt.Errorf("%w: missing reason", ErrMalformedResponse)
		}
		return NotGeneralizable{Reason: reason}, nil
	}

	ruleText := strings.TrimSpace(resp.RuleText)
	if ruleText == "" {
		return nil, fmt.Errorf("%w: missing rule_text", ErrMalformedResponse)
	}
	category, err := ParseCategory(resp.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return Generalizable{RuleText: ruleText, Category: category}, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ Classifier = (*RuleClassifier)(nil)
