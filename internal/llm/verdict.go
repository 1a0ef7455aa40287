package llm

import (
	"fmt"
	"strings"
)

// Category classifies a rule. The classifier only ever produces values from
// Categories.
type Category string

const (
	CategoryTesting       Category = "testing"
	CategoryNaming        Category = "naming"
	CategoryArchitecture  Category = "architecture"
	CategoryDocumentation Category = "documentation"
	CategoryErrorHandling Category = "error-handling"
	CategoryPerformance   Category = "performance"
	CategorySecurity      Category = "security"
	CategoryStyle         Category = "style"
	CategoryBestPractices Category = "best-practices"
)

// Categories lists every valid rule category in prompt order.
var Categories = []Category{
	CategoryTesting,
	CategoryNaming,
	CategoryArchitecture,
	CategoryDocumentation,
	CategoryErrorHandling,
	CategoryPerformance,
	CategorySecurity,
	CategoryStyle,
	CategoryBestPractices,
}

// CategoryNames returns Categories as plain strings, for schema enums.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// ParseCategory validates s against the fixed category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Verdict is the classifier's decision about one instruction. It is either
// Generalizable or NotGeneralizable; no other implementations exist.
type Verdict interface {
	isVerdict()
}

// Generalizable carries the abstract rule extracted from an instruction.
type Generalizable struct {
	RuleText string
	Category Category
}

// NotGeneralizable explains why no rule was extracted.
type NotGeneralizable struct {
	Reason string
}

func (Generalizable) isVerdict()    {}
func (NotGeneralizable) isVerdict() {}
