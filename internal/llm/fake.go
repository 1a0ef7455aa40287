package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// FakeEmbedder is a deterministic Embedder that never touches the network.
//
// With Vector set it always returns a copy of Vector; otherwise it returns
// HashVector(text). With Err set, calls fail with Err: every call when
// FailFirst is zero, or only the first FailFirst calls otherwise.
type FakeEmbedder struct {
	Vector    []float32
	Err       error
	FailFirst int

	mu    sync.Mutex
	calls int
}

// Embed implements Embedder.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.Err != nil && (f.FailFirst == 0 || n <= f.FailFirst) {
		return nil, f.Err
	}
	if f.Vector != nil {
		return append([]float32(nil), f.Vector...), nil
	}
	return HashVector(text, EmbeddingDimensions), nil
}

// Calls reports how many times Embed has been invoked.
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Reset clears the call counter.
func (f *FakeEmbedder) Reset() {
	f.mu.Lock()
	f.calls = 0
	f.mu.Unlock()
}

// HashVector builds a unit-length bag-of-words vector by hashing each word of
// text into one of dims buckets. Texts sharing words get similar vectors.
func HashVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		idx := int(sum % uint32(dims))
		if sum&(1<<31) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// FakeClassifier is a deterministic Classifier.
//
// With Verdict set it always returns Verdict. Otherwise it treats any
// instruction containing a digit as a one-off (coordinates, sizes, ids) and
// turns everything else into a rule whose category is guessed from keywords.
type FakeClassifier struct {
	Verdict Verdict
	Err     error

	mu    sync.Mutex
	calls int
}

// Classify implements Classifier.
func (f *FakeClassifier) Classify(_ context.Context, instruction, _ string) (Verdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if f.Verdict != nil {
		return f.Verdict, nil
	}

	text := strings.TrimSpace(instruction)
	if strings.IndexFunc(text, unicode.IsDigit) >= 0 {
		return NotGeneralizable{Reason: "Refers to concrete values used once"}, nil
	}
	return Generalizable{RuleText: text, Category: guessCategory(text)}, nil
}

// Calls reports how many times Classify has been invoked.
func (f *FakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryTesting, []string{"test", "mock", "assert", "coverage"}},
	{CategorySecurity, []string{"secret", "token", "password", "sanitize", "auth"}},
	{CategoryErrorHandling, []string{"error", "panic", "retry", "recover"}},
	{CategoryNaming, []string{"name", "rename", "prefix", "suffix"}},
	{CategoryPerformance, []string{"cache", "allocation", "latency", "fast"}},
	{CategoryDocumentation, []string{"comment", "doc", "readme"}},
	{CategoryArchitecture, []string{"package", "layer", "interface", "module"}},
	{CategoryStyle, []string{"format", "indent", "style", "typescript"}},
}

func guessCategory(text string) Category {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return CategoryBestPractices
}

var (
	_ Embedder   = (*FakeEmbedder)(nil)
	_ Classifier = (*FakeClassifier)(nil)
)
