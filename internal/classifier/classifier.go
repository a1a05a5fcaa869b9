package classifier

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Result is the outcome of classifying one concern text.
type Result struct {
	Urgent       bool
	MatchedTerms []string
}

// Classifier performs case-insensitive term matching against a maintained
// list of urgent-safety indicators. It is pure and total: classification
// never fails, and unmatched or empty text is normal.
type Classifier struct {
	terms []string
}

// New builds a classifier from the given term list. Terms are lowercased and
// deduplicated; empty terms are dropped.
func New(terms []string) *Classifier {
	seen := make(map[string]struct{}, len(terms))
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		normalized := strings.ToLower(strings.TrimSpace(term))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		cleaned = append(cleaned, normalized)
	}
	sort.Strings(cleaned)

	return &Classifier{terms: cleaned}
}

// NewDefault builds a classifier from the built-in term list.
func NewDefault() *Classifier {
	return New(defaultTerms)
}

// NewFromFile loads a term list from path (one term per line, blank lines and
// lines starting with # are ignored). Terms from the file replace the
// built-in defaults entirely so the list stays externally maintainable.
func NewFromFile(path string) (*Classifier, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open term list: %w", err)
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read term list: %w", err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("term list %s contains no terms", path)
	}

	return New(terms), nil
}

// Classify matches text against the term list. It runs inline in the intake
// request path so the creation branch is decided before any row exists.
func (c *Classifier) Classify(text string) Result {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return Result{}
	}

	var matched []string
	for _, term := range c.terms {
		if strings.Contains(lowered, term) {
			matched = append(matched, term)
		}
	}

	return Result{Urgent: len(matched) > 0, MatchedTerms: matched}
}

// Terms returns a copy of the active term list, primarily for diagnostics.
func (c *Classifier) Terms() []string {
	out := make([]string, len(c.terms))
	copy(out, c.terms)
	return out
}
