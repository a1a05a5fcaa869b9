package ai

import "context"

// StrategyInput carries the context needed to generate intervention
// strategies for one concern.
type StrategyInput struct {
	StudentRef  string
	ConcernText string
	GradeHint   string
	Urgent      bool
}

// StrategyResult is the structured output of a generation call.
type StrategyResult struct {
	Summary    string                 `json:"summary"`
	Strategies []string               `json:"strategies"`
	Raw        map[string]interface{} `json:"raw,omitempty"`
}

// Text renders the result as the plain-text body stored on the submission.
func (r StrategyResult) Text() string {
	out := r.Summary
	for _, strategy := range r.Strategies {
		out += "\n- " + strategy
	}
	return out
}

// Generator describes an AI model capable of producing intervention
// strategies from a teacher's concern description.
type Generator interface {
	Generate(ctx context.Context, input StrategyInput) (StrategyResult, error)
}
