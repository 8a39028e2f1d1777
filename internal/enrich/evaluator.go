// Package enrich asks an external reasoning service for a natural-language
// code-quality assessment of an evaluated submission. The call is advisory:
// every failure degrades to a fixed fallback string, never to an error.
package enrich

import "context"

// FallbackEvaluation is returned whenever the external service cannot be
// reached or answers with something unusable.
const FallbackEvaluation = "Could not get AI evaluation."

// Input is the full context the evaluator sees. All fields originate from
// untrusted users and are treated as data, never as instructions.
type Input struct {
	ProblemTitle       string `json:"problem_title"`
	ProblemDescription string `json:"problem_description"`
	ProblemLanguage    string `json:"problem_language"`
	SolutionCode       string `json:"solution_code"`
	TestCode           string `json:"test_code"`
	Outcome            string `json:"outcome"`
	Output             string `json:"output"`
}

// Evaluator produces a free-text assessment of a submitted solution.
// Implementations never return an error alongside the text; the text is
// FallbackEvaluation when the assessment could not be obtained.
type Evaluator interface {
	Evaluate(ctx context.Context, input Input) string
}
