package model

import "time"

// Submission status machine. ACCEPTED → EVALUATING → EVALUATED, no other
// transitions; once EVALUATED a submission is immutable.
const (
	StatusAccepted   = "ACCEPTED"
	StatusEvaluating = "EVALUATING"
	StatusEvaluated  = "EVALUATED"
)

// ValidTransition reports whether a submission may move between two states.
func ValidTransition(from, to string) bool {
	switch {
	case from == StatusAccepted && to == StatusEvaluating:
		return true
	case from == StatusEvaluating && to == StatusEvaluated:
		return true
	}
	return false
}

// Submission is one attempt by one user at one problem.
type Submission struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	ProblemID int64     `json:"problem_id"`
	Solution  string    `json:"solution"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	// Result is set exactly when Status is EVALUATED.
	Result *Result `json:"result"`
}

// Result is the verdict for exactly one submission, written only by the
// evaluation pipeline.
type Result struct {
	ID           int64   `json:"id"`
	SubmissionID int64   `json:"-"`
	Output       string  `json:"output"`
	Outcome      string  `json:"outcome"`
	AIEvaluation *string `json:"ai_evaluation"`
}
