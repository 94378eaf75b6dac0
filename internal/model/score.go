package model

import "github.com/google/uuid"

// Verdict is the judge's ruling on one answer.
type Verdict string

const (
	VerdictAccepted          Verdict = "ACCEPTED"
	VerdictWrongAnswer       Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictRuntimeError      Verdict = "RUNTIME_ERROR"
	VerdictCompileError      Verdict = "COMPILE_ERROR"
	VerdictNoSubmission      Verdict = "NO_SUBMISSION"
)

// QuestionScore is the outcome for one question.
type QuestionScore struct {
	QuestionID  uuid.UUID `json:"question_id"`
	Verdict     Verdict   `json:"verdict"`
	TestsPassed int       `json:"tests_passed"`
	TestsTotal  int       `json:"tests_total"`
	Points      float64   `json:"points"`
	MaxPoints   float64   `json:"max_points"`
}

// ScoreResult aggregates per-question outcomes into the final score.
type ScoreResult struct {
	Questions  []QuestionScore `json:"questions"`
	TotalScore float64         `json:"total_score"`
	MaxScore   float64         `json:"max_score"`
}

// Clone returns a deep copy of the result.
func (r *ScoreResult) Clone() *ScoreResult {
	cp := *r
	cp.Questions = append([]QuestionScore(nil), r.Questions...)
	return &cp
}
