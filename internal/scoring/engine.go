// Package scoring resolves a terminal session's answer drafts against the
// external judge and aggregates the final score.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/session"
)

// ErrJudgeUnavailable marks a scoring dependency outage. It is never
// conflated with a failing verdict: the session stays terminal with a null
// result and the reconciliation sweep retries later.
var ErrJudgeUnavailable = errors.New("judge unavailable")

// ErrJudgeRejected marks a submission the judge refuses to run at all
// (unknown language id, oversized payload). Unlike an outage, retrying the
// same job cannot succeed.
var ErrJudgeRejected = errors.New("judge rejected submission")

// Judgement is the judge's response for one submission.
type Judgement struct {
	Verdict     model.Verdict
	TestsPassed int
	TestsTotal  int
	// Score is a fractional score when the judge awards partial credit.
	// It is passed through unmodified; nil means all-or-nothing.
	Score *float64
}

// Judge is the external code-execution interface.
type Judge interface {
	Submit(ctx context.Context, code, language string, testCases []model.TestCase) (*Judgement, error)
}

// QuestionSource supplies question reference data (points, test cases).
type QuestionSource interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error)
}

// Engine scores a session. It is invoked exactly once per terminal
// transition; idempotency on retries is enforced by the caller, which skips
// sessions that already carry a result.
type Engine struct {
	answers   session.AnswerStore
	questions QuestionSource
	judge     Judge
	log       zerolog.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(answers session.AnswerStore, questions QuestionSource, judge Judge, log zerolog.Logger) *Engine {
	return &Engine{
		answers:   answers,
		questions: questions,
		judge:     judge,
		log:       log.With().Str("component", "scoring_engine").Logger(),
	}
}

// Score resolves every question in the session's fixed order. For each one
// it reads the latest durably stored draft (absence scores as
// NO_SUBMISSION, never as an error) and sends it to the judge. A judge
// outage aborts the whole run with ErrJudgeUnavailable so no partial result
// is ever persisted.
func (e *Engine) Score(ctx context.Context, s *model.Session) (*model.ScoreResult, error) {
	result := &model.ScoreResult{
		Questions: make([]model.QuestionScore, 0, len(s.QuestionOrder)),
	}

	for _, questionID := range s.QuestionOrder {
		q, err := e.questions.GetQuestion(ctx, questionID)
		if err != nil {
			return nil, fmt.Errorf("load question %s: %w", questionID, err)
		}
		maxPoints := float64(q.Points)

		qs := model.QuestionScore{
			QuestionID: questionID,
			TestsTotal: len(q.TestCases),
			MaxPoints:  maxPoints,
		}

		draft, err := e.answers.Latest(ctx, s.ID, questionID)
		switch {
		case errors.Is(err, session.ErrNotFound):
			qs.Verdict = model.VerdictNoSubmission
		case err != nil:
			return nil, fmt.Errorf("load draft for question %s: %w", questionID, err)
		default:
			j, err := e.judge.Submit(ctx, draft.Code, draft.Language, q.TestCases)
			if err != nil {
				return nil, fmt.Errorf("judge question %s: %w", questionID, err)
			}
			qs.Verdict = j.Verdict
			qs.TestsPassed = j.TestsPassed
			qs.TestsTotal = j.TestsTotal
			qs.Points = awardPoints(j, maxPoints)
		}

		result.Questions = append(result.Questions, qs)
		result.TotalScore += qs.Points
		result.MaxScore += maxPoints
	}

	e.log.Info().
		Str("session_id", s.ID.String()).
		Float64("total_score", result.TotalScore).
		Float64("max_score", result.MaxScore).
		Msg("Session scored")

	return result, nil
}

// awardPoints gives full points only for a fully passing verdict, unless the
// judge itself returned a fractional score, which passes through unmodified.
func awardPoints(j *Judgement, maxPoints float64) float64 {
	if j.Score != nil {
		return *j.Score * maxPoints
	}
	if j.Verdict == model.VerdictAccepted && j.TestsPassed == j.TestsTotal {
		return maxPoints
	}
	return 0
}
