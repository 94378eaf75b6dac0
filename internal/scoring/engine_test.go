package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/session"
)

// stubJudge returns canned judgements keyed by submitted code.
type stubJudge struct {
	judgements map[string]*Judgement
	err        error
	calls      int
}

func (j *stubJudge) Submit(_ context.Context, code, _ string, _ []model.TestCase) (*Judgement, error) {
	j.calls++
	if j.err != nil {
		return nil, j.err
	}
	if jm, ok := j.judgements[code]; ok {
		return jm, nil
	}
	return &Judgement{Verdict: model.VerdictWrongAnswer}, nil
}

type stubQuestions map[uuid.UUID]*model.Question

func (q stubQuestions) GetQuestion(_ context.Context, id uuid.UUID) (*model.Question, error) {
	question, ok := q[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return question, nil
}

func newQuestion(points, tests int) *model.Question {
	q := &model.Question{ID: uuid.New(), Points: points}
	for i := 0; i < tests; i++ {
		q.TestCases = append(q.TestCases, model.TestCase{ID: uuid.New(), Hidden: true})
	}
	return q
}

func terminalSession(order ...uuid.UUID) *model.Session {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	return &model.Session{
		ID:            uuid.New(),
		Status:        model.SessionStatusSubmitted,
		QuestionOrder: order,
		FinishedAt:    &now,
	}
}

func TestScoreAggregatesVerdicts(t *testing.T) {
	ctx := context.Background()

	accepted := newQuestion(100, 4)
	partial := newQuestion(50, 4)
	questions := stubQuestions{accepted.ID: accepted, partial.ID: partial}

	s := terminalSession(accepted.ID, partial.ID)

	answers := session.NewMemoryAnswerStore(nil)
	answers.Put(ctx, s.ID, accepted.ID, "go", "solution-a")
	answers.Put(ctx, s.ID, partial.ID, "python", "solution-b")

	judge := &stubJudge{judgements: map[string]*Judgement{
		"solution-a": {Verdict: model.VerdictAccepted, TestsPassed: 4, TestsTotal: 4},
		"solution-b": {Verdict: model.VerdictWrongAnswer, TestsPassed: 2, TestsTotal: 4},
	}}

	engine := NewEngine(answers, questions, judge, zerolog.Nop())
	result, err := engine.Score(ctx, s)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if len(result.Questions) != 2 {
		t.Fatalf("scored %d questions, want 2", len(result.Questions))
	}
	if result.Questions[0].Points != 100 {
		t.Fatalf("accepted points = %v, want 100", result.Questions[0].Points)
	}
	// All-or-nothing without a fractional score from the judge.
	if result.Questions[1].Points != 0 {
		t.Fatalf("partial points = %v, want 0", result.Questions[1].Points)
	}
	if result.TotalScore != 100 || result.MaxScore != 150 {
		t.Fatalf("total = %v/%v, want 100/150", result.TotalScore, result.MaxScore)
	}
}

func TestScoreFractionalPassthrough(t *testing.T) {
	ctx := context.Background()

	q := newQuestion(80, 10)
	questions := stubQuestions{q.ID: q}
	s := terminalSession(q.ID)

	answers := session.NewMemoryAnswerStore(nil)
	answers.Put(ctx, s.ID, q.ID, "go", "half-right")

	fraction := 0.5
	judge := &stubJudge{judgements: map[string]*Judgement{
		"half-right": {Verdict: model.VerdictWrongAnswer, TestsPassed: 5, TestsTotal: 10, Score: &fraction},
	}}

	engine := NewEngine(answers, questions, judge, zerolog.Nop())
	result, err := engine.Score(ctx, s)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if result.Questions[0].Points != 40 {
		t.Fatalf("fractional points = %v, want 40", result.Questions[0].Points)
	}
}

func TestScoreMissingDraftIsNoSubmission(t *testing.T) {
	ctx := context.Background()

	answered := newQuestion(100, 2)
	skipped := newQuestion(100, 2)
	questions := stubQuestions{answered.ID: answered, skipped.ID: skipped}
	s := terminalSession(answered.ID, skipped.ID)

	answers := session.NewMemoryAnswerStore(nil)
	answers.Put(ctx, s.ID, answered.ID, "go", "only-answer")

	judge := &stubJudge{judgements: map[string]*Judgement{
		"only-answer": {Verdict: model.VerdictAccepted, TestsPassed: 2, TestsTotal: 2},
	}}

	engine := NewEngine(answers, questions, judge, zerolog.Nop())
	result, err := engine.Score(ctx, s)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if result.Questions[1].Verdict != model.VerdictNoSubmission {
		t.Fatalf("verdict = %s, want NO_SUBMISSION", result.Questions[1].Verdict)
	}
	if result.Questions[1].Points != 0 {
		t.Fatalf("no-submission points = %v", result.Questions[1].Points)
	}
	if judge.calls != 1 {
		t.Fatalf("judge called %d times, want 1 (unanswered questions skip the judge)", judge.calls)
	}
	// The unanswered question still counts toward the maximum.
	if result.MaxScore != 200 {
		t.Fatalf("max = %v, want 200", result.MaxScore)
	}
}

func TestScoreUsesLatestDraftAcrossLanguages(t *testing.T) {
	ctx := context.Background()

	q := newQuestion(100, 1)
	questions := stubQuestions{q.ID: q}
	s := terminalSession(q.ID)

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	answers := session.NewMemoryAnswerStore(func() time.Time {
		ts = ts.Add(time.Minute)
		return ts
	})
	answers.Put(ctx, s.ID, q.ID, "go", "older")
	answers.Put(ctx, s.ID, q.ID, "python", "newest")

	judge := &stubJudge{judgements: map[string]*Judgement{
		"newest": {Verdict: model.VerdictAccepted, TestsPassed: 1, TestsTotal: 1},
		"older":  {Verdict: model.VerdictWrongAnswer, TestsPassed: 0, TestsTotal: 1},
	}}

	engine := NewEngine(answers, questions, judge, zerolog.Nop())
	result, err := engine.Score(ctx, s)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if result.TotalScore != 100 {
		t.Fatalf("total = %v: the newest draft must be the one judged", result.TotalScore)
	}
}

func TestScoreJudgeOutageAbortsRun(t *testing.T) {
	ctx := context.Background()

	q1 := newQuestion(100, 1)
	q2 := newQuestion(100, 1)
	questions := stubQuestions{q1.ID: q1, q2.ID: q2}
	s := terminalSession(q1.ID, q2.ID)

	answers := session.NewMemoryAnswerStore(nil)
	answers.Put(ctx, s.ID, q1.ID, "go", "a")
	answers.Put(ctx, s.ID, q2.ID, "go", "b")

	judge := &stubJudge{err: ErrJudgeUnavailable}

	engine := NewEngine(answers, questions, judge, zerolog.Nop())
	result, err := engine.Score(ctx, s)
	if !errors.Is(err, ErrJudgeUnavailable) {
		t.Fatalf("err = %v, want ErrJudgeUnavailable", err)
	}
	if result != nil {
		t.Fatal("no partial result may be returned on a judge outage")
	}
}

func TestScoreJudgeRejectionStaysDistinguishable(t *testing.T) {
	ctx := context.Background()

	q := newQuestion(100, 1)
	questions := stubQuestions{q.ID: q}
	s := terminalSession(q.ID)

	answers := session.NewMemoryAnswerStore(nil)
	answers.Put(ctx, s.ID, q.ID, "go", "a")

	judge := &stubJudge{err: fmt.Errorf("%w: status 422", ErrJudgeRejected)}

	engine := NewEngine(answers, questions, judge, zerolog.Nop())
	result, err := engine.Score(ctx, s)
	if !errors.Is(err, ErrJudgeRejected) {
		t.Fatalf("err = %v, want ErrJudgeRejected to survive wrapping", err)
	}
	if errors.Is(err, ErrJudgeUnavailable) {
		t.Fatal("a rejection must not look like an outage to the worker")
	}
	if result != nil {
		t.Fatal("no partial result may be returned on a rejection")
	}
}

func TestAwardPoints(t *testing.T) {
	full := awardPoints(&Judgement{Verdict: model.VerdictAccepted, TestsPassed: 3, TestsTotal: 3}, 60)
	if full != 60 {
		t.Fatalf("full pass = %v, want 60", full)
	}

	// Accepted verdict with a missed test never awards full points.
	inconsistent := awardPoints(&Judgement{Verdict: model.VerdictAccepted, TestsPassed: 2, TestsTotal: 3}, 60)
	if inconsistent != 0 {
		t.Fatalf("inconsistent accepted = %v, want 0", inconsistent)
	}

	fraction := 0.25
	partial := awardPoints(&Judgement{Verdict: model.VerdictTimeLimitExceeded, Score: &fraction}, 60)
	if partial != 15 {
		t.Fatalf("fractional = %v, want 15", partial)
	}
}
