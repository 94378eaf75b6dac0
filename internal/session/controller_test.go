package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/clock"
	"github.com/devarena/devarena-backend/internal/model"
)

var testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type testEngine struct {
	ctrl    *Controller
	store   *MemoryStore
	answers *MemoryAnswerStore
	queue   *MemoryScoreQueue
	clk     *clock.Manual
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	clk := clock.NewManual(testStart)
	store := NewMemoryStore()
	answers := NewMemoryAnswerStore(clk.Now)
	queue := NewMemoryScoreQueue()
	return &testEngine{
		ctrl:    NewController(store, answers, queue, clk, zerolog.Nop()),
		store:   store,
		answers: answers,
		queue:   queue,
		clk:     clk,
	}
}

func (e *testEngine) createSession(t *testing.T, questions int, duration time.Duration) *model.Session {
	t.Helper()
	order := make([]uuid.UUID, questions)
	for i := range order {
		order[i] = uuid.New()
	}
	s, err := e.ctrl.CreateSession(context.Background(), uuid.New(), 42, order, duration)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func (e *testEngine) activateSession(t *testing.T, questions int, duration time.Duration) *model.Session {
	t.Helper()
	s := e.createSession(t, questions, duration)
	if _, err := e.ctrl.RequireIntegrity(context.Background(), s.ID); err != nil {
		t.Fatalf("RequireIntegrity: %v", err)
	}
	s, err := e.ctrl.ConfirmIntegrity(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("ConfirmIntegrity: %v", err)
	}
	return s
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.createSession(t, 3, time.Hour)
	if s.Status != model.SessionStatusCreated {
		t.Fatalf("status = %s, want CREATED", s.Status)
	}
	if s.StartedAt != nil || s.DeadlineAt != nil {
		t.Fatal("clock fields must stay unset before integrity confirmation")
	}

	s, err := e.ctrl.RequireIntegrity(ctx, s.ID)
	if err != nil {
		t.Fatalf("RequireIntegrity: %v", err)
	}
	if s.Status != model.SessionStatusAwaitingIntegrity {
		t.Fatalf("status = %s, want AWAITING_INTEGRITY", s.Status)
	}

	s, err = e.ctrl.ConfirmIntegrity(ctx, s.ID)
	if err != nil {
		t.Fatalf("ConfirmIntegrity: %v", err)
	}
	if s.Status != model.SessionStatusActive {
		t.Fatalf("status = %s, want ACTIVE", s.Status)
	}
	if s.StartedAt == nil || !s.StartedAt.Equal(testStart) {
		t.Fatalf("StartedAt = %v, want %v", s.StartedAt, testStart)
	}
	wantDeadline := testStart.Add(time.Hour)
	if s.DeadlineAt == nil || !s.DeadlineAt.Equal(wantDeadline) {
		t.Fatalf("DeadlineAt = %v, want %v", s.DeadlineAt, wantDeadline)
	}

	s, err = e.ctrl.NavigateTo(ctx, s.ID, 2)
	if err != nil {
		t.Fatalf("NavigateTo: %v", err)
	}
	if s.CurrentQuestionIndex != 2 {
		t.Fatalf("index = %d, want 2", s.CurrentQuestionIndex)
	}

	s, err = e.ctrl.Submit(ctx, s.ID, model.TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.Status != model.SessionStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", s.Status)
	}
	if s.SubmissionToken == nil {
		t.Fatal("submission token not set")
	}
	if s.SubmitTrigger == nil || *s.SubmitTrigger != model.TriggerManual {
		t.Fatalf("trigger = %v, want MANUAL", s.SubmitTrigger)
	}
	if got := e.queue.Enqueued(); len(got) != 1 || got[0] != s.ID {
		t.Fatalf("enqueued = %v, want exactly [%s]", got, s.ID)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ctrl.CreateSession(ctx, uuid.New(), 1, nil, time.Hour)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("empty order: err = %v, want ErrInvalidState", err)
	}

	_, err = e.ctrl.CreateSession(ctx, uuid.New(), 1, []uuid.UUID{uuid.New()}, 0)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("zero duration: err = %v, want ErrInvalidState", err)
	}
}

func TestOneLiveAttemptPerPair(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	assessmentID := uuid.New()
	order := []uuid.UUID{uuid.New()}

	first, err := e.ctrl.CreateSession(ctx, assessmentID, 7, order, time.Hour)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	if _, err := e.ctrl.CreateSession(ctx, assessmentID, 7, order, time.Hour); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate create: err = %v, want ErrAlreadyExists", err)
	}

	// Terminal sessions release the slot.
	if _, err := e.ctrl.RequireIntegrity(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ctrl.ConfirmIntegrity(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ctrl.Submit(ctx, first.ID, model.TriggerManual); err != nil {
		t.Fatal(err)
	}
	e.clk.Advance(time.Minute)
	if _, err := e.ctrl.CreateSession(ctx, assessmentID, 7, order, time.Hour); err != nil {
		t.Fatalf("create after terminal: %v", err)
	}
}

func TestConfirmIntegrityNeverMovesDeadline(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, time.Hour)
	firstDeadline := *s.DeadlineAt

	e.clk.Advance(10 * time.Minute)
	s, err := e.ctrl.ConfirmIntegrity(ctx, s.ID)
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if !s.DeadlineAt.Equal(firstDeadline) {
		t.Fatalf("deadline moved from %v to %v on repeat confirm", firstDeadline, s.DeadlineAt)
	}
	if !s.StartedAt.Equal(testStart) {
		t.Fatalf("StartedAt moved to %v", s.StartedAt)
	}
}

func TestRequireIntegrityPastCreatedIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, time.Hour)
	got, err := e.ctrl.RequireIntegrity(ctx, s.ID)
	if err != nil {
		t.Fatalf("RequireIntegrity on ACTIVE: %v", err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("status = %s, want ACTIVE", got.Status)
	}

	if _, err := e.ctrl.Submit(ctx, s.ID, model.TriggerManual); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ctrl.RequireIntegrity(ctx, s.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("RequireIntegrity on terminal: err = %v, want ErrInvalidState", err)
	}
}

func TestNavigateValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.createSession(t, 3, time.Hour)
	if _, err := e.ctrl.NavigateTo(ctx, s.ID, 1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("navigate before active: err = %v, want ErrInvalidState", err)
	}

	s = e.activateSession(t, 3, time.Hour)
	if _, err := e.ctrl.NavigateTo(ctx, s.ID, 3); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("navigate out of range: err = %v, want ErrInvalidState", err)
	}
	if _, err := e.ctrl.NavigateTo(ctx, s.ID, -1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("navigate negative: err = %v, want ErrInvalidState", err)
	}
}

func TestSaveAnswerGating(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.createSession(t, 2, time.Hour)
	questionID := s.QuestionOrder[0]

	if err := e.ctrl.SaveAnswer(ctx, s.ID, questionID, "go", "package main"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("save before active: err = %v, want ErrInvalidState", err)
	}

	if _, err := e.ctrl.RequireIntegrity(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ctrl.ConfirmIntegrity(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	if err := e.ctrl.SaveAnswer(ctx, s.ID, questionID, "go", "package main"); err != nil {
		t.Fatalf("save while active: %v", err)
	}
	draft, err := e.answers.Get(ctx, s.ID, questionID, "go")
	if err != nil {
		t.Fatalf("draft not stored: %v", err)
	}
	if draft.Code != "package main" {
		t.Fatalf("draft code = %q", draft.Code)
	}

	if err := e.ctrl.SaveAnswer(ctx, s.ID, uuid.New(), "go", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("save foreign question: err = %v, want ErrNotFound", err)
	}

	if _, err := e.ctrl.Submit(ctx, s.ID, model.TriggerManual); err != nil {
		t.Fatal(err)
	}
	if err := e.ctrl.SaveAnswer(ctx, s.ID, questionID, "go", "late edit"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("save after submit: err = %v, want ErrInvalidState", err)
	}
}

func TestTimeoutExpiry(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, 30*time.Minute)

	// One second before the deadline nothing happens.
	e.clk.Advance(30*time.Minute - time.Second)
	s2, err := e.ctrl.Tick(ctx, s.ID)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s2.Status != model.SessionStatusActive {
		t.Fatalf("status = %s before deadline, want ACTIVE", s2.Status)
	}

	e.clk.Advance(time.Second)
	s2, err = e.ctrl.Tick(ctx, s.ID)
	if err != nil {
		t.Fatalf("Tick at deadline: %v", err)
	}
	if s2.Status != model.SessionStatusExpired {
		t.Fatalf("status = %s, want EXPIRED", s2.Status)
	}
	if s2.SubmitTrigger == nil || *s2.SubmitTrigger != model.TriggerTimeout {
		t.Fatalf("trigger = %v, want TIMEOUT", s2.SubmitTrigger)
	}
	token := *s2.SubmissionToken

	// Redundant ticks and late manual submits observe the same record.
	s3, err := e.ctrl.Tick(ctx, s.ID)
	if err != nil {
		t.Fatalf("redundant Tick: %v", err)
	}
	if *s3.SubmissionToken != token {
		t.Fatal("redundant tick minted a new submission token")
	}
	s4, err := e.ctrl.Submit(ctx, s.ID, model.TriggerManual)
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if s4.Status != model.SessionStatusExpired || *s4.SubmissionToken != token {
		t.Fatal("late submit must return the winner's record unchanged")
	}

	if got := e.queue.Enqueued(); len(got) != 1 {
		t.Fatalf("scoring enqueued %d times, want 1", len(got))
	}
}

func TestSubmitFromPreClockStates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.createSession(t, 1, time.Hour)
	if _, err := e.ctrl.Submit(ctx, s.ID, model.TriggerManual); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("submit from CREATED: err = %v, want ErrInvalidState", err)
	}

	if _, err := e.ctrl.RequireIntegrity(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ctrl.Submit(ctx, s.ID, model.TriggerManual); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("submit from AWAITING_INTEGRITY: err = %v, want ErrInvalidState", err)
	}
}

func TestIntegrityGraceRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, time.Hour)

	s2, err := e.ctrl.ReportIntegrityLost(ctx, s.ID, 15*time.Second)
	if err != nil {
		t.Fatalf("ReportIntegrityLost: %v", err)
	}
	if s2.Status != model.SessionStatusCompromised {
		t.Fatalf("status = %s, want COMPROMISED", s2.Status)
	}
	wantGrace := testStart.Add(15 * time.Second)
	if s2.IntegrityGraceDeadline == nil || !s2.IntegrityGraceDeadline.Equal(wantGrace) {
		t.Fatalf("grace deadline = %v, want %v", s2.IntegrityGraceDeadline, wantGrace)
	}

	// A repeated loss report never extends the window.
	e.clk.Advance(5 * time.Second)
	s2, err = e.ctrl.ReportIntegrityLost(ctx, s.ID, 15*time.Second)
	if err != nil {
		t.Fatalf("repeat loss: %v", err)
	}
	if !s2.IntegrityGraceDeadline.Equal(wantGrace) {
		t.Fatalf("grace deadline moved to %v", s2.IntegrityGraceDeadline)
	}

	// Restore within the window resumes with the original deadline intact.
	s2, err = e.ctrl.ReportIntegrityRestored(ctx, s.ID)
	if err != nil {
		t.Fatalf("ReportIntegrityRestored: %v", err)
	}
	if s2.Status != model.SessionStatusActive {
		t.Fatalf("status = %s after restore, want ACTIVE", s2.Status)
	}
	if s2.IntegrityGraceDeadline != nil {
		t.Fatal("grace deadline must be cleared on restore")
	}
	if !s2.DeadlineAt.Equal(testStart.Add(time.Hour)) {
		t.Fatalf("session deadline changed to %v", s2.DeadlineAt)
	}
}

func TestIntegrityGraceExpiry(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, time.Hour)
	if _, err := e.ctrl.ReportIntegrityLost(ctx, s.ID, 15*time.Second); err != nil {
		t.Fatal(err)
	}

	e.clk.Advance(15 * time.Second)

	// Restoration after the window closed is a no-op.
	s2, err := e.ctrl.ReportIntegrityRestored(ctx, s.ID)
	if err != nil {
		t.Fatalf("late restore: %v", err)
	}
	if s2.Status != model.SessionStatusCompromised {
		t.Fatalf("status = %s, want COMPROMISED", s2.Status)
	}

	s2, err = e.ctrl.Tick(ctx, s.ID)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s2.Status != model.SessionStatusSubmitted {
		t.Fatalf("status = %s, want SUBMITTED", s2.Status)
	}
	if s2.SubmitTrigger == nil || *s2.SubmitTrigger != model.TriggerIntegrityExpired {
		t.Fatalf("trigger = %v, want INTEGRITY_EXPIRED", s2.SubmitTrigger)
	}
}

func TestDeadlineOutranksGraceWindow(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, 10*time.Second)
	if _, err := e.ctrl.ReportIntegrityLost(ctx, s.ID, 15*time.Second); err != nil {
		t.Fatal(err)
	}

	// Both deadlines have passed; the session deadline decides the outcome.
	e.clk.Advance(time.Minute)
	s2, err := e.ctrl.Tick(ctx, s.ID)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s2.Status != model.SessionStatusExpired {
		t.Fatalf("status = %s, want EXPIRED", s2.Status)
	}
	if *s2.SubmitTrigger != model.TriggerTimeout {
		t.Fatalf("trigger = %s, want TIMEOUT", *s2.SubmitTrigger)
	}
}

func TestConcurrentSubmitExactlyOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, time.Minute)
	e.clk.Advance(2 * time.Minute) // both manual submit and timeout qualify

	const racers = 16
	results := make([]*model.Session, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			var (
				got *model.Session
				err error
			)
			if i%2 == 0 {
				got, err = e.ctrl.Submit(ctx, s.ID, model.TriggerManual)
			} else {
				got, err = e.ctrl.Tick(ctx, s.ID)
			}
			if err != nil {
				t.Errorf("racer %d: %v", i, err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	if got := e.queue.Enqueued(); len(got) != 1 {
		t.Fatalf("scoring enqueued %d times, want exactly 1", len(got))
	}

	var token *uuid.UUID
	for i, r := range results {
		if r == nil {
			continue
		}
		if !r.Status.Terminal() {
			t.Fatalf("racer %d observed non-terminal status %s", i, r.Status)
		}
		if r.SubmissionToken == nil {
			t.Fatalf("racer %d observed nil submission token", i)
		}
		if token == nil {
			token = r.SubmissionToken
		} else if *token != *r.SubmissionToken {
			t.Fatalf("observed two submission tokens: %s and %s", token, r.SubmissionToken)
		}
	}
}

func TestAttachResult(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, time.Hour)
	result := &model.ScoreResult{TotalScore: 80, MaxScore: 100}

	if _, err := e.ctrl.AttachResult(ctx, s.ID, result); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("attach to active session: err = %v, want ErrInvalidState", err)
	}

	if _, err := e.ctrl.Submit(ctx, s.ID, model.TriggerManual); err != nil {
		t.Fatal(err)
	}

	s2, err := e.ctrl.AttachResult(ctx, s.ID, result)
	if err != nil {
		t.Fatalf("AttachResult: %v", err)
	}
	if s2.Result == nil || s2.Result.TotalScore != 80 {
		t.Fatalf("result = %+v", s2.Result)
	}

	// At-least-once delivery: a duplicate attach keeps the first result.
	s3, err := e.ctrl.AttachResult(ctx, s.ID, &model.ScoreResult{TotalScore: 0, MaxScore: 100})
	if err != nil {
		t.Fatalf("duplicate attach: %v", err)
	}
	if s3.Result.TotalScore != 80 {
		t.Fatalf("duplicate attach overwrote result: %+v", s3.Result)
	}
}

func TestFindDueAndUnscored(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	s := e.activateSession(t, 1, time.Minute)

	due, err := e.store.FindDue(ctx, e.clk.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("due before deadline = %v", due)
	}

	e.clk.Advance(2 * time.Minute)
	due, err = e.store.FindDue(ctx, e.clk.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0] != s.ID {
		t.Fatalf("due = %v, want [%s]", due, s.ID)
	}

	if _, err := e.ctrl.Tick(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	unscored, err := e.store.FindUnscored(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unscored) != 1 || unscored[0] != s.ID {
		t.Fatalf("unscored = %v, want [%s]", unscored, s.ID)
	}

	if _, err := e.ctrl.AttachResult(ctx, s.ID, &model.ScoreResult{}); err != nil {
		t.Fatal(err)
	}
	unscored, err = e.store.FindUnscored(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unscored) != 0 {
		t.Fatalf("unscored after result = %v", unscored)
	}
}
