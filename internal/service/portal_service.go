package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devarena/devarena-backend/internal/model"
	"github.com/devarena/devarena-backend/internal/repository"
	"github.com/devarena/devarena-backend/internal/session"
)

// ErrAssessmentUnavailable means the assessment is not open for joining.
var ErrAssessmentUnavailable = errors.New("assessment is not available for joining")

// PortalService handles the participant-facing flows around the session
// engine: lobby listing, the idempotent join, papers and state snapshots.
type PortalService struct {
	ctrl           *session.Controller
	timer          *session.Timer
	assessmentRepo *repository.AssessmentRepository
	questionRepo   *repository.QuestionRepository
	answerRepo     *repository.AnswerRepository
	log            zerolog.Logger
}

// NewPortalService creates a new PortalService.
func NewPortalService(
	ctrl *session.Controller,
	timer *session.Timer,
	assessmentRepo *repository.AssessmentRepository,
	questionRepo *repository.QuestionRepository,
	answerRepo *repository.AnswerRepository,
	log zerolog.Logger,
) *PortalService {
	return &PortalService{
		ctrl:           ctrl,
		timer:          timer,
		assessmentRepo: assessmentRepo,
		questionRepo:   questionRepo,
		answerRepo:     answerRepo,
		log:            log.With().Str("component", "portal_service").Logger(),
	}
}

// LobbyEntry is an assessment as displayed in the participant lobby,
// overlaid with the participant's own session status.
type LobbyEntry struct {
	model.Assessment
	SessionID     *uuid.UUID           `json:"session_id,omitempty"`
	SessionStatus *model.SessionStatus `json:"session_status,omitempty"`
	TotalScore    *float64             `json:"total_score,omitempty"`
}

// GetLobby returns published assessments with the participant's session
// status overlaid.
func (s *PortalService) GetLobby(ctx context.Context, participantID int) ([]LobbyEntry, error) {
	assessments, err := s.assessmentRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}

	sessions, err := s.assessmentRepo.ListSessionsByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	lobby := make([]LobbyEntry, 0, len(assessments))
	for _, a := range assessments {
		entry := LobbyEntry{Assessment: a}
		if sess, ok := sessions[a.ID]; ok {
			id := sess.ID
			status := sess.Status
			entry.SessionID = &id
			entry.SessionStatus = &status
			if sess.Result != nil {
				score := sess.Result.TotalScore
				entry.TotalScore = &score
			}
		}
		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// Join creates a session for the participant, fixing the question order and
// duration from the assessment definition. Joining an assessment that
// already has a session returns the existing one, so refreshes and second
// devices converge on a single attempt.
func (s *PortalService) Join(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.Session, error) {
	assessment, err := s.assessmentRepo.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if assessment.Status != model.AssessmentStatusPublished {
		return nil, ErrAssessmentUnavailable
	}

	questions, err := s.questionRepo.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrAssessmentUnavailable
	}
	order := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		order = append(order, q.ID)
	}

	sess, err := s.ctrl.CreateSession(ctx, assessmentID, participantID, order, assessment.Duration())
	if errors.Is(err, session.ErrAlreadyExists) {
		// Concurrent or repeated join — return the winner's session.
		return s.ctrl.FindByPair(ctx, assessmentID, participantID)
	}
	return sess, err
}

// GetPaper returns the assessment questions without hidden test data.
// Requires an existing session so participants cannot download papers for
// assessments they have not joined.
func (s *PortalService) GetPaper(ctx context.Context, assessmentID uuid.UUID, participantID int) (*model.AssessmentPaper, error) {
	if _, err := s.ctrl.FindByPair(ctx, assessmentID, participantID); err != nil {
		return nil, err
	}

	assessment, err := s.assessmentRepo.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	questions, err := s.questionRepo.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	paper := &model.AssessmentPaper{
		AssessmentID:    assessmentID,
		Title:           assessment.Title,
		DurationMinutes: assessment.DurationMinutes,
		Questions:       make([]model.QuestionForParticip, 0, len(questions)),
	}
	for i := range questions {
		paper.Questions = append(paper.Questions, questions[i].ForParticipant())
	}
	return paper, nil
}

// GetState returns the snapshot used on load and reload: status, derived
// remaining time and autosaved answers. A tick runs first, so reconnecting
// after the deadline observes EXPIRED rather than a stale ACTIVE.
func (s *PortalService) GetState(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.SessionState, error) {
	sess, err := s.ctrl.Tick(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ParticipantID != participantID {
		return nil, session.ErrNotFound
	}

	answers, err := s.answerRepo.CachedAnswers(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Answer cache read failed")
		answers = map[string]string{}
	}

	return &model.SessionState{
		SessionID:            sess.ID,
		AssessmentID:         sess.AssessmentID,
		Status:               sess.Status,
		CurrentQuestionIndex: sess.CurrentQuestionIndex,
		RemainingSeconds:     s.timer.Remaining(sess).Seconds(),
		AutosavedAnswers:     answers,
		Result:               sess.Result,
	}, nil
}

// Authorize loads a session and verifies it belongs to the participant.
func (s *PortalService) Authorize(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.Session, error) {
	sess, err := s.ctrl.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.ParticipantID != participantID {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// GraceWindow resolves the integrity grace window for a session from its
// assessment. Implements session.GraceResolver; the monitor falls back to
// its own default when this errors.
func (s *PortalService) GraceWindow(ctx context.Context, sessionID uuid.UUID) (time.Duration, error) {
	sess, err := s.ctrl.Load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	assessment, err := s.assessmentRepo.GetByID(ctx, sess.AssessmentID)
	if err != nil {
		return 0, fmt.Errorf("get assessment: %w", err)
	}
	return assessment.GraceWindow(), nil
}
