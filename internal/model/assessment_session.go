package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates assessment session states.
type SessionStatus string

const (
	SessionStatusCreated           SessionStatus = "CREATED"
	SessionStatusAwaitingIntegrity SessionStatus = "AWAITING_INTEGRITY"
	SessionStatusActive            SessionStatus = "ACTIVE"
	SessionStatusCompromised       SessionStatus = "COMPROMISED"
	SessionStatusSubmitted         SessionStatus = "SUBMITTED"
	SessionStatusExpired           SessionStatus = "EXPIRED"
)

// Terminal reports whether the status is one of the two terminal states.
// A terminal session accepts no further mutation.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusSubmitted || s == SessionStatusExpired
}

// SubmitTrigger identifies what caused a terminal transition.
type SubmitTrigger string

const (
	TriggerManual           SubmitTrigger = "MANUAL"
	TriggerTimeout          SubmitTrigger = "TIMEOUT"
	TriggerIntegrityExpired SubmitTrigger = "INTEGRITY_EXPIRED"
)

// TerminalStatus maps a trigger to the terminal status it produces.
// Timeout expires the session; everything else counts as a submission.
func (t SubmitTrigger) TerminalStatus() SessionStatus {
	if t == TriggerTimeout {
		return SessionStatusExpired
	}
	return SessionStatusSubmitted
}

// Session represents a participant's timed attempt at an assessment.
//
// DeadlineAt is fixed once integrity is first confirmed and is the sole
// authority for expiry — remaining time is always derived from it, never
// stored. Version backs optimistic concurrency: every mutation is a
// compare-and-swap against the stored version.
type Session struct {
	ID                     uuid.UUID      `json:"id"`
	AssessmentID           uuid.UUID      `json:"assessment_id"`
	ParticipantID          int            `json:"participant_id"`
	QuestionOrder          []uuid.UUID    `json:"question_order"`
	CurrentQuestionIndex   int            `json:"current_question_index"`
	Status                 SessionStatus  `json:"status"`
	Duration               time.Duration  `json:"duration"`
	StartedAt              *time.Time     `json:"started_at,omitempty"`
	DeadlineAt             *time.Time     `json:"deadline_at,omitempty"`
	IntegrityGraceDeadline *time.Time     `json:"integrity_grace_deadline,omitempty"`
	SubmissionToken        *uuid.UUID     `json:"submission_token,omitempty"`
	SubmitTrigger          *SubmitTrigger `json:"submit_trigger,omitempty"`
	FinishedAt             *time.Time     `json:"finished_at,omitempty"`
	Result                 *ScoreResult   `json:"result,omitempty"`
	Version                int64          `json:"version"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// Clone returns a deep copy safe to mutate before a compare-and-swap.
func (s *Session) Clone() *Session {
	cp := *s
	cp.QuestionOrder = append([]uuid.UUID(nil), s.QuestionOrder...)
	cp.StartedAt = copyTime(s.StartedAt)
	cp.DeadlineAt = copyTime(s.DeadlineAt)
	cp.IntegrityGraceDeadline = copyTime(s.IntegrityGraceDeadline)
	cp.FinishedAt = copyTime(s.FinishedAt)
	if s.SubmissionToken != nil {
		tok := *s.SubmissionToken
		cp.SubmissionToken = &tok
	}
	if s.SubmitTrigger != nil {
		tr := *s.SubmitTrigger
		cp.SubmitTrigger = &tr
	}
	if s.Result != nil {
		cp.Result = s.Result.Clone()
	}
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// SessionState is the snapshot returned to the presentation layer on
// load/reload: status, derived remaining time and the autosaved answers.
type SessionState struct {
	SessionID            uuid.UUID         `json:"session_id"`
	AssessmentID         uuid.UUID         `json:"assessment_id"`
	Status               SessionStatus     `json:"status"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	RemainingSeconds     float64           `json:"remaining_seconds"`
	AutosavedAnswers     map[string]string `json:"autosaved_answers"`
	Result               *ScoreResult      `json:"result,omitempty"`
}

// NavigateRequest is the payload for moving the current question pointer.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// SubmitRequest is the payload for a manual submission.
type SubmitRequest struct {
	Confirm bool `json:"confirm" binding:"required"`
}
