package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerDraft is a participant's in-progress answer for one question in one
// language. Drafts are created on first edit, overwritten on each subsequent
// edit, and retained after submission for audit and review.
type AnswerDraft struct {
	SessionID      uuid.UUID `json:"session_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	Language       string    `json:"language"`
	Code           string    `json:"code"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// SaveAnswerRequest is the payload for saving an answer draft.
type SaveAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Language   string `json:"language" binding:"required,min=1,max=32"`
	Code       string `json:"code" binding:"required,max=262144"`
}
