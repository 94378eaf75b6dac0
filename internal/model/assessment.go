package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus enumerates the lifecycle states of an assessment definition.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusArchived  AssessmentStatus = "ARCHIVED"
)

// Assessment is an exam or contest definition. It is reference data for the
// session engine: sessions copy its question order and duration at creation.
type Assessment struct {
	ID              uuid.UUID        `json:"id"`
	Title           string           `json:"title"`
	AuthorID        int              `json:"author_id"`
	DurationMinutes int              `json:"duration_minutes"`
	GraceSeconds    int              `json:"grace_seconds"`
	Status          AssessmentStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Duration returns the attempt duration as a time.Duration.
func (a *Assessment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// GraceWindow returns the integrity grace window as a time.Duration.
func (a *Assessment) GraceWindow() time.Duration {
	return time.Duration(a.GraceSeconds) * time.Second
}

// AssessmentPaper is the payload sent to participants: questions without
// hidden test data or reference solutions.
type AssessmentPaper struct {
	AssessmentID    uuid.UUID             `json:"assessment_id"`
	Title           string                `json:"title"`
	DurationMinutes int                   `json:"duration_minutes"`
	Questions       []QuestionForParticip `json:"questions"`
}
