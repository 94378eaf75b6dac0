package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single coding question. The correct behavior is
// defined by its test cases, which are resolved by the external judge.
type Question struct {
	ID               uuid.UUID         `json:"id"`
	AssessmentID     uuid.UUID         `json:"assessment_id"`
	Prompt           string            `json:"prompt"`
	Constraints      string            `json:"constraints"`
	Examples         json.RawMessage   `json:"examples"`
	Points           int               `json:"points"`
	AllowedLanguages []string          `json:"allowed_languages"`
	StarterCode      map[string]string `json:"starter_code"`
	TestCases        []TestCase        `json:"test_cases"`
	OrderNum         int               `json:"order_num"`
}

// TestCase is a single input/expected-output pair. Hidden cases are never
// sent to participants.
type TestCase struct {
	ID          uuid.UUID `json:"id"`
	Input       string    `json:"input"`
	ExpectedOut string    `json:"expected_out"`
	Hidden      bool      `json:"hidden"`
}

// QuestionForParticip is a question as exposed to participants: prompt,
// public examples and starter code only.
type QuestionForParticip struct {
	ID               uuid.UUID         `json:"id"`
	Prompt           string            `json:"prompt"`
	Constraints      string            `json:"constraints"`
	Examples         json.RawMessage   `json:"examples"`
	Points           int               `json:"points"`
	AllowedLanguages []string          `json:"allowed_languages"`
	StarterCode      map[string]string `json:"starter_code"`
	OrderNum         int               `json:"order_num"`
}

// ForParticipant strips hidden test data from a question.
func (q *Question) ForParticipant() QuestionForParticip {
	return QuestionForParticip{
		ID:               q.ID,
		Prompt:           q.Prompt,
		Constraints:      q.Constraints,
		Examples:         q.Examples,
		Points:           q.Points,
		AllowedLanguages: q.AllowedLanguages,
		StarterCode:      q.StarterCode,
		OrderNum:         q.OrderNum,
	}
}

// AllowsLanguage reports whether the given language is permitted for this
// question. An empty allow-list permits every language.
func (q *Question) AllowsLanguage(lang string) bool {
	if len(q.AllowedLanguages) == 0 {
		return true
	}
	for _, l := range q.AllowedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
