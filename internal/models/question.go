package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	Numeric        QuestionType = "numeric"
	ShortAnswer    QuestionType = "short_answer"
)

// DefaultNumericTolerance applies when a numeric key carries no tolerance.
const DefaultNumericTolerance = 0.01

// ChoiceOption is a labeled option of a multiple choice question.
type ChoiceOption struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// AnswerKey holds the machine-checkable answer for a question. Which fields
// are meaningful depends on the question type; short answer questions carry
// an empty key.
type AnswerKey struct {
	Options      []ChoiceOption `json:"options,omitempty"`
	CorrectBool  *bool          `json:"correct_bool,omitempty"`
	CorrectValue *float64       `json:"correct_value,omitempty"`
	Tolerance    *float64       `json:"tolerance,omitempty"`
}

type Question struct {
	ID      uint         `json:"id" gorm:"primaryKey"`
	ExamID  uint         `json:"exam_id" gorm:"not null;index"`
	Order   int          `json:"order" gorm:"column:sort_order;not null;default:0"`
	Type    QuestionType `json:"type" gorm:"not null;size:20"`
	Prompt  string       `json:"prompt" gorm:"type:text"`
	Points  float64      `json:"points" gorm:"not null"`
	Subject string       `json:"subject,omitempty" gorm:"size:120;index"`

	AnswerKey datatypes.JSONType[AnswerKey] `json:"-" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// Key returns the decoded answer key.
func (q *Question) Key() AnswerKey {
	return q.AnswerKey.Data()
}

// CorrectOptions returns every option flagged correct. A well formed key has
// exactly one.
func (k AnswerKey) CorrectOptions() []ChoiceOption {
	var correct []ChoiceOption
	for _, opt := range k.Options {
		if opt.Correct {
			correct = append(correct, opt)
		}
	}
	return correct
}

// IsValidQuestionType reports whether t is one of the supported types.
func IsValidQuestionType(t QuestionType) bool {
	switch t {
	case MultipleChoice, TrueFalse, Numeric, ShortAnswer:
		return true
	}
	return false
}
