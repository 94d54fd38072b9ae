package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

type SubmitReason string

const (
	SubmitManual   SubmitReason = "manual"
	SubmitDeadline SubmitReason = "deadline"
)

type ResultStatus string

const (
	ResultPass     ResultStatus = "pass"
	ResultDeferred ResultStatus = "deferred"
	ResultFail     ResultStatus = "fail"
)

// Attempt is one student's single run through one exam. A missing row means
// the student has not started.
type Attempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	ExamID    uint          `json:"exam_id" gorm:"not null;uniqueIndex:idx_attempt_exam_student"`
	StudentID string        `json:"student_id" gorm:"not null;size:64;uniqueIndex:idx_attempt_exam_student"`
	Status    AttemptStatus `json:"status" gorm:"not null;size:20;default:in_progress;index"`

	// Timing, all server clock
	StartedAt    time.Time     `json:"started_at" gorm:"not null"`
	Deadline     time.Time     `json:"deadline" gorm:"not null;index"`
	SubmittedAt  *time.Time    `json:"submitted_at"`
	SubmitReason *SubmitReason `json:"submit_reason,omitempty" gorm:"size:20"`

	// Scoring
	Score      *float64   `json:"score"`
	MaxScore   float64    `json:"max_score" gorm:"default:0"`
	Percentage *int       `json:"percentage"`
	GradedAt   *time.Time `json:"graded_at"`

	// Weighted exams only
	GeneralAverage *float64                          `json:"general_average,omitempty"`
	ResultStatus   *ResultStatus                     `json:"result_status,omitempty" gorm:"size:20"`
	SubjectScores  datatypes.JSONSlice[SubjectScore] `json:"subject_scores,omitempty" gorm:"type:jsonb"`

	QuestionOrder datatypes.JSONSlice[uint] `json:"question_order" gorm:"type:jsonb"`

	// Identifier of the only session token currently accepted for this attempt.
	TokenID string `json:"-" gorm:"size:64"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// IsTerminal reports whether the attempt has left InProgress.
func (a *Attempt) IsTerminal() bool {
	return a.Status == AttemptSubmitted || a.Status == AttemptGraded
}

// SubjectScore is a per-subject percentage recorded on weighted attempts.
type SubjectScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// AttemptAnswer holds the latest value saved for one question. SavedAt is the
// answer's own timestamp and orders writes during recovery.
type AttemptAnswer struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	AttemptID  uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	QuestionID uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	Value      string    `json:"value" gorm:"type:text"`
	SavedAt    time.Time `json:"saved_at" gorm:"not null"`

	// Grading outcome, written on submit and by manual grading
	Points    *float64 `json:"points"`
	IsCorrect *bool    `json:"is_correct"`
	Feedback  string   `json:"feedback,omitempty" gorm:"type:text"`
	GradedBy  *string  `json:"graded_by,omitempty" gorm:"size:64"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
