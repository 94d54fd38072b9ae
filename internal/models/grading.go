package models

import "time"

// ManualGrade records one grader decision for a short answer question. Rows are
// append-only and make the Submitted to Graded transition auditable.
type ManualGrade struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	AttemptID  uint      `json:"attempt_id" gorm:"not null;index"`
	QuestionID uint      `json:"question_id" gorm:"not null"`
	Points     float64   `json:"points" gorm:"not null"`
	GraderID   string    `json:"grader_id" gorm:"not null;size:64"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ManualGrade) TableName() string {
	return "manual_grades"
}
