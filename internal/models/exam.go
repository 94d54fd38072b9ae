package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExamKind string

const (
	ExamKindStandard ExamKind = "standard"
	ExamKindWeighted ExamKind = "weighted"
)

// SubjectWeight is one row of a weighted exam's subject table. Weights across
// an exam sum to 100.
type SubjectWeight struct {
	Name   string  `json:"name" validate:"required"`
	Weight float64 `json:"weight" validate:"gt=0,lte=100"`
}

// Exam is authored elsewhere; the session engine only reads it.
type Exam struct {
	ID              uint     `json:"id" gorm:"primaryKey"`
	Title           string   `json:"title" gorm:"not null;size:200"`
	DurationMinutes int      `json:"duration_minutes" gorm:"not null"`
	IsPublished     bool     `json:"is_published" gorm:"default:false;index"`
	RandomizeOrder  bool     `json:"randomize_order" gorm:"default:false"`
	Kind            ExamKind `json:"kind" gorm:"size:20;default:standard"`

	SubjectWeights datatypes.JSONSlice[SubjectWeight] `json:"subject_weights,omitempty" gorm:"type:jsonb"`

	CreatedBy string         `json:"created_by" gorm:"size:64;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// IsWeighted reports whether results are classified by the weighted subject rule.
func (e *Exam) IsWeighted() bool {
	return e.Kind == ExamKindWeighted && len(e.SubjectWeights) > 0
}

// TotalPoints sums the points of every question.
func (e *Exam) TotalPoints() float64 {
	var total float64
	for i := range e.Questions {
		total += e.Questions[i].Points
	}
	return total
}

// Question returns the exam question with the given id.
func (e *Exam) Question(id uint) (*Question, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}
	return nil, false
}

// HasShortAnswers reports whether any question needs a human grader.
func (e *Exam) HasShortAnswers() bool {
	for i := range e.Questions {
		if e.Questions[i].Type == ShortAnswer {
			return true
		}
	}
	return false
}
