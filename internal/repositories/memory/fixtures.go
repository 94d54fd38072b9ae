package memory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"gorm.io/datatypes"
)

// ExamFixture is the JSON form of an exam used to seed the memory store.
// Unlike models.Exam it carries the answer keys.
type ExamFixture struct {
	ID              uint                   `json:"id"`
	Title           string                 `json:"title"`
	DurationMinutes int                    `json:"duration_minutes"`
	IsPublished     bool                   `json:"is_published"`
	RandomizeOrder  bool                   `json:"randomize_order"`
	Kind            models.ExamKind        `json:"kind"`
	SubjectWeights  []models.SubjectWeight `json:"subject_weights"`
	Questions       []QuestionFixture      `json:"questions"`
}

type QuestionFixture struct {
	ID      uint                `json:"id"`
	Order   int                 `json:"order"`
	Type    models.QuestionType `json:"type"`
	Prompt  string              `json:"prompt"`
	Points  float64             `json:"points"`
	Subject string              `json:"subject"`
	Key     models.AnswerKey    `json:"key"`
}

// ToExam converts the fixture into the model the services read.
func (f ExamFixture) ToExam() *models.Exam {
	kind := f.Kind
	if kind == "" {
		kind = models.ExamKindStandard
	}
	exam := &models.Exam{
		ID:              f.ID,
		Title:           f.Title,
		DurationMinutes: f.DurationMinutes,
		IsPublished:     f.IsPublished,
		RandomizeOrder:  f.RandomizeOrder,
		Kind:            kind,
		SubjectWeights:  datatypes.JSONSlice[models.SubjectWeight](f.SubjectWeights),
	}
	for _, q := range f.Questions {
		exam.Questions = append(exam.Questions, models.Question{
			ID:        q.ID,
			ExamID:    f.ID,
			Order:     q.Order,
			Type:      q.Type,
			Prompt:    q.Prompt,
			Points:    q.Points,
			Subject:   q.Subject,
			AnswerKey: datatypes.NewJSONType(q.Key),
		})
	}
	return exam
}

// LoadFixtures reads a JSON array of exams and stores them.
func (r *Repository) LoadFixtures(in io.Reader) (int, error) {
	var fixtures []ExamFixture
	if err := json.NewDecoder(in).Decode(&fixtures); err != nil {
		return 0, fmt.Errorf("failed to decode exam fixtures: %w", err)
	}
	for _, f := range fixtures {
		if f.ID == 0 {
			return 0, fmt.Errorf("exam fixture %q has no id", f.Title)
		}
		r.PutExam(f.ToExam())
	}
	return len(fixtures), nil
}
