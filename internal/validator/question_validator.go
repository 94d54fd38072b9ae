package validator

import (
	"fmt"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/shopspring/decimal"
)

// QuestionValidator inspects answer keys of exams authored elsewhere. Findings
// are warnings: grading tolerates malformed keys, so an exam is never refused
// because of them.
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion returns a warning per problem found in one question.
func (v *QuestionValidator) ValidateQuestion(q *models.Question) []string {
	var warnings []string
	if q.Points <= 0 {
		warnings = append(warnings, fmt.Sprintf("question %d: points must be positive, got %v", q.ID, q.Points))
	}

	key := q.Key()
	switch q.Type {
	case models.MultipleChoice:
		if len(key.Options) < 2 {
			warnings = append(warnings, fmt.Sprintf("question %d: multiple choice needs at least two options", q.ID))
		}
		if n := len(key.CorrectOptions()); n != 1 {
			warnings = append(warnings, fmt.Sprintf("question %d: expected exactly one correct option, found %d", q.ID, n))
		}
		labels := make(map[string]struct{}, len(key.Options))
		for _, opt := range key.Options {
			if _, dup := labels[opt.Label]; dup {
				warnings = append(warnings, fmt.Sprintf("question %d: duplicate option label %q", q.ID, opt.Label))
			}
			labels[opt.Label] = struct{}{}
		}
	case models.TrueFalse:
		if key.CorrectBool == nil {
			warnings = append(warnings, fmt.Sprintf("question %d: true/false key has no value", q.ID))
		}
	case models.Numeric:
		if key.CorrectValue == nil {
			warnings = append(warnings, fmt.Sprintf("question %d: numeric key has no value", q.ID))
		}
		if key.Tolerance != nil && *key.Tolerance < 0 {
			warnings = append(warnings, fmt.Sprintf("question %d: tolerance must not be negative", q.ID))
		}
	case models.ShortAnswer:
	default:
		warnings = append(warnings, fmt.Sprintf("question %d: unsupported type %q", q.ID, q.Type))
	}
	return warnings
}

// ValidateExam checks every question and, for weighted exams, the subject
// table and question tagging.
func (v *QuestionValidator) ValidateExam(exam *models.Exam) []string {
	var warnings []string
	if len(exam.Questions) == 0 {
		warnings = append(warnings, fmt.Sprintf("exam %d has no questions", exam.ID))
	}
	for i := range exam.Questions {
		warnings = append(warnings, v.ValidateQuestion(&exam.Questions[i])...)
	}

	if exam.Kind != models.ExamKindWeighted {
		return warnings
	}

	subjects := make(map[string]struct{}, len(exam.SubjectWeights))
	total := decimal.Zero
	for _, sw := range exam.SubjectWeights {
		subjects[sw.Name] = struct{}{}
		total = total.Add(decimal.NewFromFloat(sw.Weight))
	}
	if !total.Equal(decimal.NewFromInt(100)) {
		warnings = append(warnings, fmt.Sprintf("exam %d: subject weights sum to %s, expected 100", exam.ID, total.String()))
	}
	for i := range exam.Questions {
		q := &exam.Questions[i]
		if _, ok := subjects[q.Subject]; !ok {
			warnings = append(warnings, fmt.Sprintf("question %d: subject %q is not in the exam's subject table", q.ID, q.Subject))
		}
	}
	return warnings
}
