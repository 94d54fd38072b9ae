// Package grading scores answers against answer keys and classifies weighted
// multi-subject results. Everything here is pure: callers own persistence.
package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/shopspring/decimal"
)

const (
	FeedbackNoAnswer     = "No answer provided"
	FeedbackManualReview = "This question requires manual grading"
	FeedbackNoKey        = "No correct answer defined"
	FeedbackUnknownType  = "Unknown question type"
)

// Bounds on numeric submissions. Anything outside grades as incorrect.
const (
	maxNumericLength   = 64
	maxNumericExponent = 30
)

// QuestionOutcome is the result of grading one answer.
type QuestionOutcome struct {
	QuestionID        uint                `json:"question_id"`
	Type              models.QuestionType `json:"type"`
	Points            float64             `json:"points"`
	MaxPoints         float64             `json:"max_points"`
	IsCorrect         bool                `json:"is_correct"`
	Answered          bool                `json:"answered"`
	NeedsManualReview bool                `json:"needs_manual_review"`
	Feedback          string              `json:"feedback,omitempty"`
	Warning           string              `json:"warning,omitempty"`
}

// AggregateOutcome is the result of grading every question of an exam.
type AggregateOutcome struct {
	Questions         []QuestionOutcome `json:"questions"`
	TotalScore        float64           `json:"total_score"`
	MaxScore          float64           `json:"max_score"`
	Percentage        int               `json:"percentage"`
	CorrectCount      int               `json:"correct_count"`
	NeedsManualReview bool              `json:"needs_manual_review"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// GradeQuestion evaluates one answer against the question's key. A nil or
// blank answer is treated as absent. Malformed keys never panic: the answer is
// marked incorrect and the outcome carries a warning.
func GradeQuestion(q *models.Question, answer *string) QuestionOutcome {
	out := QuestionOutcome{
		QuestionID: q.ID,
		Type:       q.Type,
		MaxPoints:  q.Points,
	}

	value := ""
	if answer != nil {
		value = strings.TrimSpace(*answer)
	}
	out.Answered = value != ""

	key := q.Key()
	switch q.Type {
	case models.MultipleChoice:
		gradeMultipleChoice(q, key, value, &out)
	case models.TrueFalse:
		gradeTrueFalse(q, key, value, &out)
	case models.Numeric:
		gradeNumeric(q, key, value, &out)
	case models.ShortAnswer:
		out.NeedsManualReview = true
		out.Feedback = FeedbackManualReview
		if !out.Answered {
			out.Feedback = FeedbackNoAnswer
		}
	default:
		out.Feedback = FeedbackUnknownType
		out.Warning = fmt.Sprintf("question %d has unsupported type %q", q.ID, q.Type)
	}

	if out.IsCorrect {
		out.Points = q.Points
	}
	return out
}

func gradeMultipleChoice(q *models.Question, key models.AnswerKey, value string, out *QuestionOutcome) {
	correct := key.CorrectOptions()
	if len(correct) != 1 {
		out.Warning = fmt.Sprintf("question %d: answer key has %d correct options, expected exactly one", q.ID, len(correct))
		out.Feedback = FeedbackNoKey
		if !out.Answered {
			out.Feedback = FeedbackNoAnswer
		}
		return
	}

	if !out.Answered {
		out.Feedback = FeedbackNoAnswer
		return
	}

	out.IsCorrect = value == correct[0].Label
	if !out.IsCorrect {
		out.Feedback = fmt.Sprintf("Correct answer: %s) %s", correct[0].Label, correct[0].Text)
	}
}

func gradeTrueFalse(q *models.Question, key models.AnswerKey, value string, out *QuestionOutcome) {
	if key.CorrectBool == nil {
		out.Warning = fmt.Sprintf("question %d: answer key has no true/false value", q.ID)
		out.Feedback = FeedbackNoKey
		if !out.Answered {
			out.Feedback = FeedbackNoAnswer
		}
		return
	}

	if !out.Answered {
		out.Feedback = FeedbackNoAnswer
		return
	}

	submitted, ok := parseTrueFalse(value)
	out.IsCorrect = ok && submitted == *key.CorrectBool
	if !out.IsCorrect {
		out.Feedback = "Correct answer: " + trueFalseLabel(*key.CorrectBool)
	}
}

func gradeNumeric(q *models.Question, key models.AnswerKey, value string, out *QuestionOutcome) {
	if key.CorrectValue == nil {
		out.Warning = fmt.Sprintf("question %d: answer key has no numeric value", q.ID)
		out.Feedback = FeedbackNoKey
		if !out.Answered {
			out.Feedback = FeedbackNoAnswer
		}
		return
	}

	tolerance := models.DefaultNumericTolerance
	if key.Tolerance != nil {
		if *key.Tolerance >= 0 {
			tolerance = *key.Tolerance
		} else {
			out.Warning = fmt.Sprintf("question %d: negative tolerance %v replaced by default %v",
				q.ID, *key.Tolerance, models.DefaultNumericTolerance)
		}
	}

	correctText := "Correct answer: " + strconv.FormatFloat(*key.CorrectValue, 'f', -1, 64)
	if !out.Answered {
		out.Feedback = FeedbackNoAnswer
		return
	}

	submitted, ok := parseNumeric(value)
	if !ok {
		out.Feedback = correctText
		return
	}

	// Exact decimal arithmetic keeps the tolerance boundary inclusive.
	diff := submitted.Sub(decimal.NewFromFloat(*key.CorrectValue)).Abs()
	out.IsCorrect = diff.LessThanOrEqual(decimal.NewFromFloat(tolerance))
	if !out.IsCorrect {
		out.Feedback = correctText
	}
}

// parseNumeric accepts finite decimals whose exponent stays within
// maxNumericExponent. Decimal subtraction rescales to the smaller exponent, so
// an input like 1e-10000000 would otherwise cost unbounded big-int work.
func parseNumeric(value string) (decimal.Decimal, bool) {
	if len(value) > maxNumericLength {
		return decimal.Decimal{}, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if exp := d.Exponent(); exp < -maxNumericExponent || exp > maxNumericExponent {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseTrueFalse(value string) (bool, bool) {
	switch {
	case strings.EqualFold(value, "true"):
		return true, true
	case strings.EqualFold(value, "false"):
		return false, true
	}
	return false, false
}

func trueFalseLabel(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// GradeAttempt grades every question of the exam in exam order. Questions with
// no entry in answers count zero toward the total but their points still count
// toward the maximum.
func GradeAttempt(exam *models.Exam, answers map[uint]string) AggregateOutcome {
	agg := AggregateOutcome{
		Questions: make([]QuestionOutcome, 0, len(exam.Questions)),
	}

	for i := range exam.Questions {
		q := &exam.Questions[i]

		var answer *string
		if v, ok := answers[q.ID]; ok {
			answer = &v
		}

		outcome := GradeQuestion(q, answer)
		agg.TotalScore += outcome.Points
		agg.MaxScore += outcome.MaxPoints
		if outcome.IsCorrect {
			agg.CorrectCount++
		}
		if q.Type == models.ShortAnswer {
			agg.NeedsManualReview = true
		}
		if outcome.Warning != "" {
			agg.Warnings = append(agg.Warnings, outcome.Warning)
		}
		agg.Questions = append(agg.Questions, outcome)
	}

	agg.Percentage = Percentage(agg.TotalScore, agg.MaxScore)
	return agg
}

// Percentage returns round(100 * total / max), or 0 when max is 0.
func Percentage(total, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(100 * total / max))
}

// OverallFeedback summarises a graded attempt for the student.
func OverallFeedback(score, maxScore float64, percentage, correct, questions int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You scored %s/%s points (%d%%). ", formatPoints(score), formatPoints(maxScore), percentage)
	fmt.Fprintf(&b, "You answered %d out of %d questions correctly. ", correct, questions)

	switch {
	case percentage >= 90:
		b.WriteString("Excellent work! You demonstrated outstanding mastery of the material.")
	case percentage >= 80:
		b.WriteString("Great job! You have a strong understanding of the material.")
	case percentage >= 70:
		b.WriteString("Good work! Review the areas where you missed questions to improve further.")
	case percentage >= 60:
		b.WriteString("You passed, but consider reviewing the material to strengthen your understanding.")
	default:
		b.WriteString("You may want to review the material and retake the exam if possible.")
	}
	return b.String()
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
