package grading

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/shopspring/decimal"
)

// Fixed business thresholds of the weighted classification rule.
const (
	PassingAverage = 75
	SubjectFloor   = 50
)

var (
	ErrNoSubjects           = errors.New("no subject scores supplied")
	ErrInvalidSubjectScore  = errors.New("subject score must be between 0 and 100")
	ErrInvalidSubjectWeight = errors.New("subject weight must be positive")
	ErrWeightsTotal         = errors.New("subject weights must sum to 100")
)

// LicensureSubjects is the subject table of the criminologist licensure mock
// board exam.
var LicensureSubjects = []models.SubjectWeight{
	{Name: "Criminal Jurisprudence, Procedure and Evidence", Weight: 20},
	{Name: "Law Enforcement Administration", Weight: 20},
	{Name: "Criminalistics", Weight: 20},
	{Name: "Crime Detection and Investigation", Weight: 15},
	{Name: "Criminology", Weight: 10},
	{Name: "Correctional Administration", Weight: 15},
}

// SubjectScore is one input row of the classifier.
type SubjectScore struct {
	Name   string  `json:"name" validate:"required"`
	Score  float64 `json:"score" validate:"gte=0,lte=100"`
	Weight float64 `json:"weight" validate:"gt=0,lte=100"`
}

// SubjectResult echoes an input row with its weighted contribution.
type SubjectResult struct {
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
}

type WeightedResult struct {
	Subjects       []SubjectResult     `json:"subjects"`
	GeneralAverage float64             `json:"general_average"`
	Status         models.ResultStatus `json:"status"`
	Message        string              `json:"message"`
	RetakeSubjects []string            `json:"retake_subjects,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// ClassifyWeighted computes the general average as sum(score*weight)/100
// rounded to two decimals and applies, in order: Fail when the average is
// below 75 or more than one subject is below 50; Deferred when exactly one
// subject is below 50; Pass otherwise.
func ClassifyWeighted(subjects []SubjectScore) (WeightedResult, error) {
	if len(subjects) == 0 {
		return WeightedResult{}, ErrNoSubjects
	}

	result := WeightedResult{Subjects: make([]SubjectResult, 0, len(subjects))}
	sum := decimal.Zero
	weights := decimal.Zero
	var below []string

	for _, s := range subjects {
		if s.Score < 0 || s.Score > 100 {
			return WeightedResult{}, fmt.Errorf("%w: %s has %v", ErrInvalidSubjectScore, s.Name, s.Score)
		}
		if s.Weight <= 0 {
			return WeightedResult{}, fmt.Errorf("%w: %s has %v", ErrInvalidSubjectWeight, s.Name, s.Weight)
		}

		weight := decimal.NewFromFloat(s.Weight)
		weighted := decimal.NewFromFloat(s.Score).Mul(weight)
		sum = sum.Add(weighted)
		weights = weights.Add(weight)

		result.Subjects = append(result.Subjects, SubjectResult{
			Name:          s.Name,
			Score:         s.Score,
			Weight:        s.Weight,
			WeightedScore: weighted.Div(hundred).Round(2).InexactFloat64(),
		})
		if s.Score < SubjectFloor {
			below = append(below, s.Name)
		}
	}

	if !weights.Equal(hundred) {
		return WeightedResult{}, fmt.Errorf("%w: got %s", ErrWeightsTotal, weights.String())
	}

	average := sum.Div(hundred).Round(2)
	result.GeneralAverage = average.InexactFloat64()

	switch {
	case average.LessThan(decimal.NewFromInt(PassingAverage)) || len(below) > 1:
		result.Status = models.ResultFail
		result.RetakeSubjects = below
		result.Message = "FAIL - You must retake the entire mock board exam."
	case len(below) == 1:
		result.Status = models.ResultDeferred
		result.RetakeSubjects = below
		result.Message = "DEFERRED - You must retake: " + below[0]
	default:
		result.Status = models.ResultPass
		result.Message = "PASS - Congratulations! You successfully passed the mock board exam."
	}

	return result, nil
}

// ClassifyLicensure classifies scores keyed by licensure subject name. A
// subject with no score counts as zero.
func ClassifyLicensure(scores map[string]float64) (WeightedResult, error) {
	return ClassifyWeighted(SubjectScoresFor(LicensureSubjects, scores))
}

// SubjectScoresFor pairs a subject table with scores keyed by subject name.
func SubjectScoresFor(table []models.SubjectWeight, scores map[string]float64) []SubjectScore {
	subjects := make([]SubjectScore, 0, len(table))
	for _, sw := range table {
		subjects = append(subjects, SubjectScore{
			Name:   sw.Name,
			Score:  scores[sw.Name],
			Weight: sw.Weight,
		})
	}
	return subjects
}

// FormatWeightedTable renders a result as a fixed width text table.
func FormatWeightedTable(result WeightedResult) string {
	var b strings.Builder
	rule := strings.Repeat("-", 82)

	fmt.Fprintf(&b, "%-47s | %5s | %6s | %s\n", "Subject", "Score", "Weight", "Weighted Score")
	b.WriteString(rule + "\n")
	for _, s := range result.Subjects {
		fmt.Fprintf(&b, "%-47s | %5s | %5s%% | %14s\n",
			s.Name,
			strconv.FormatFloat(s.Score, 'f', -1, 64),
			strconv.FormatFloat(s.Weight, 'f', -1, 64),
			strconv.FormatFloat(s.WeightedScore, 'f', 2, 64))
	}
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "General Average: %s%%\n", strconv.FormatFloat(result.GeneralAverage, 'f', 2, 64))
	fmt.Fprintf(&b, "Result: %s", result.Message)
	return b.String()
}
