package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"gorm.io/datatypes"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const (
	examStandard    uint = 1
	examShortAnswer uint = 2
	examWeighted    uint = 3
	examDraft       uint = 4
)

type testEnv struct {
	repo      *memory.Repository
	clock     *session.ManualClock
	publisher *events.MockEventPublisher
	attempts  AttemptService
	grading   GradingService
	export    ResultExportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPublisher(t, nil)
}

func newTestEnvWithPublisher(t *testing.T, publisher events.EventPublisher) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewRepository()
	for _, exam := range testExams() {
		repo.PutExam(exam)
	}

	clock := session.NewManualClock(testStart)
	mockPublisher := events.NewMockEventPublisher(logger)
	if publisher == nil {
		publisher = mockPublisher
	}

	manager := NewServiceManager(Dependencies{
		Repo:      repo,
		Tokens:    session.NewTokenIssuer("test-secret", 24*time.Hour, clock),
		Clock:     clock,
		Publisher: publisher,
		Validator: validator.New(),
		Logger:    logger,
	})

	return &testEnv{
		repo:      repo,
		clock:     clock,
		publisher: mockPublisher,
		attempts:  manager.Attempt(),
		grading:   manager.Grading(),
		export:    manager.Export(),
	}
}

func key(k models.AnswerKey) datatypes.JSONType[models.AnswerKey] {
	return datatypes.NewJSONType(k)
}

func choices(correct string, labels ...string) models.AnswerKey {
	k := models.AnswerKey{}
	for _, l := range labels {
		k.Options = append(k.Options, models.ChoiceOption{Label: l, Text: "Option " + l, Correct: l == correct})
	}
	return k
}

func testExams() []*models.Exam {
	return []*models.Exam{
		{
			ID:              examStandard,
			Title:           "Physics midterm",
			DurationMinutes: 60,
			IsPublished:     true,
			Kind:            models.ExamKindStandard,
			Questions: []models.Question{
				{ID: 11, Order: 1, Type: models.MultipleChoice, Prompt: "Pick B", Points: 2, AnswerKey: key(choices("B", "A", "B", "C"))},
				{ID: 12, Order: 2, Type: models.TrueFalse, Prompt: "Sky is blue", Points: 1, AnswerKey: key(models.AnswerKey{CorrectBool: models.BoolPtr(true)})},
				{ID: 13, Order: 3, Type: models.Numeric, Prompt: "Pi", Points: 2, AnswerKey: key(models.AnswerKey{CorrectValue: models.FloatPtr(3.14), Tolerance: models.FloatPtr(0.01)})},
			},
		},
		{
			ID:              examShortAnswer,
			Title:           "Essay quiz",
			DurationMinutes: 30,
			IsPublished:     true,
			Kind:            models.ExamKindStandard,
			Questions: []models.Question{
				{ID: 21, Order: 1, Type: models.MultipleChoice, Prompt: "Pick A", Points: 2, AnswerKey: key(choices("A", "A", "B"))},
				{ID: 22, Order: 2, Type: models.ShortAnswer, Prompt: "Explain inertia", Points: 3},
				{ID: 23, Order: 3, Type: models.ShortAnswer, Prompt: "Explain entropy", Points: 5},
			},
		},
		{
			ID:              examWeighted,
			Title:           "Mock board",
			DurationMinutes: 90,
			IsPublished:     true,
			Kind:            models.ExamKindWeighted,
			SubjectWeights: datatypes.JSONSlice[models.SubjectWeight]{
				{Name: "Math", Weight: 60},
				{Name: "Science", Weight: 40},
			},
			Questions: []models.Question{
				{ID: 31, Order: 1, Type: models.MultipleChoice, Subject: "Math", Points: 1, AnswerKey: key(choices("C", "A", "B", "C"))},
				{ID: 32, Order: 2, Type: models.TrueFalse, Subject: "Science", Points: 1, AnswerKey: key(models.AnswerKey{CorrectBool: models.BoolPtr(false)})},
			},
		},
		{
			ID:              examDraft,
			Title:           "Unreleased",
			DurationMinutes: 10,
			IsPublished:     false,
			Questions: []models.Question{
				{ID: 41, Type: models.TrueFalse, Points: 1, AnswerKey: key(models.AnswerKey{CorrectBool: models.BoolPtr(true)})},
			},
		},
	}
}

func strPtr(v string) *string {
	return &v
}
