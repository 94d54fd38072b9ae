package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

const exportTimeLayout = "2006-01-02 15:04:05"

type resultExportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewResultExportService(repo repositories.Repository, logger *slog.Logger) ResultExportService {
	return &resultExportService{
		repo:   repo,
		logger: logger,
	}
}

// ExportExamResults renders every attempt of an exam as an Excel workbook with
// a Results sheet (one row per attempt) and an Answers sheet (one row per
// saved answer).
func (s *resultExportService) ExportExamResults(ctx context.Context, examID uint) (*bytes.Buffer, error) {
	exam, err := loadExam(ctx, s.repo, examID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListByExam(ctx, nil, examID, repositories.AttemptFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to get exam attempts: %w", err)
	}

	ids := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ID)
	}
	integrity, err := s.repo.IntegrityEvent().CountByAttempt(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count integrity events: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := s.writeResultsSheet(f, header, exam, attempts, integrity); err != nil {
		return nil, err
	}
	if err := s.writeAnswersSheet(f, header, exam, attempts); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exam results exported", "exam_id", examID, "attempts", len(attempts))
	return buf, nil
}

func (s *resultExportService) writeResultsSheet(f *excelize.File, header int, exam *models.Exam, attempts []*models.Attempt, integrity map[uint]int) error {
	const sheet = "Results"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []interface{}{
		"Attempt ID", "Student ID", "Status", "Started At", "Deadline", "Submitted At",
		"Submit Reason", "Score", "Max Score", "Percentage", "Graded At", "Integrity Events",
	}
	weighted := exam.IsWeighted()
	if weighted {
		headers = append(headers, "General Average", "Result")
		for _, sw := range exam.SubjectWeights {
			headers = append(headers, fmt.Sprintf("%s (%g%%)", sw.Name, sw.Weight))
		}
	}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, a := range attempts {
		row := []interface{}{
			a.ID,
			a.StudentID,
			string(a.Status),
			a.StartedAt.Format(exportTimeLayout),
			a.Deadline.Format(exportTimeLayout),
			formatTime(a.SubmittedAt),
			optional(a.SubmitReason),
			optional(a.Score),
			a.MaxScore,
			optional(a.Percentage),
			formatTime(a.GradedAt),
			integrity[a.ID],
		}

		if weighted {
			row = append(row, optional(a.GeneralAverage), optional(a.ResultStatus))
			scores := make(map[string]float64, len(a.SubjectScores))
			for _, sc := range a.SubjectScores {
				scores[sc.Name] = sc.Score
			}
			for _, sw := range exam.SubjectWeights {
				if v, ok := scores[sw.Name]; ok {
					row = append(row, v)
				} else {
					row = append(row, "")
				}
			}
		}

		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *resultExportService) writeAnswersSheet(f *excelize.File, header int, exam *models.Exam, attempts []*models.Attempt) error {
	const sheet = "Answers"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []interface{}{
		"Attempt ID", "Student ID", "Question ID", "Question Type", "Answer",
		"Saved At", "Points", "Max Points", "Correct", "Graded By", "Feedback",
	}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	rowIndex := 2
	for _, a := range attempts {
		for _, ans := range a.Answers {
			var (
				qType     string
				maxPoints interface{} = ""
			)
			if q, ok := exam.Question(ans.QuestionID); ok {
				qType = string(q.Type)
				maxPoints = q.Points
			}

			row := []interface{}{
				a.ID,
				a.StudentID,
				ans.QuestionID,
				qType,
				ans.Value,
				ans.SavedAt.Format(exportTimeLayout),
				optional(ans.Points),
				maxPoints,
				optional(ans.IsCorrect),
				optional(ans.GradedBy),
				ans.Feedback,
			}
			if err := writeRow(f, sheet, rowIndex, row); err != nil {
				return err
			}
			rowIndex++
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}

// optional dereferences nullable columns; nil becomes an empty cell.
func optional[T any](v *T) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
