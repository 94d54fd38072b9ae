package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GradingHandler serves staff endpoints: manual grading, classification and
// result export
type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	exportService  services.ResultExportService
}

type ManualGradingBody struct {
	Grades []services.ManualGradeInput `json:"grades" binding:"required"`
}

func NewGradingHandler(
	gradingService services.GradingService,
	exportService services.ResultExportService,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		exportService:  exportService,
	}
}

// GetAttemptForGrading returns a submitted attempt with every answer
// @Summary Attempt for grading
// @Tags grading
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 200 {object} services.SubmitResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /grading/attempts/{attempt_id} [get]
func (h *GradingHandler) GetAttemptForGrading(c *gin.Context) {
	attemptID := parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	result, err := h.gradingService.GetAttemptForGrading(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ApplyManualGrades grades every short answer question of an attempt
// @Summary Manual grading
// @Tags grading
// @Accept json
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Param grades body ManualGradingBody true "Grades"
// @Success 200 {object} services.SubmitResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /grading/attempts/{attempt_id}/manual [post]
func (h *GradingHandler) ApplyManualGrades(c *gin.Context) {
	attemptID := parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}
	graderID, ok := currentUser(c)
	if !ok {
		return
	}

	var body ManualGradingBody
	if !bindJSON(c, &body) {
		return
	}

	h.LogRequest(c, "Applying manual grades", "attempt_id", attemptID, "grades", len(body.Grades))

	result, err := h.gradingService.ApplyManualGrades(c.Request.Context(), &services.ManualGradingRequest{
		AttemptID: attemptID,
		GraderID:  graderID,
		Grades:    body.Grades,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ClassifyWeighted classifies a set of weighted subject scores
// @Summary Weighted classification
// @Tags grading
// @Accept json
// @Produce json
// @Param request body services.ClassifyRequest true "Subject scores"
// @Success 200 {object} grading.WeightedResult
// @Failure 400 {object} ErrorResponse
// @Router /grading/classify [post]
func (h *GradingHandler) ClassifyWeighted(c *gin.Context) {
	var req services.ClassifyRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.gradingService.ClassifyWeighted(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportResults downloads every attempt of an exam as an Excel workbook
// @Summary Export exam results
// @Tags grading
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param exam_id path uint true "Exam ID"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /exams/{exam_id}/results/export [get]
func (h *GradingHandler) ExportResults(c *gin.Context) {
	examID := parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Exporting exam results", "exam_id", examID)

	buf, err := h.exportService.ExportExamResults(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-%d-results-%s.xlsx", examID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
