package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/middleware"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerManager struct {
	sessionHandler *SessionHandler
	gradingHandler *GradingHandler
	health         Pinger
	logger         utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	health Pinger,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(serviceManager.Attempt(), logger),
		gradingHandler: NewGradingHandler(serviceManager.Grading(), serviceManager.Export(), logger),
		health:         health,
		logger:         logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(middleware.RequestID(), utils.ContextLogger(hm.logger))

	// Health check endpoint
	router.GET("/health", hm.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1", middleware.RequireUser())
	{
		// Exam session routes, bound to the caller's attempt
		sessions := v1.Group("/exams/:exam_id/session")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.PUT("/answers", hm.sessionHandler.SaveAnswer)
			sessions.POST("/submit", hm.sessionHandler.SubmitSession)
			sessions.POST("/reconcile", hm.sessionHandler.ReconcileSession)
			sessions.GET("/time", hm.sessionHandler.TimeRemaining)
			sessions.POST("/events", hm.sessionHandler.RecordIntegrityEvent)
		}

		v1.GET("/attempts/:attempt_id/result", hm.sessionHandler.GetResult)

		// Staff routes
		staff := middleware.RequireRole("teacher", "admin")
		v1.GET("/exams/:exam_id/results/export", staff, hm.gradingHandler.ExportResults)

		grading := v1.Group("/grading", staff)
		{
			grading.GET("/attempts/:attempt_id", hm.gradingHandler.GetAttemptForGrading)
			grading.POST("/attempts/:attempt_id/manual", hm.gradingHandler.ApplyManualGrades)
			grading.POST("/classify", hm.gradingHandler.ClassifyWeighted)
		}
	}
}

// HealthCheck reports whether the storage backend answers
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if hm.health != nil {
		if err := hm.health.Ping(ctx); err != nil {
			hm.logger.LogError(err, "Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "exam-session-service",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exam-session-service",
	})
}
