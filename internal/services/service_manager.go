package services

import (
	"log/slog"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
)

// ServiceManager hands the HTTP layer and the CLI one instance of each service
type ServiceManager interface {
	Attempt() AttemptService
	Grading() GradingService
	Export() ResultExportService
}

type serviceManager struct {
	attempt AttemptService
	grading GradingService
	export  ResultExportService
}

// Dependencies bundles what the services are built from
type Dependencies struct {
	Repo      repositories.Repository
	Tokens    *session.TokenIssuer
	Clock     session.Clock
	Publisher events.EventPublisher
	Validator *validator.Validator
	Logger    *slog.Logger
}

func NewServiceManager(deps Dependencies) ServiceManager {
	if deps.Clock == nil {
		deps.Clock = session.SystemClock{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &serviceManager{
		attempt: NewAttemptService(deps.Repo, deps.Tokens, deps.Clock, deps.Publisher, deps.Validator, deps.Logger),
		grading: NewGradingService(deps.Repo, deps.Clock, deps.Publisher, deps.Validator, deps.Logger),
		export:  NewResultExportService(deps.Repo, deps.Logger),
	}
}

func (m *serviceManager) Attempt() AttemptService     { return m.attempt }
func (m *serviceManager) Grading() GradingService     { return m.grading }
func (m *serviceManager) Export() ResultExportService { return m.export }
