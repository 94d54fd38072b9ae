package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/grading"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errLateWrite aborts a write transaction that found the deadline passed
// after taking the attempt lock.
var errLateWrite = errors.New("write after deadline")

type attemptService struct {
	repo      repositories.Repository
	tokens    *session.TokenIssuer
	clock     session.Clock
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewAttemptService(
	repo repositories.Repository,
	tokens *session.TokenIssuer,
	clock session.Clock,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) AttemptService {
	return &attemptService{
		repo:      repo,
		tokens:    tokens,
		clock:     clock,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		ops:       NewServiceLogger(logger, "attempt"),
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, examID uint, studentID string) (result *StartAttemptResult, err error) {
	op := s.ops.WithOperation(ctx, "start_attempt", studentID)
	defer func() { op.LogResult(examID, "exam", err) }()

	if studentID == "" {
		return nil, NewValidationError("student_id", "student_id is required", studentID)
	}

	exam, err := loadExam(ctx, s.repo, examID)
	if err != nil {
		return nil, err
	}
	attempt, resumed, err := findAttempt(ctx, s.repo, nil, examID, studentID)
	if err != nil {
		return nil, err
	}

	if !resumed {
		// Unpublishing only blocks new attempts
		if !exam.IsPublished {
			return nil, ErrExamNotPublished
		}
		if warnings := s.validator.Question().ValidateExam(exam); len(warnings) > 0 {
			s.logger.WarnContext(ctx, "Exam has malformed answer keys", "exam_id", exam.ID, "warnings", warnings)
		}
		attempt, err = s.createAttempt(ctx, exam, studentID)
		if errors.Is(err, repositories.ErrDuplicate) {
			// A concurrent start won the unique index, resume its attempt
			var found bool
			attempt, found, err = findAttempt(ctx, s.repo, nil, examID, studentID)
			if err == nil && !found {
				err = fmt.Errorf("attempt for exam %d missing after duplicate insert", examID)
			}
			resumed = true
		}
		if err != nil {
			return nil, err
		}
	}

	if attempt.IsTerminal() {
		return nil, ErrAttemptAlreadyCompleted
	}
	if session.Expired(s.clock.Now(), attempt.Deadline) {
		if _, _, err := s.finalize(ctx, exam, attempt.ID); err != nil {
			return nil, err
		}
		return nil, ErrAttemptAlreadyCompleted
	}

	token, err := s.issueToken(ctx, attempt)
	if err != nil {
		return nil, err
	}

	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}

	now := s.clock.Now()
	result = &StartAttemptResult{
		AttemptID:        attempt.ID,
		ExamID:           exam.ID,
		ExamTitle:        exam.Title,
		Status:           attempt.Status,
		Resumed:          resumed,
		SessionToken:     token,
		StartedAt:        attempt.StartedAt,
		Deadline:         attempt.Deadline,
		ServerTime:       now,
		RemainingSeconds: remainingSeconds(session.RemainingUntil(now, attempt.Deadline)),
		Questions:        questionViews(exam, attempt.QuestionOrder),
		Answers:          answerViews(answers),
	}

	eventType := events.EventAttemptStarted
	if resumed {
		eventType = events.EventAttemptResumed
	}
	publishEvent(ctx, s.publisher, s.logger, attempt.ID, eventType, events.AttemptStartedEvent{
		AttemptID: attempt.ID,
		ExamID:    exam.ID,
		ExamTitle: exam.Title,
		StudentID: studentID,
		StartedAt: attempt.StartedAt,
		Deadline:  attempt.Deadline,
	})

	return result, nil
}

func (s *attemptService) SaveAnswer(ctx context.Context, req *SaveAnswerRequest) (result *SaveAnswerResult, err error) {
	op := s.ops.WithOperation(ctx, "save_answer", req.StudentID)
	defer func() { op.LogResult(req.QuestionID, "question", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := loadExam(ctx, s.repo, req.ExamID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.authenticate(ctx, req.ExamID, req.StudentID, req.SessionToken)
	if err != nil {
		return nil, err
	}
	if attempt.IsTerminal() {
		return nil, s.completedError(ctx, exam, attempt)
	}
	if session.Expired(s.clock.Now(), attempt.Deadline) {
		return nil, s.expire(ctx, exam, attempt.ID)
	}
	if _, ok := exam.Question(req.QuestionID); !ok {
		return nil, ErrUnknownQuestion
	}

	value := ""
	if req.Value != nil {
		value = *req.Value
	}

	var savedAt time.Time
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := s.lockInProgress(ctx, tx, attempt.ID)
		if err != nil {
			return err
		}
		savedAt = s.clock.Now()
		if session.Expired(savedAt, locked.Deadline) {
			return errLateWrite
		}
		return s.repo.Attempt().UpsertAnswer(ctx, tx, &models.AttemptAnswer{
			AttemptID:  attempt.ID,
			QuestionID: req.QuestionID,
			Value:      value,
			SavedAt:    savedAt,
		})
	})
	if errors.Is(err, errLateWrite) {
		return nil, s.expire(ctx, exam, attempt.ID)
	}
	if errors.Is(err, ErrAttemptAlreadyCompleted) {
		// Finalized between the checks above and the row lock
		return nil, s.reloadCompleted(ctx, exam, attempt.ID)
	}
	if err != nil {
		return nil, err
	}

	return &SaveAnswerResult{
		Status:           "saved",
		AttemptID:        attempt.ID,
		QuestionID:       req.QuestionID,
		SavedAt:          savedAt,
		RemainingSeconds: remainingSeconds(session.RemainingUntil(savedAt, attempt.Deadline)),
	}, nil
}

func (s *attemptService) Submit(ctx context.Context, examID uint, studentID, sessionToken string) (result *SubmitResult, err error) {
	op := s.ops.WithOperation(ctx, "submit_attempt", studentID)
	defer func() { op.LogResult(examID, "exam", err) }()

	exam, err := loadExam(ctx, s.repo, examID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.authenticate(ctx, examID, studentID, sessionToken)
	if err != nil {
		return nil, err
	}

	result, _, err = s.finalize(ctx, exam, attempt.ID)
	return result, err
}

func (s *attemptService) Reconcile(ctx context.Context, req *ReconcileRequest) (result *ReconcileResult, err error) {
	op := s.ops.WithOperation(ctx, "reconcile_answers", req.StudentID)
	defer func() { op.LogResult(req.ExamID, "exam", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := loadExam(ctx, s.repo, req.ExamID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.authenticate(ctx, req.ExamID, req.StudentID, req.SessionToken)
	if err != nil {
		return nil, err
	}
	if attempt.IsTerminal() {
		return nil, s.completedError(ctx, exam, attempt)
	}
	if session.Expired(s.clock.Now(), attempt.Deadline) {
		return nil, s.expire(ctx, exam, attempt.ID)
	}

	questions := make(map[uint]struct{}, len(exam.Questions))
	for i := range exam.Questions {
		questions[exam.Questions[i].ID] = struct{}{}
	}

	var (
		plan    session.Plan
		applied []uint
		now     time.Time
	)
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := s.lockInProgress(ctx, tx, attempt.ID)
		if err != nil {
			return err
		}
		now = s.clock.Now()
		if session.Expired(now, locked.Deadline) {
			return errLateWrite
		}

		stored, err := s.repo.Attempt().GetAnswers(ctx, tx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to get answers: %w", err)
		}
		server := make(map[uint]session.AnswerState, len(stored))
		for _, a := range stored {
			server[a.QuestionID] = session.AnswerState{Value: a.Value, SavedAt: a.SavedAt}
		}

		plan = session.Reconcile(server, req.Snapshot, session.Window{
			StartedAt: locked.StartedAt,
			Deadline:  locked.Deadline,
			Now:       now,
			Questions: questions,
		})

		// The conditional upsert keeps a concurrent newer save authoritative
		for _, a := range plan.Apply {
			ok, err := s.repo.Attempt().UpsertAnswerIfNewer(ctx, tx, &models.AttemptAnswer{
				AttemptID:  attempt.ID,
				QuestionID: a.QuestionID,
				Value:      a.Value,
				SavedAt:    a.SavedAt,
			})
			if err != nil {
				return err
			}
			if ok {
				applied = append(applied, a.QuestionID)
			}
		}
		return nil
	})
	if errors.Is(err, errLateWrite) {
		return nil, s.expire(ctx, exam, attempt.ID)
	}
	if errors.Is(err, ErrAttemptAlreadyCompleted) {
		// Finalized between the checks above and the row lock
		return nil, s.reloadCompleted(ctx, exam, attempt.ID)
	}
	if err != nil {
		return nil, err
	}

	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}

	s.logger.Info("Reconciled offline answers",
		"attempt_id", attempt.ID,
		"received", len(req.Snapshot.Answers),
		"applied", len(applied),
		"dropped", len(plan.Dropped))

	return &ReconcileResult{
		AttemptID:        attempt.ID,
		Applied:          applied,
		Dropped:          plan.Dropped,
		Answers:          answerViews(answers),
		Deadline:         attempt.Deadline,
		RemainingSeconds: remainingSeconds(session.RemainingUntil(now, attempt.Deadline)),
	}, nil
}

// ===== TIME AUTHORITY =====

func (s *attemptService) TimeRemaining(ctx context.Context, examID uint, studentID, sessionToken string) (*TimeRemainingResult, error) {
	exam, err := loadExam(ctx, s.repo, examID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.authenticate(ctx, examID, studentID, sessionToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	status := attempt.Status
	if !attempt.IsTerminal() && session.Expired(now, attempt.Deadline) {
		submitted, _, err := s.finalize(ctx, exam, attempt.ID)
		if err != nil {
			return nil, err
		}
		status = submitted.Status
	}

	return &TimeRemainingResult{
		AttemptID:        attempt.ID,
		Status:           status,
		ServerTime:       now,
		Deadline:         attempt.Deadline,
		RemainingSeconds: remainingSeconds(session.RemainingUntil(now, attempt.Deadline)),
		Expired:          session.Expired(now, attempt.Deadline),
	}, nil
}

// SubmitExpired submits every attempt whose deadline passed without a submit
// call, reading limit attempts per page, and returns how many this call
// finalized. Attempts that cannot be finalized stay in progress and are paged
// past, so they never hide the ones behind them.
func (s *attemptService) SubmitExpired(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	exams := make(map[uint]*models.Exam)
	submitted, failed, found := 0, 0, 0

	for {
		attempts, err := s.repo.Attempt().GetExpiredInProgress(ctx, nil, now, failed, limit)
		if err != nil {
			return submitted, err
		}
		found += len(attempts)

		for _, attempt := range attempts {
			if err := ctx.Err(); err != nil {
				return submitted, err
			}
			won, err := s.submitExpired(ctx, exams, attempt)
			if err != nil {
				failed++
				s.logger.Error("Cannot submit expired attempt", "attempt_id", attempt.ID, "exam_id", attempt.ExamID, "error", err)
				continue
			}
			if won {
				submitted++
			}
		}

		if limit <= 0 || len(attempts) < limit {
			break
		}
	}

	s.logger.Info("Expired attempts swept", "found", found, "submitted", submitted, "failed", failed)
	return submitted, nil
}

func (s *attemptService) submitExpired(ctx context.Context, exams map[uint]*models.Exam, attempt *models.Attempt) (bool, error) {
	exam, ok := exams[attempt.ExamID]
	if !ok {
		var err error
		if exam, err = loadExam(ctx, s.repo, attempt.ExamID); err != nil {
			return false, err
		}
		exams[attempt.ExamID] = exam
	}
	_, won, err := s.finalize(ctx, exam, attempt.ID)
	return won, err
}

// ===== PROCTORING =====

func (s *attemptService) RecordIntegrityEvent(ctx context.Context, req *IntegrityEventRequest) (uint, error) {
	if err := s.validator.Validate(req); err != nil {
		return 0, err
	}

	attempt, err := s.authenticate(ctx, req.ExamID, req.StudentID, req.SessionToken)
	if err != nil {
		return 0, err
	}
	if attempt.IsTerminal() {
		return 0, ErrAttemptAlreadyCompleted
	}

	now := s.clock.Now()
	severity := req.Severity
	if severity == 0 {
		severity = 1
	}
	event := &models.IntegrityEvent{
		AttemptID:  attempt.ID,
		ExamID:     attempt.ExamID,
		StudentID:  attempt.StudentID,
		Type:       req.Type,
		Details:    datatypes.JSON(req.Details),
		Severity:   severity,
		TimeOffset: int(now.Sub(attempt.StartedAt) / time.Second),
		UserAgent:  req.UserAgent,
		IPAddress:  req.IPAddress,
		OccurredAt: now,
	}
	if err := s.repo.IntegrityEvent().Create(ctx, nil, event); err != nil {
		return 0, err
	}

	s.logger.Info("Integrity event recorded",
		"attempt_id", attempt.ID,
		"type", req.Type,
		"severity", severity)

	publishEvent(ctx, s.publisher, s.logger, attempt.ID, events.EventIntegrityRecorded, events.IntegrityRecordedEvent{
		EventID:    event.ID,
		AttemptID:  attempt.ID,
		ExamID:     attempt.ExamID,
		StudentID:  attempt.StudentID,
		Type:       req.Type,
		Severity:   severity,
		OccurredAt: now,
	})
	return event.ID, nil
}

// ===== RESULTS =====

func (s *attemptService) GetResult(ctx context.Context, attemptID uint, studentID string) (*SubmitResult, error) {
	attempt, err := getAttempt(ctx, s.repo, nil, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", "view", "not owned by student")
	}

	exam, err := loadExam(ctx, s.repo, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	if !attempt.IsTerminal() {
		if !session.Expired(s.clock.Now(), attempt.Deadline) {
			return nil, ErrAttemptNotSubmitted
		}
		result, _, err := s.finalize(ctx, exam, attempt.ID)
		return result, err
	}

	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return buildResult(exam, attempt, answers), nil
}

// ===== INTERNAL =====

func (s *attemptService) createAttempt(ctx context.Context, exam *models.Exam, studentID string) (*models.Attempt, error) {
	now := s.clock.Now()

	order := make([]uint, 0, len(exam.Questions))
	for i := range exam.Questions {
		order = append(order, exam.Questions[i].ID)
	}
	if exam.RandomizeOrder {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	attempt := &models.Attempt{
		ExamID:        exam.ID,
		StudentID:     studentID,
		Status:        models.AttemptInProgress,
		StartedAt:     now,
		Deadline:      session.Deadline(now, exam.DurationMinutes),
		MaxScore:      exam.TotalPoints(),
		QuestionOrder: datatypes.JSONSlice[uint](order),
	}
	if err := s.repo.Attempt().Create(ctx, nil, attempt); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"student_id", studentID,
		"deadline", attempt.Deadline)
	return attempt, nil
}

// issueToken mints a token and makes it the only one accepted for the
// attempt. Earlier tokens stop working.
func (s *attemptService) issueToken(ctx context.Context, attempt *models.Attempt) (string, error) {
	token, tokenID, err := s.tokens.Issue(session.Binding{
		AttemptID: attempt.ID,
		ExamID:    attempt.ExamID,
		StudentID: attempt.StudentID,
		Deadline:  attempt.Deadline,
	})
	if err != nil {
		return "", err
	}

	ok, err := s.repo.Attempt().RotateToken(ctx, nil, attempt.ID, tokenID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAttemptAlreadyCompleted
	}
	attempt.TokenID = tokenID
	return token, nil
}

// authenticate resolves the attempt a session token is bound to. Only the
// most recently issued token of an attempt is accepted.
func (s *attemptService) authenticate(ctx context.Context, examID uint, studentID, raw string) (*models.Attempt, error) {
	claims, err := s.tokens.Verify(raw, examID, studentID)
	if err != nil {
		s.ops.LogSecurityEvent(ctx, SecurityEventInvalidToken, studentID, "session token rejected",
			slog.Uint64("exam_id", uint64(examID)),
			slog.String("reason", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, claims.AttemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidSessionToken
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.ExamID != examID || attempt.StudentID != studentID {
		s.ops.LogSecurityEvent(ctx, SecurityEventForeignAttempt, studentID, "token bound to another attempt",
			slog.Uint64("attempt_id", uint64(attempt.ID)))
		return nil, ErrInvalidSessionToken
	}
	if attempt.TokenID != claims.ID {
		s.ops.LogSecurityEvent(ctx, SecurityEventStaleToken, studentID, "superseded session token used",
			slog.Uint64("attempt_id", uint64(attempt.ID)))
		return nil, ErrInvalidSessionToken
	}
	return attempt, nil
}

func (s *attemptService) lockInProgress(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().LockInProgress(ctx, tx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAttemptAlreadyCompleted
		}
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}
	return attempt, nil
}

// expire submits an attempt whose deadline passed and reports it to the
// caller as a DeadlineExpiredError carrying the result.
// completedError answers a write against a finished attempt. An attempt the
// deadline closed reports DeadlineExpired with its result, the same as the
// late write that would have closed it.
func (s *attemptService) completedError(ctx context.Context, exam *models.Exam, attempt *models.Attempt) error {
	if attempt.SubmitReason == nil || *attempt.SubmitReason != models.SubmitDeadline {
		return ErrAttemptAlreadyCompleted
	}
	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to get answers: %w", err)
	}
	result := buildResult(exam, attempt, answers)
	result.AlreadySubmitted = true
	return &DeadlineExpiredError{Result: result}
}

func (s *attemptService) reloadCompleted(ctx context.Context, exam *models.Exam, attemptID uint) error {
	attempt, err := getAttempt(ctx, s.repo, nil, attemptID)
	if err != nil {
		return err
	}
	return s.completedError(ctx, exam, attempt)
}

func (s *attemptService) expire(ctx context.Context, exam *models.Exam, attemptID uint) error {
	result, _, err := s.finalize(ctx, exam, attemptID)
	if err != nil {
		return err
	}
	return &DeadlineExpiredError{Result: result}
}

// finalize moves an in-progress attempt to Submitted, grades it and, when no
// question needs a human grader, to Graded. Exactly one caller wins the
// status compare-and-set; every other caller gets the stored result. won
// reports whether this call did the grading.
func (s *attemptService) finalize(ctx context.Context, exam *models.Exam, attemptID uint) (result *SubmitResult, won bool, err error) {
	now := s.clock.Now()
	var (
		agg         grading.AggregateOutcome
		submittedAt time.Time
		reason      models.SubmitReason
	)

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := getAttempt(ctx, s.repo, tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.IsTerminal() {
			return nil
		}

		reason = models.SubmitManual
		if session.Expired(now, attempt.Deadline) {
			reason = models.SubmitDeadline
		}
		submittedAt = session.EffectiveSubmitTime(now, attempt.Deadline)
		maxScore := exam.TotalPoints()

		ok, err := s.repo.Attempt().TransitionStatus(ctx, tx, attemptID, models.AttemptInProgress, repositories.StatusTransition{
			To:           models.AttemptSubmitted,
			SubmittedAt:  &submittedAt,
			SubmitReason: &reason,
			MaxScore:     &maxScore,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		won = true

		answers, err := s.repo.Attempt().GetAnswers(ctx, tx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get answers: %w", err)
		}

		agg = grading.GradeAttempt(exam, answerMap(answers))
		if err := s.repo.Attempt().SaveOutcomes(ctx, tx, attemptID, outcomesFrom(agg), now); err != nil {
			return err
		}
		if agg.NeedsManualReview {
			return nil
		}

		ok, err = s.repo.Attempt().TransitionStatus(ctx, tx, attemptID, models.AttemptSubmitted,
			gradedTransition(exam, pointsFrom(agg), now, s.logger))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("attempt %d changed state during grading", attemptID)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	attempt, err := getAttempt(ctx, s.repo, nil, attemptID)
	if err != nil {
		return nil, false, err
	}
	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attemptID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get answers: %w", err)
	}
	result = buildResult(exam, attempt, answers)

	if !won {
		result.AlreadySubmitted = true
		return result, false, nil
	}

	result.Warnings = agg.Warnings
	for _, w := range agg.Warnings {
		s.logger.Warn("Answer key problem during grading", "attempt_id", attemptID, "warning", w)
	}
	s.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"reason", reason,
		"status", attempt.Status,
		"score", agg.TotalScore,
		"max_score", agg.MaxScore)

	s.publishSubmitted(ctx, attempt, result, reason, submittedAt, agg)
	return result, true, nil
}

func (s *attemptService) publishSubmitted(ctx context.Context, attempt *models.Attempt, result *SubmitResult, reason models.SubmitReason, submittedAt time.Time, agg grading.AggregateOutcome) {
	eventType := events.EventAttemptSubmitted
	if reason == models.SubmitDeadline {
		eventType = events.EventAttemptAutoSubmitted
	}
	publishEvent(ctx, s.publisher, s.logger, attempt.ID, eventType, events.AttemptSubmittedEvent{
		AttemptID:       attempt.ID,
		ExamID:          attempt.ExamID,
		StudentID:       attempt.StudentID,
		SubmittedAt:     submittedAt,
		Reason:          reason,
		Score:           attempt.Score,
		MaxScore:        result.MaxScore,
		GradingRequired: agg.NeedsManualReview,
		Warnings:        agg.Warnings,
	})

	if agg.NeedsManualReview {
		var pending []uint
		for _, q := range agg.Questions {
			if q.NeedsManualReview {
				pending = append(pending, q.QuestionID)
			}
		}
		publishEvent(ctx, s.publisher, s.logger, attempt.ID, events.EventManualGradingRequired, events.ManualGradingRequiredEvent{
			AttemptID:   attempt.ID,
			ExamID:      attempt.ExamID,
			StudentID:   attempt.StudentID,
			QuestionIDs: pending,
			RequiredAt:  submittedAt,
		})
		return
	}

	publishGraded(ctx, s.publisher, s.logger, attempt, "")
}

func publishGraded(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, attempt *models.Attempt, graderID string) {
	if attempt.Score == nil || attempt.Percentage == nil || attempt.GradedAt == nil {
		return
	}
	publishEvent(ctx, publisher, logger, attempt.ID, events.EventAttemptGraded, events.AttemptGradedEvent{
		AttemptID:      attempt.ID,
		ExamID:         attempt.ExamID,
		StudentID:      attempt.StudentID,
		GradedAt:       *attempt.GradedAt,
		Score:          *attempt.Score,
		MaxScore:       attempt.MaxScore,
		Percentage:     *attempt.Percentage,
		ResultStatus:   attempt.ResultStatus,
		GeneralAverage: attempt.GeneralAverage,
		GraderID:       graderID,
	})
}
