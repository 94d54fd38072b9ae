package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository is a process local repositories.Repository. Transactions are
// serialized by txMu and rolled back by restoring a copy of the state taken
// when the transaction began. Writes made outside a transaction also take
// txMu, so a rollback can only discard the transaction's own writes.
type Repository struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	now  func() time.Time

	// txHandle is handed to transaction bodies and marks writes that already
	// hold txMu.
	txHandle *gorm.DB

	exams    map[uint]*models.Exam
	attempts map[uint]*models.Attempt
	answers  map[uint]map[uint]*models.AttemptAnswer
	grades   []models.ManualGrade
	events   []models.IntegrityEvent

	nextAttemptID uint
	nextAnswerID  uint
	nextGradeID   uint
	nextEventID   uint
}

func NewRepository() *Repository {
	return &Repository{
		now:      time.Now,
		txHandle: &gorm.DB{},
		exams:    make(map[uint]*models.Exam),
		attempts: make(map[uint]*models.Attempt),
		answers:  make(map[uint]map[uint]*models.AttemptAnswer),
	}
}

func (r *Repository) Exam() repositories.ExamRepository                     { return examStore{r} }
func (r *Repository) Attempt() repositories.AttemptRepository               { return attemptStore{r} }
func (r *Repository) IntegrityEvent() repositories.IntegrityEventRepository { return integrityStore{r} }

func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	saved := r.snapshot()
	if err := fn(r.txHandle); err != nil {
		r.restore(saved)
		return err
	}
	return nil
}

// beginWrite returns the release func for a write. Writes outside a
// transaction wait for any open transaction to finish.
func (r *Repository) beginWrite(tx *gorm.DB) func() {
	if tx != nil && tx == r.txHandle {
		return func() {}
	}
	r.txMu.Lock()
	return r.txMu.Unlock
}

func (r *Repository) Ping(ctx context.Context) error { return ctx.Err() }
func (r *Repository) Close() error                   { return nil }

// PutExam stores an exam definition. Questions are kept in exam order.
func (r *Repository) PutExam(exam *models.Exam) {
	c := cloneExam(exam)
	sort.SliceStable(c.Questions, func(i, j int) bool {
		if c.Questions[i].Order != c.Questions[j].Order {
			return c.Questions[i].Order < c.Questions[j].Order
		}
		return c.Questions[i].ID < c.Questions[j].ID
	})
	for i := range c.Questions {
		c.Questions[i].ExamID = c.ID
	}

	r.mu.Lock()
	r.exams[c.ID] = c
	r.mu.Unlock()
}

// ===== STATE COPIES =====

type state struct {
	attempts map[uint]*models.Attempt
	answers  map[uint]map[uint]*models.AttemptAnswer
	grades   []models.ManualGrade
	events   []models.IntegrityEvent
	ids      [4]uint
}

func (r *Repository) snapshot() state {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := state{
		attempts: make(map[uint]*models.Attempt, len(r.attempts)),
		answers:  make(map[uint]map[uint]*models.AttemptAnswer, len(r.answers)),
		grades:   append([]models.ManualGrade(nil), r.grades...),
		events:   append([]models.IntegrityEvent(nil), r.events...),
		ids:      [4]uint{r.nextAttemptID, r.nextAnswerID, r.nextGradeID, r.nextEventID},
	}
	for id, a := range r.attempts {
		s.attempts[id] = cloneAttempt(a)
	}
	for attemptID, byQuestion := range r.answers {
		m := make(map[uint]*models.AttemptAnswer, len(byQuestion))
		for qid, ans := range byQuestion {
			c := *ans
			m[qid] = &c
		}
		s.answers[attemptID] = m
	}
	return s
}

func (r *Repository) restore(s state) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts = s.attempts
	r.answers = s.answers
	r.grades = s.grades
	r.events = s.events
	r.nextAttemptID, r.nextAnswerID, r.nextGradeID, r.nextEventID = s.ids[0], s.ids[1], s.ids[2], s.ids[3]
}

func cloneExam(e *models.Exam) *models.Exam {
	c := *e
	c.SubjectWeights = append(datatypes.JSONSlice[models.SubjectWeight](nil), e.SubjectWeights...)
	c.Questions = append([]models.Question(nil), e.Questions...)
	return &c
}

func cloneAttempt(a *models.Attempt) *models.Attempt {
	c := *a
	c.SubjectScores = append(datatypes.JSONSlice[models.SubjectScore](nil), a.SubjectScores...)
	c.QuestionOrder = append(datatypes.JSONSlice[uint](nil), a.QuestionOrder...)
	c.Answers = nil
	return &c
}

// ===== EXAMS =====

type examStore struct{ r *Repository }

func (s examStore) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	exam, ok := s.r.exams[id]
	if !ok || exam.DeletedAt.Valid {
		return nil, repositories.ErrNotFound
	}
	return cloneExam(exam), nil
}

// ===== ATTEMPTS =====

type attemptStore struct{ r *Repository }

func (s attemptStore) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for _, existing := range s.r.attempts {
		if existing.ExamID == attempt.ExamID && existing.StudentID == attempt.StudentID {
			return fmt.Errorf("%w: attempt for exam %d and student %s", repositories.ErrDuplicate, attempt.ExamID, attempt.StudentID)
		}
	}

	s.r.nextAttemptID++
	now := s.r.now()
	attempt.ID = s.r.nextAttemptID
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	if attempt.Status == "" {
		attempt.Status = models.AttemptInProgress
	}
	s.r.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (s attemptStore) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	attempt, ok := s.r.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s attemptStore) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Attempt, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	for _, attempt := range s.r.attempts {
		if attempt.ExamID == examID && attempt.StudentID == studentID {
			return cloneAttempt(attempt), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s attemptStore) ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	var out []*models.Attempt
	for _, attempt := range s.r.attempts {
		if attempt.ExamID != examID {
			continue
		}
		if filters.Status != nil && attempt.Status != *filters.Status {
			continue
		}
		c := cloneAttempt(attempt)
		c.Answers = s.sortedAnswers(attempt.ID)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filters.Offset, filters.Limit), nil
}

func (s attemptStore) GetExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, offset, limit int) ([]*models.Attempt, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	var out []*models.Attempt
	for _, attempt := range s.r.attempts {
		if attempt.Status == models.AttemptInProgress && attempt.Deadline.Before(now) {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, offset, limit), nil
}

func (s attemptStore) LockInProgress(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	attempt, ok := s.r.attempts[id]
	if !ok || attempt.Status != models.AttemptInProgress {
		return nil, repositories.ErrNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s attemptStore) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from models.AttemptStatus, t repositories.StatusTransition) (bool, error) {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	attempt, ok := s.r.attempts[id]
	if !ok || attempt.Status != from {
		return false, nil
	}

	attempt.Status = t.To
	if t.SubmittedAt != nil {
		v := *t.SubmittedAt
		attempt.SubmittedAt = &v
	}
	if t.SubmitReason != nil {
		v := *t.SubmitReason
		attempt.SubmitReason = &v
	}
	if t.Score != nil {
		attempt.Score = models.FloatPtr(*t.Score)
	}
	if t.MaxScore != nil {
		attempt.MaxScore = *t.MaxScore
	}
	if t.Percentage != nil {
		attempt.Percentage = models.IntPtr(*t.Percentage)
	}
	if t.GradedAt != nil {
		v := *t.GradedAt
		attempt.GradedAt = &v
	}
	if t.GeneralAverage != nil {
		attempt.GeneralAverage = models.FloatPtr(*t.GeneralAverage)
	}
	if t.ResultStatus != nil {
		v := *t.ResultStatus
		attempt.ResultStatus = &v
	}
	if t.SubjectScores != nil {
		attempt.SubjectScores = append(datatypes.JSONSlice[models.SubjectScore](nil), t.SubjectScores...)
	}
	attempt.UpdatedAt = s.r.now()
	return true, nil
}

func (s attemptStore) RotateToken(ctx context.Context, tx *gorm.DB, id uint, tokenID string) (bool, error) {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	attempt, ok := s.r.attempts[id]
	if !ok || attempt.Status != models.AttemptInProgress {
		return false, nil
	}
	attempt.TokenID = tokenID
	attempt.UpdatedAt = s.r.now()
	return true, nil
}

// ===== ANSWERS =====

func (s attemptStore) UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	s.upsert(answer)
	return nil
}

func (s attemptStore) UpsertAnswerIfNewer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) (bool, error) {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if existing, ok := s.r.answers[answer.AttemptID][answer.QuestionID]; ok && !existing.SavedAt.Before(answer.SavedAt) {
		return false, nil
	}
	s.upsert(answer)
	return true, nil
}

// upsert requires s.r.mu to be held for writing.
func (s attemptStore) upsert(answer *models.AttemptAnswer) {
	now := s.r.now()
	byQuestion, ok := s.r.answers[answer.AttemptID]
	if !ok {
		byQuestion = make(map[uint]*models.AttemptAnswer)
		s.r.answers[answer.AttemptID] = byQuestion
	}

	if existing, ok := byQuestion[answer.QuestionID]; ok {
		existing.Value = answer.Value
		existing.SavedAt = answer.SavedAt
		existing.UpdatedAt = now
		answer.ID = existing.ID
		return
	}

	s.r.nextAnswerID++
	c := *answer
	c.ID = s.r.nextAnswerID
	c.CreatedAt = now
	c.UpdatedAt = now
	byQuestion[c.QuestionID] = &c
	answer.ID = c.ID
}

func (s attemptStore) GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.AttemptAnswer, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	return s.sortedAnswers(attemptID), nil
}

// sortedAnswers requires s.r.mu to be held.
func (s attemptStore) sortedAnswers(attemptID uint) []models.AttemptAnswer {
	byQuestion := s.r.answers[attemptID]
	out := make([]models.AttemptAnswer, 0, len(byQuestion))
	for _, ans := range byQuestion {
		out = append(out, *ans)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

func (s attemptStore) SaveOutcomes(ctx context.Context, tx *gorm.DB, attemptID uint, outcomes []repositories.AnswerOutcome, gradedAt time.Time) error {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for _, o := range outcomes {
		existing, ok := s.r.answers[attemptID][o.QuestionID]
		if !ok {
			s.upsert(&models.AttemptAnswer{AttemptID: attemptID, QuestionID: o.QuestionID, SavedAt: gradedAt})
			existing = s.r.answers[attemptID][o.QuestionID]
		}
		existing.Points = models.FloatPtr(o.Points)
		existing.IsCorrect = models.BoolPtr(o.IsCorrect)
		existing.Feedback = o.Feedback
		if o.GradedBy != nil {
			existing.GradedBy = models.StringPtr(*o.GradedBy)
		} else {
			existing.GradedBy = nil
		}
		existing.UpdatedAt = s.r.now()
	}
	return nil
}

// ===== MANUAL GRADING =====

func (s attemptStore) CreateManualGrades(ctx context.Context, tx *gorm.DB, grades []models.ManualGrade) error {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	now := s.r.now()
	for i := range grades {
		s.r.nextGradeID++
		grades[i].ID = s.r.nextGradeID
		grades[i].CreatedAt = now
		s.r.grades = append(s.r.grades, grades[i])
	}
	return nil
}

func (s attemptStore) GetManualGrades(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.ManualGrade, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	var out []models.ManualGrade
	for _, g := range s.r.grades {
		if g.AttemptID == attemptID {
			out = append(out, g)
		}
	}
	return out, nil
}

// ===== INTEGRITY EVENTS =====

type integrityStore struct{ r *Repository }

func (s integrityStore) Create(ctx context.Context, tx *gorm.DB, event *models.IntegrityEvent) error {
	defer s.r.beginWrite(tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	s.r.nextEventID++
	event.ID = s.r.nextEventID
	event.CreatedAt = s.r.now()
	s.r.events = append(s.r.events, *event)
	return nil
}

func (s integrityStore) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.IntegrityEvent, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	var out []models.IntegrityEvent
	for _, e := range s.r.events {
		if e.AttemptID == attemptID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s integrityStore) CountByAttempt(ctx context.Context, tx *gorm.DB, attemptIDs []uint) (map[uint]int, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()

	counts := make(map[uint]int, len(attemptIDs))
	wanted := make(map[uint]struct{}, len(attemptIDs))
	for _, id := range attemptIDs {
		wanted[id] = struct{}{}
	}
	for _, e := range s.r.events {
		if _, ok := wanted[e.AttemptID]; ok {
			counts[e.AttemptID]++
		}
	}
	return counts, nil
}

func paginate(attempts []*models.Attempt, offset, limit int) []*models.Attempt {
	if offset > 0 {
		if offset >= len(attempts) {
			return nil
		}
		attempts = attempts[offset:]
	}
	if limit > 0 && limit < len(attempts) {
		attempts = attempts[:limit]
	}
	return attempts
}
