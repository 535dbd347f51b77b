package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

// memState is the full content of memRepo; transactions snapshot and restore it.
type memState struct {
	questionnaires map[uint]models.Questionnaire
	questions      map[uint]models.Question
	students       map[uint]models.Student
	users          map[string]models.User
	sessions       map[uint]models.QuizSession
	attempts       map[uint]models.QuizAttempt
	results        map[uint]models.EvaluationResult
	phaseAverages  map[uint]models.PhaseAverage
	grades         map[uint]models.Grade
	plans          map[uint]models.ImprovementPlanRequest
	nextID         uint
}

func (s *memState) clone() *memState {
	return &memState{
		questionnaires: maps.Clone(s.questionnaires),
		questions:      maps.Clone(s.questions),
		students:       maps.Clone(s.students),
		users:          maps.Clone(s.users),
		sessions:       maps.Clone(s.sessions),
		attempts:       maps.Clone(s.attempts),
		results:        maps.Clone(s.results),
		phaseAverages:  maps.Clone(s.phaseAverages),
		grades:         maps.Clone(s.grades),
		plans:          maps.Clone(s.plans),
		nextID:         s.nextID,
	}
}

// memRepo is an in-memory repositories.Repository. A failed transaction
// rolls back every write made inside it.
type memRepo struct {
	mu    sync.Mutex
	state *memState
}

func newMemRepo() *memRepo {
	return &memRepo{state: &memState{
		questionnaires: map[uint]models.Questionnaire{},
		questions:      map[uint]models.Question{},
		students:       map[uint]models.Student{},
		users:          map[string]models.User{},
		sessions:       map[uint]models.QuizSession{},
		attempts:       map[uint]models.QuizAttempt{},
		results:        map[uint]models.EvaluationResult{},
		phaseAverages:  map[uint]models.PhaseAverage{},
		grades:         map[uint]models.Grade{},
		plans:          map[uint]models.ImprovementPlanRequest{},
		nextID:         1000,
	}}
}

func (r *memRepo) id() uint {
	r.state.nextID++
	return r.state.nextID
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
}

func (r *memRepo) Questionnaire() repositories.QuestionnaireRepository { return memQuestionnaires{r} }
func (r *memRepo) Question() repositories.QuestionRepository           { return memQuestions{r} }
func (r *memRepo) Student() repositories.StudentRepository             { return memStudents{r} }
func (r *memRepo) Session() repositories.SessionRepository             { return memSessions{r} }
func (r *memRepo) Attempt() repositories.AttemptRepository             { return memAttempts{r} }
func (r *memRepo) EvaluationResult() repositories.EvaluationResultRepository {
	return memResults{r}
}
func (r *memRepo) PhaseAverage() repositories.PhaseAverageRepository { return memPhaseAverages{r} }
func (r *memRepo) Grade() repositories.GradeRepository               { return memGrades{r} }
func (r *memRepo) User() repositories.UserRepository                 { return memUsers{r} }
func (r *memRepo) ImprovementPlan() repositories.ImprovementPlanRepository {
	return memImprovementPlans{r}
}

func (r *memRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.mu.Lock()
	snapshot := r.state.clone()
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.state = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) Ping(ctx context.Context) error { return nil }
func (r *memRepo) Close() error                   { return nil }

// ===== seeding and inspection helpers =====

func (r *memRepo) addQuestionnaire(q models.Questionnaire) *models.Questionnaire {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.ID == 0 {
		q.ID = r.id()
	}
	r.state.questionnaires[q.ID] = q
	return &q
}

// addQuestions creates n questions; question i has correct option i%4+1.
func (r *memRepo) addQuestions(questionnaireID uint, n int) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		id := r.id()
		r.state.questions[id] = models.Question{
			ID:              id,
			QuestionnaireID: questionnaireID,
			QuestionText:    fmt.Sprintf("question %d", i+1),
			Option1:         "a",
			Option2:         "b",
			Option3:         "c",
			Option4:         "d",
			CorrectAnswer:   i%4 + 1,
		}
		ids = append(ids, id)
	}
	return ids
}

func (r *memRepo) addStudent(s models.Student) *models.Student {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		s.ID = r.id()
	}
	r.state.students[s.ID] = s
	return &s
}

func (r *memRepo) addUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.users[u.ID] = u
}

func (r *memRepo) question(id uint) models.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.questions[id]
}

func (r *memRepo) deleteQuestion(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state.questions, id)
}

func (r *memRepo) sessionByID(id uint) models.QuizSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.sessions[id]
}

func (r *memRepo) allSessions() []models.QuizSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Values(r.state.sessions))
}

func (r *memRepo) allAttempts() []models.QuizAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Values(r.state.attempts))
}

func (r *memRepo) allImprovementPlans() []models.ImprovementPlanRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Values(r.state.plans))
}

func (r *memRepo) allPhaseAverages() []models.PhaseAverage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Values(r.state.phaseAverages))
}

// ===== catalog =====

type memQuestionnaires struct{ r *memRepo }

func (m memQuestionnaires) GetByID(ctx context.Context, id uint) (*models.Questionnaire, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	q, ok := m.r.state.questionnaires[id]
	if !ok {
		return nil, notFound("questionnaire")
	}
	return &q, nil
}

func (m memQuestionnaires) ListIDsByPhaseAndGrade(ctx context.Context, phase, grade int) ([]uint, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var ids []uint
	for _, q := range m.r.state.questionnaires {
		if q.Phase == phase && q.Grade == grade {
			ids = append(ids, q.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

type memQuestions struct{ r *memRepo }

func (m memQuestions) ListByQuestionnaire(ctx context.Context, questionnaireID uint) ([]*models.Question, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []*models.Question
	for _, q := range m.r.state.questions {
		if q.QuestionnaireID == questionnaireID {
			out = append(out, &q)
		}
	}
	slices.SortFunc(out, func(a, b *models.Question) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (m memQuestions) ListIDsByQuestionnaire(ctx context.Context, questionnaireID uint) ([]uint, error) {
	questions, _ := m.ListByQuestionnaire(ctx, questionnaireID)
	ids := make([]uint, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (m memQuestions) GetByIDsInQuestionnaire(ctx context.Context, questionnaireID uint, ids []uint) ([]*models.Question, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []*models.Question
	for _, id := range ids {
		if q, ok := m.r.state.questions[id]; ok && q.QuestionnaireID == questionnaireID {
			out = append(out, &q)
		}
	}
	return out, nil
}

func (m memQuestions) CountByQuestionnaire(ctx context.Context, questionnaireID uint) (int, error) {
	ids, _ := m.ListIDsByQuestionnaire(ctx, questionnaireID)
	return len(ids), nil
}

type memStudents struct{ r *memRepo }

func (m memStudents) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	s, ok := m.r.state.students[id]
	if !ok {
		return nil, notFound("student")
	}
	return &s, nil
}

func (m memStudents) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, s := range m.r.state.students {
		if s.UserID == userID {
			return &s, nil
		}
	}
	return nil, notFound("student")
}

type memUsers struct{ r *memRepo }

func (m memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	u, ok := m.r.state.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

// ===== quiz lifecycle =====

type memSessions struct{ r *memRepo }

func (m memSessions) CreateIfAbsent(ctx context.Context, session *models.QuizSession) (*models.QuizSession, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, s := range m.r.state.sessions {
		if s.StudentID == session.StudentID && s.QuestionnaireID == session.QuestionnaireID &&
			s.AttemptNumber == session.AttemptNumber && s.AcademicYear == session.AcademicYear {
			return &s, nil
		}
	}
	session.ID = m.r.id()
	m.r.state.sessions[session.ID] = *session
	return session, nil
}

func (m memSessions) GetByID(ctx context.Context, id uint) (*models.QuizSession, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	s, ok := m.r.state.sessions[id]
	if !ok {
		return nil, notFound("session")
	}
	return &s, nil
}

func (m memSessions) GetBySlot(ctx context.Context, studentID, questionnaireID uint, attemptNumber, year int) (*models.QuizSession, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, s := range m.r.state.sessions {
		if s.StudentID == studentID && s.QuestionnaireID == questionnaireID &&
			s.AttemptNumber == attemptNumber && s.AcademicYear == year {
			return &s, nil
		}
	}
	return nil, notFound("session")
}

func (m memSessions) GetLatestInProgress(ctx context.Context, studentID, questionnaireID uint, year int) (*models.QuizSession, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var latest *models.QuizSession
	for _, s := range m.r.state.sessions {
		if s.StudentID == studentID && s.QuestionnaireID == questionnaireID &&
			s.AcademicYear == year && s.Status == models.SessionInProgress {
			if latest == nil || s.AttemptNumber > latest.AttemptNumber {
				latest = &s
			}
		}
	}
	if latest == nil {
		return nil, notFound("session")
	}
	return latest, nil
}

func (m memSessions) CountByStatus(ctx context.Context, studentID, questionnaireID uint, year int, status models.SessionStatus) (int64, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var n int64
	for _, s := range m.r.state.sessions {
		if s.StudentID == studentID && s.QuestionnaireID == questionnaireID &&
			s.AcademicYear == year && s.Status == status {
			n++
		}
	}
	return n, nil
}

func (m memSessions) MarkExpired(ctx context.Context, id uint) (bool, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	s, ok := m.r.state.sessions[id]
	if !ok || s.Status != models.SessionInProgress {
		return false, nil
	}
	s.Status = models.SessionExpired
	m.r.state.sessions[id] = s
	return true, nil
}

func (m memSessions) MarkSubmitted(ctx context.Context, id uint, answers models.AnswerSheet, at time.Time) (bool, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	s, ok := m.r.state.sessions[id]
	if !ok || s.Status != models.SessionInProgress {
		return false, nil
	}
	s.Status = models.SessionSubmitted
	s.SubmittedAt = &at
	s.Answers = datatypes.NewJSONType(answers)
	m.r.state.sessions[id] = s
	return true, nil
}

type memAttempts struct{ r *memRepo }

func (m memAttempts) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, a := range m.r.state.attempts {
		if a.StudentID == attempt.StudentID && a.QuestionnaireID == attempt.QuestionnaireID &&
			a.AttemptNumber == attempt.AttemptNumber && a.AcademicYear == attempt.AcademicYear {
			return gorm.ErrDuplicatedKey
		}
	}
	attempt.ID = m.r.id()
	stored := *attempt
	stored.Questionnaire = nil
	m.r.state.attempts[attempt.ID] = stored
	return nil
}

func (m memAttempts) CountByStudentQuestionnaire(ctx context.Context, studentID, questionnaireID uint, year int) (int64, error) {
	attempts, _ := m.ListByStudentQuestionnaire(ctx, studentID, questionnaireID, year)
	return int64(len(attempts)), nil
}

func (m memAttempts) ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.QuizAttempt, error) {
	return m.list(func(a models.QuizAttempt) bool {
		return a.StudentID == studentID && a.AcademicYear == year
	}), nil
}

func (m memAttempts) ListByStudentQuestionnaire(ctx context.Context, studentID, questionnaireID uint, year int) ([]*models.QuizAttempt, error) {
	return m.list(func(a models.QuizAttempt) bool {
		return a.StudentID == studentID && a.QuestionnaireID == questionnaireID && a.AcademicYear == year
	}), nil
}

func (m memAttempts) list(match func(models.QuizAttempt) bool) []*models.QuizAttempt {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, a := range m.r.state.attempts {
		if match(a) {
			if q, ok := m.r.state.questionnaires[a.QuestionnaireID]; ok {
				a.Questionnaire = &q
			}
			out = append(out, &a)
		}
	}
	slices.SortFunc(out, func(a, b *models.QuizAttempt) int { return int(a.ID) - int(b.ID) })
	return out
}

// ===== aggregates =====

type memResults struct{ r *memRepo }

func (m memResults) GetByKey(ctx context.Context, studentID, questionnaireID uint, year int) (*models.EvaluationResult, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, res := range m.r.state.results {
		if res.StudentID == studentID && res.QuestionnaireID == questionnaireID && res.AcademicYear == year {
			return &res, nil
		}
	}
	return nil, notFound("evaluation result")
}

func (m memResults) Save(ctx context.Context, result *models.EvaluationResult) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if result.ID == 0 {
		for _, res := range m.r.state.results {
			if res.StudentID == result.StudentID && res.QuestionnaireID == result.QuestionnaireID && res.AcademicYear == result.AcademicYear {
				return gorm.ErrDuplicatedKey
			}
		}
		result.ID = m.r.id()
	}
	stored := *result
	stored.Questionnaire = nil
	m.r.state.results[result.ID] = stored
	return nil
}

func (m memResults) ListByStudentPhase(ctx context.Context, studentID uint, phase, year int) ([]*models.EvaluationResult, error) {
	return m.list(func(res models.EvaluationResult) bool {
		return res.StudentID == studentID && res.Phase == phase && res.AcademicYear == year
	}), nil
}

func (m memResults) ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.EvaluationResult, error) {
	return m.list(func(res models.EvaluationResult) bool {
		return res.StudentID == studentID && res.AcademicYear == year
	}), nil
}

func (m memResults) CountForQuestionnaires(ctx context.Context, studentID uint, year int, questionnaireIDs []uint) (int64, error) {
	return int64(len(m.list(func(res models.EvaluationResult) bool {
		return res.StudentID == studentID && res.AcademicYear == year && slices.Contains(questionnaireIDs, res.QuestionnaireID)
	}))), nil
}

func (m memResults) list(match func(models.EvaluationResult) bool) []*models.EvaluationResult {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []*models.EvaluationResult
	for _, res := range m.r.state.results {
		if match(res) {
			if q, ok := m.r.state.questionnaires[res.QuestionnaireID]; ok {
				res.Questionnaire = &q
			}
			out = append(out, &res)
		}
	}
	slices.SortFunc(out, func(a, b *models.EvaluationResult) int { return int(a.ID) - int(b.ID) })
	return out
}

type memPhaseAverages struct{ r *memRepo }

func (m memPhaseAverages) Upsert(ctx context.Context, avg *models.PhaseAverage) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for id, existing := range m.r.state.phaseAverages {
		if existing.StudentID == avg.StudentID && existing.TeacherID == avg.TeacherID && existing.Phase == avg.Phase {
			avg.ID = id
		}
	}
	if avg.ID == 0 {
		avg.ID = m.r.id()
	}
	stored := *avg
	stored.Student = nil
	m.r.state.phaseAverages[avg.ID] = stored
	return nil
}

func (m memPhaseAverages) ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.PhaseAverage, error) {
	return m.list(func(a models.PhaseAverage) bool {
		return a.StudentID == studentID && a.AcademicYear == year
	}), nil
}

func (m memPhaseAverages) ListByTeacherPhase(ctx context.Context, teacherID string, phase, year int) ([]*models.PhaseAverage, error) {
	return m.list(func(a models.PhaseAverage) bool {
		return (teacherID == "" || a.TeacherID == teacherID) && a.Phase == phase && a.AcademicYear == year
	}), nil
}

func (m memPhaseAverages) list(match func(models.PhaseAverage) bool) []*models.PhaseAverage {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	var out []*models.PhaseAverage
	for _, a := range m.r.state.phaseAverages {
		if match(a) {
			if s, ok := m.r.state.students[a.StudentID]; ok {
				a.Student = &s
			}
			out = append(out, &a)
		}
	}
	slices.SortFunc(out, func(a, b *models.PhaseAverage) int { return int(a.ID) - int(b.ID) })
	return out
}

type memGrades struct{ r *memRepo }

func (m memGrades) GetByStudentYear(ctx context.Context, studentID uint, year int) (*models.Grade, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, g := range m.r.state.grades {
		if g.StudentID == studentID && g.AcademicYear == year {
			return &g, nil
		}
	}
	return nil, notFound("grade")
}

func (m memGrades) Save(ctx context.Context, grade *models.Grade) error {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if grade.ID == 0 {
		for id, g := range m.r.state.grades {
			if g.StudentID == grade.StudentID && g.AcademicYear == grade.AcademicYear {
				grade.ID = id
			}
		}
	}
	if grade.ID == 0 {
		grade.ID = m.r.id()
	}
	m.r.state.grades[grade.ID] = *grade
	return nil
}

type memImprovementPlans struct{ r *memRepo }

func (m memImprovementPlans) Exists(ctx context.Context, studentID uint, phase, year int) (bool, error) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	for _, p := range m.r.state.plans {
		if p.StudentID == studentID && p.Phase == phase && p.AcademicYear == year {
			return true, nil
		}
	}
	return false, nil
}

func (m memImprovementPlans) Record(ctx context.Context, request *models.ImprovementPlanRequest) error {
	if ok, _ := m.Exists(ctx, request.StudentID, request.Phase, request.AcademicYear); ok {
		return nil
	}
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	request.ID = m.r.id()
	m.r.state.plans[request.ID] = *request
	return nil
}
