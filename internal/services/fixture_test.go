package services

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seio-edu/quiz-service/internal/cache"
	"github.com/seio-edu/quiz-service/internal/events"
	"github.com/seio-edu/quiz-service/internal/metrics"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/validator"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fixtureTime() time.Time {
	return time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
}

// reverseShuffler is a deterministic Shuffler that reverses the input.
func reverseShuffler(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

type quizFixture struct {
	ctx       context.Context
	repo      *memRepo
	publisher *events.MockEventPublisher
	metrics   *metrics.Metrics
	clock     *testClock
	rules     QuizRules

	aggregator  AggregatorService
	trigger     *improvementPlanTrigger
	sessions    *sessionService
	attempts    *attemptService
	evaluations *evaluationService
	reports     *reportService

	student *models.Student
	user    *models.User
	teacher *models.User
	admin   *models.User
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemRepo()
	publisher := events.NewMockEventPublisher(logger)
	m := metrics.New(prometheus.NewRegistry())
	clock := &testClock{now: fixtureTime()}
	rules := DefaultQuizRules()
	runNow := func(fn func()) { fn() }

	aggregator := NewAggregatorService(repo, logger)

	trigger := NewImprovementPlanTrigger(repo, publisher, m, logger, rules).(*improvementPlanTrigger)
	trigger.now = clock.Now
	trigger.goFn = runNow

	sessions := NewSessionService(repo, logger, m, rules).(*sessionService)
	sessions.now = clock.Now

	attempts := NewAttemptService(repo, aggregator, trigger, publisher, cache.NewCacheManager(nil), m, validator.New(), logger, rules).(*attemptService)
	attempts.now = clock.Now
	attempts.goFn = runNow

	evaluations := NewEvaluationService(repo, aggregator, nil, logger, rules).(*evaluationService)
	evaluations.now = clock.Now

	reports := NewReportService(repo, logger, rules).(*reportService)
	reports.now = clock.Now

	student := repo.addStudent(models.Student{UserID: "user-1", Name: "Ana Gomez", Grade: 5, Course: "5A"})
	user := &models.User{ID: "user-1", FullName: "Ana Gomez", Email: "ana@example.edu", Role: models.RoleStudent}
	repo.addUser(*user)

	return &quizFixture{
		ctx:         context.Background(),
		repo:        repo,
		publisher:   publisher,
		metrics:     m,
		clock:       clock,
		rules:       rules,
		aggregator:  aggregator,
		trigger:     trigger,
		sessions:    sessions,
		attempts:    attempts,
		evaluations: evaluations,
		reports:     reports,
		student:     student,
		user:        user,
		teacher:     &models.User{ID: "teacher-1", Role: models.RoleTeacher},
		admin:       &models.User{ID: "admin-1", Role: models.RoleAdmin},
	}
}

type questionnaireOpts struct {
	phase         int
	questions     int
	subset        int
	timeLimit     int
	isPruebaSaber bool
	teacherID     string
}

func (f *quizFixture) addQuestionnaire(opts questionnaireOpts) (*models.Questionnaire, []uint) {
	if opts.phase == 0 {
		opts.phase = 1
	}
	if opts.teacherID == "" {
		opts.teacherID = "teacher-1"
	}
	q := models.Questionnaire{
		Title:         "Questionnaire",
		TeacherID:     opts.teacherID,
		Phase:         opts.phase,
		Grade:         f.student.Grade,
		IsPruebaSaber: opts.isPruebaSaber,
	}
	if opts.subset > 0 {
		q.QuestionsToAnswer = &opts.subset
	}
	if opts.timeLimit > 0 {
		q.TimeLimitMinutes = &opts.timeLimit
	}
	stored := f.repo.addQuestionnaire(q)
	return stored, f.repo.addQuestions(stored.ID, opts.questions)
}

// answers answers ids in order, the first correct of them right and the rest wrong.
func (f *quizFixture) answers(ids []uint, correct int) map[uint]string {
	out := make(map[uint]string, len(ids))
	for i, id := range ids {
		option := f.repo.question(id).CorrectAnswer
		if i >= correct {
			option = option%4 + 1
		}
		out[id] = strconv.Itoa(option)
	}
	return out
}

func (f *quizFixture) fetch(t *testing.T, questionnaireID uint) *models.QuizQuestionsResponse {
	t.Helper()
	resp, err := f.sessions.GetQuestions(f.ctx, f.user, questionnaireID)
	if err != nil {
		t.Fatalf("GetQuestions() error = %v", err)
	}
	return resp
}

// takeQuiz fetches the questions and submits them with the given number of correct answers.
func (f *quizFixture) takeQuiz(t *testing.T, questionnaireID uint, correct int) *models.SubmitQuizResponse {
	t.Helper()
	resp := f.fetch(t, questionnaireID)
	submitted, err := f.attempts.Submit(f.ctx, f.user, &SubmitQuizRequest{
		QuestionnaireID: questionnaireID,
		Answers:         f.answers(questionIDs(resp), correct),
		SessionID:       &resp.Session.ID,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return submitted
}

func (f *quizFixture) grade(t *testing.T) *models.Grade {
	t.Helper()
	grade, err := f.repo.Grade().GetByStudentYear(f.ctx, f.student.ID, 2025)
	if err != nil {
		t.Fatalf("GetByStudentYear() error = %v", err)
	}
	return grade
}

func questionIDs(resp *models.QuizQuestionsResponse) []uint {
	ids := make([]uint, 0, len(resp.Questions))
	for _, q := range resp.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func floatValue(v *float64) string {
	if v == nil {
		return "<nil>"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
