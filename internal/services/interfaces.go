package services

import (
	"context"
	"time"

	"github.com/seio-edu/quiz-service/internal/config"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
	"github.com/seio-edu/quiz-service/internal/validator"
)

// ===== REQUEST DTOs =====

type SubmitQuizRequest = validator.SubmitQuizRequest

// ===== SERVICE INTERFACES =====

// SessionService delivers questions, binding students to quiz sessions.
type SessionService interface {
	GetQuestions(ctx context.Context, user *models.User, questionnaireID uint) (*models.QuizQuestionsResponse, error)
}

// AttemptService scores and records submissions.
type AttemptService interface {
	Submit(ctx context.Context, user *models.User, req *SubmitQuizRequest) (*models.SubmitQuizResponse, error)
}

// AggregatorService keeps evaluation results, grades and phase averages in
// line with the recorded attempts.
type AggregatorService interface {
	// Apply folds a freshly inserted attempt into the aggregates using repo,
	// which is expected to be bound to the submission transaction.
	Apply(ctx context.Context, repo repositories.Repository, attempt *models.QuizAttempt, questionnaire *models.Questionnaire) (*AggregationOutcome, error)
	// Recompute rebuilds the phase aggregates of a student from stored results.
	Recompute(ctx context.Context, studentID uint, phase, year int) (*AggregationOutcome, error)
}

// ImprovementPlanTrigger requests improvement plans for students who finish a
// phase below the threshold.
type ImprovementPlanTrigger interface {
	// Evaluate checks the phase and publishes a request when due. It reports whether a request was published.
	Evaluate(ctx context.Context, studentID uint, phase, year int) (bool, error)
	// Dispatch runs Evaluate in the background. Failures are logged only.
	Dispatch(studentID uint, phase, year int)
}

// EvaluationService serves attempt history and the phase dashboard.
type EvaluationService interface {
	ListAttempts(ctx context.Context, user *models.User, studentRef string) ([]*models.AttemptHistoryItem, error)
	ListAttemptsForQuestionnaire(ctx context.Context, user *models.User, studentRef string, questionnaireID uint) ([]*models.AttemptHistoryItem, error)
	EvaluationsByPhase(ctx context.Context, user *models.User, studentRef string) (*models.PhaseEvaluationsResponse, error)
	Recompute(ctx context.Context, user *models.User, studentRef string, phase int) (*models.RecomputeResponse, error)
}

// ReportService exports teacher-facing spreadsheets.
type ReportService interface {
	ExportPhaseAverages(ctx context.Context, user *models.User, phase, year int) ([]byte, error)
}

type ServiceManager interface {
	Session() SessionService
	Attempt() AttemptService
	Aggregator() AggregatorService
	ImprovementPlan() ImprovementPlanTrigger
	Evaluation() EvaluationService
	Report() ReportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ===== SHARED TYPES =====

// AggregationOutcome is what one aggregation pass wrote.
type AggregationOutcome struct {
	EvaluationCreated    bool
	EvaluationResult     *models.EvaluationResult
	PhaseAverage         *float64
	CompletedEvaluations int
	Grade                *models.Grade
}

// QuizRules are the grading rules shared by the quiz services.
type QuizRules struct {
	MaxAttempts          int
	ImprovementThreshold float64
	// AcademicYear pins the academic year; zero follows the calendar year.
	AcademicYear   int
	TriggerTimeout time.Duration
}

func DefaultQuizRules() QuizRules {
	return QuizRules{
		MaxAttempts:          2,
		ImprovementThreshold: 3.5,
		TriggerTimeout:       10 * time.Second,
	}
}

// QuizRulesFromConfig converts the loaded configuration into QuizRules.
func QuizRulesFromConfig(cfg config.QuizConfig) QuizRules {
	rules := DefaultQuizRules()
	if cfg.MaxAttemptsPerYear > 0 {
		rules.MaxAttempts = cfg.MaxAttemptsPerYear
	}
	if cfg.ImprovementThreshold > 0 {
		rules.ImprovementThreshold = cfg.ImprovementThreshold
	}
	if cfg.TriggerTimeout > 0 {
		rules.TriggerTimeout = cfg.TriggerTimeout
	}
	rules.AcademicYear = cfg.AcademicYear
	return rules
}

// YearAt returns the academic year in effect at t.
func (r QuizRules) YearAt(t time.Time) int {
	if r.AcademicYear > 0 {
		return r.AcademicYear
	}
	return t.Year()
}
