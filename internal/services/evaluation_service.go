package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/seio-edu/quiz-service/internal/cache"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

type evaluationService struct {
	repo       repositories.Repository
	aggregator AggregatorService
	cache      *cache.CacheManager
	logger     *slog.Logger
	rules      QuizRules

	now func() time.Time
}

func NewEvaluationService(repo repositories.Repository, aggregator AggregatorService, cacheManager *cache.CacheManager, logger *slog.Logger, rules QuizRules) EvaluationService {
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(nil)
	}
	return &evaluationService{
		repo:       repo,
		aggregator: aggregator,
		cache:      cacheManager,
		logger:     logger,
		rules:      rules,
		now:        time.Now,
	}
}

func (s *evaluationService) ListAttempts(ctx context.Context, user *models.User, studentRef string) ([]*models.AttemptHistoryItem, error) {
	student, err := resolveStudentRef(ctx, s.repo, user, studentRef)
	if err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListByStudent(ctx, student.ID, s.rules.YearAt(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return toAttemptHistory(attempts), nil
}

func (s *evaluationService) ListAttemptsForQuestionnaire(ctx context.Context, user *models.User, studentRef string, questionnaireID uint) ([]*models.AttemptHistoryItem, error) {
	student, err := resolveStudentRef(ctx, s.repo, user, studentRef)
	if err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListByStudentQuestionnaire(ctx, student.ID, questionnaireID, s.rules.YearAt(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return toAttemptHistory(attempts), nil
}

func (s *evaluationService) EvaluationsByPhase(ctx context.Context, user *models.User, studentRef string) (*models.PhaseEvaluationsResponse, error) {
	student, err := resolveStudentRef(ctx, s.repo, user, studentRef)
	if err != nil {
		return nil, err
	}
	year := s.rules.YearAt(s.now())

	var resp models.PhaseEvaluationsResponse
	err = s.cache.Dashboard.CacheOrExecute(ctx, s.cache.DashboardKey(ctx, student.ID, year), &resp, cache.DashboardCacheConfig.TTL, func() (interface{}, error) {
		return s.buildPhaseEvaluations(ctx, student.ID, year)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *evaluationService) buildPhaseEvaluations(ctx context.Context, studentID uint, year int) (*models.PhaseEvaluationsResponse, error) {
	results, err := s.repo.EvaluationResult().ListByStudent(ctx, studentID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation results: %w", err)
	}
	attempts, err := s.repo.Attempt().ListByStudent(ctx, studentID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	averages, err := s.repo.PhaseAverage().ListByStudent(ctx, studentID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase averages: %w", err)
	}
	grade, err := s.repo.Grade().GetByStudentYear(ctx, studentID, year)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load grade: %w", err)
	}
	if err != nil {
		grade = nil
	}

	attemptsUsed := make(map[uint]int)
	for _, a := range attempts {
		attemptsUsed[a.QuestionnaireID]++
	}

	resp := &models.PhaseEvaluationsResponse{
		StudentID:    studentID,
		AcademicYear: year,
		Phases:       make([]models.PhaseSummary, models.PhaseCount),
	}
	for i := range resp.Phases {
		phase := i + 1
		resp.Phases[i] = models.PhaseSummary{
			Phase:           phase,
			Evaluations:     []models.EvaluationSummary{},
			PhaseGrade:      grade.PhaseValue(phase),
			TeacherAverages: []models.TeacherPhaseAverage{},
		}
	}
	if grade != nil {
		resp.OverallAverage = grade.Average
	}

	for _, r := range results {
		if r.Phase < 1 || r.Phase > models.PhaseCount {
			continue
		}
		summary := models.EvaluationSummary{
			QuestionnaireID:   r.QuestionnaireID,
			BestScore:         r.BestScore,
			SelectedAttemptID: r.SelectedAttemptID,
			AttemptsUsed:      attemptsUsed[r.QuestionnaireID],
			UpdatedAt:         r.UpdatedAt,
		}
		if r.Questionnaire != nil {
			summary.QuestionnaireTitle = r.Questionnaire.Title
			summary.IsPruebaSaber = r.Questionnaire.IsPruebaSaber
		}
		phase := &resp.Phases[r.Phase-1]
		phase.Evaluations = append(phase.Evaluations, summary)
		if !summary.IsPruebaSaber {
			phase.CompletedEvaluations++
		}
	}

	for _, a := range averages {
		if a.Phase < 1 || a.Phase > models.PhaseCount {
			continue
		}
		phase := &resp.Phases[a.Phase-1]
		phase.TeacherAverages = append(phase.TeacherAverages, models.TeacherPhaseAverage{
			TeacherID:            a.TeacherID,
			AverageScore:         a.AverageScore,
			CompletedEvaluations: a.CompletedEvaluations,
		})
	}

	for i := range resp.Phases {
		evals := resp.Phases[i].Evaluations
		sort.Slice(evals, func(a, b int) bool { return evals[a].QuestionnaireID < evals[b].QuestionnaireID })
	}

	return resp, nil
}

func (s *evaluationService) Recompute(ctx context.Context, user *models.User, studentRef string, phase int) (*models.RecomputeResponse, error) {
	if phase < 1 || phase > models.PhaseCount {
		return nil, ErrInvalidPhase
	}
	if !user.CanReadAnyStudent() {
		return nil, NewPermissionError(user.ID, 0, "aggregates", "recompute", "only teachers and administrators may recompute aggregates")
	}

	student, err := resolveStudentRef(ctx, s.repo, user, studentRef)
	if err != nil {
		return nil, err
	}
	year := s.rules.YearAt(s.now())

	outcome, err := s.aggregator.Recompute(ctx, student.ID, phase, year)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateStudentDashboard(ctx, student.ID)

	s.logger.Info("Aggregates recomputed on request",
		"requested_by", user.ID,
		"student_id", student.ID,
		"phase", phase)

	resp := &models.RecomputeResponse{
		StudentID:            student.ID,
		Phase:                phase,
		AcademicYear:         year,
		PhaseAverage:         outcome.PhaseAverage,
		CompletedEvaluations: outcome.CompletedEvaluations,
	}
	if outcome.Grade != nil {
		resp.OverallAverage = outcome.Grade.Average
	}
	return resp, nil
}

func toAttemptHistory(attempts []*models.QuizAttempt) []*models.AttemptHistoryItem {
	items := make([]*models.AttemptHistoryItem, 0, len(attempts))
	for _, a := range attempts {
		item := &models.AttemptHistoryItem{
			ID:              a.ID,
			QuestionnaireID: a.QuestionnaireID,
			AttemptNumber:   a.AttemptNumber,
			Score:           a.Score,
			Percentage:      a.Percentage,
			CorrectCount:    a.CorrectCount,
			TotalQuestions:  a.TotalQuestions,
			Phase:           a.Phase,
			AcademicYear:    a.AcademicYear,
			AttemptedAt:     a.AttemptedAt,
		}
		if a.Questionnaire != nil {
			item.QuestionnaireTitle = a.Questionnaire.Title
		}
		items = append(items, item)
	}
	return items
}
