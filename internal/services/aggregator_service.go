package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

type aggregatorService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewAggregatorService(repo repositories.Repository, logger *slog.Logger) AggregatorService {
	return &aggregatorService{
		repo:   repo,
		logger: logger,
	}
}

func (s *aggregatorService) Apply(ctx context.Context, repo repositories.Repository, attempt *models.QuizAttempt, questionnaire *models.Questionnaire) (*AggregationOutcome, error) {
	existing, err := repo.EvaluationResult().GetByKey(ctx, attempt.StudentID, attempt.QuestionnaireID, attempt.AcademicYear)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load evaluation result: %w", err)
	}
	if err != nil {
		existing = nil
	}

	result, created := MergeBestScore(existing, attempt, questionnaire)
	if err := repo.EvaluationResult().Save(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save evaluation result: %w", err)
	}

	outcome, err := s.recomputePhase(ctx, repo, attempt.StudentID, questionnaire.Phase, attempt.AcademicYear, []string{questionnaire.TeacherID})
	if err != nil {
		return nil, err
	}
	outcome.EvaluationCreated = created
	outcome.EvaluationResult = result

	s.logger.Info("Aggregates updated",
		"student_id", attempt.StudentID,
		"questionnaire_id", attempt.QuestionnaireID,
		"phase", questionnaire.Phase,
		"best_score", result.BestScore,
		"evaluation_created", created)

	return outcome, nil
}

func (s *aggregatorService) Recompute(ctx context.Context, studentID uint, phase, year int) (*AggregationOutcome, error) {
	if phase < 1 || phase > models.PhaseCount {
		return nil, ErrInvalidPhase
	}

	var outcome *AggregationOutcome
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		results, err := tx.EvaluationResult().ListByStudentPhase(ctx, studentID, phase, year)
		if err != nil {
			return fmt.Errorf("failed to list evaluation results: %w", err)
		}

		var teachers []string
		seen := make(map[string]bool)
		for _, r := range results {
			if r.Questionnaire != nil && !seen[r.Questionnaire.TeacherID] {
				seen[r.Questionnaire.TeacherID] = true
				teachers = append(teachers, r.Questionnaire.TeacherID)
			}
		}

		outcome, err = s.recomputeFromResults(ctx, tx, studentID, phase, year, results, teachers)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Phase aggregates recomputed",
		"student_id", studentID,
		"phase", phase,
		"academic_year", year)

	return outcome, nil
}

func (s *aggregatorService) recomputePhase(ctx context.Context, repo repositories.Repository, studentID uint, phase, year int, teacherIDs []string) (*AggregationOutcome, error) {
	results, err := repo.EvaluationResult().ListByStudentPhase(ctx, studentID, phase, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation results: %w", err)
	}
	return s.recomputeFromResults(ctx, repo, studentID, phase, year, results, teacherIDs)
}

// recomputeFromResults writes the grade row and then the per-teacher phase averages.
func (s *aggregatorService) recomputeFromResults(ctx context.Context, repo repositories.Repository, studentID uint, phase, year int, results []*models.EvaluationResult, teacherIDs []string) (*AggregationOutcome, error) {
	grade, err := repo.Grade().GetByStudentYear(ctx, studentID, year)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load grade: %w", err)
	}
	if err != nil {
		grade = nil
	}

	aggregates := RecomputeAggregates(AggregateSnapshot{
		StudentID:    studentID,
		AcademicYear: year,
		Phase:        phase,
		Evaluations:  evaluationScores(results),
		Grade:        grade,
	})

	newGrade := aggregates.Grade
	if err := repo.Grade().Save(ctx, &newGrade); err != nil {
		return nil, fmt.Errorf("failed to save grade: %w", err)
	}

	for _, teacherID := range teacherIDs {
		if err := repo.PhaseAverage().Upsert(ctx, &models.PhaseAverage{
			StudentID:            studentID,
			TeacherID:            teacherID,
			Phase:                phase,
			AverageScore:         copyFloat(aggregates.PhaseAverage),
			CompletedEvaluations: aggregates.CompletedEvaluations,
			AcademicYear:         year,
		}); err != nil {
			return nil, fmt.Errorf("failed to save phase average: %w", err)
		}
	}

	return &AggregationOutcome{
		PhaseAverage:         aggregates.PhaseAverage,
		CompletedEvaluations: aggregates.CompletedEvaluations,
		Grade:                &newGrade,
	}, nil
}
