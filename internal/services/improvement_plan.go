package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seio-edu/quiz-service/internal/events"
	"github.com/seio-edu/quiz-service/internal/metrics"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

type improvementPlanTrigger struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	rules     QuizRules

	now  func() time.Time
	goFn func(func())
}

func NewImprovementPlanTrigger(repo repositories.Repository, publisher events.EventPublisher, m *metrics.Metrics, logger *slog.Logger, rules QuizRules) ImprovementPlanTrigger {
	return &improvementPlanTrigger{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		rules:     rules,
		now:       time.Now,
		goFn:      func(fn func()) { go fn() },
	}
}

func (t *improvementPlanTrigger) Dispatch(studentID uint, phase, year int) {
	t.goFn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.rules.TriggerTimeout)
		defer cancel()

		if _, err := t.Evaluate(ctx, studentID, phase, year); err != nil {
			t.logger.Error("Improvement plan trigger failed",
				"student_id", studentID,
				"phase", phase,
				"academic_year", year,
				"error", err)
		}
	})
}

// Evaluate requests a plan when the phase is complete, its grade is below the
// threshold and no plan was requested for it yet. The marker is written only
// after a successful publish, so a failed request is retried on the student's
// next submission.
func (t *improvementPlanTrigger) Evaluate(ctx context.Context, studentID uint, phase, year int) (bool, error) {
	student, err := t.repo.Student().GetByID(ctx, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to load student: %w", err)
	}

	questionnaireIDs, err := t.repo.Questionnaire().ListIDsByPhaseAndGrade(ctx, phase, student.Grade)
	if err != nil {
		return false, fmt.Errorf("failed to list phase questionnaires: %w", err)
	}
	if len(questionnaireIDs) == 0 {
		return false, nil
	}

	completed, err := t.repo.EvaluationResult().CountForQuestionnaires(ctx, studentID, year, questionnaireIDs)
	if err != nil {
		return false, fmt.Errorf("failed to count completed evaluations: %w", err)
	}
	if int(completed) < len(questionnaireIDs) {
		t.logger.Debug("Phase not completed yet",
			"student_id", studentID,
			"phase", phase,
			"completed", completed,
			"required", len(questionnaireIDs))
		return false, nil
	}

	grade, err := t.repo.Grade().GetByStudentYear(ctx, studentID, year)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load grade: %w", err)
	}
	// Compared as stored, rounded to two decimals.
	phaseGrade := grade.PhaseValue(phase)
	if phaseGrade == nil || *phaseGrade >= t.rules.ImprovementThreshold {
		return false, nil
	}

	requested, err := t.repo.ImprovementPlan().Exists(ctx, studentID, phase, year)
	if err != nil {
		return false, fmt.Errorf("failed to check improvement plan marker: %w", err)
	}
	if requested {
		return false, nil
	}

	data := events.ImprovementPlanRequestedData{
		StudentID:    student.ID,
		UserID:       student.UserID,
		StudentName:  student.Name,
		Grade:        student.Grade,
		Course:       student.Course,
		Phase:        phase,
		PhaseGrade:   *phaseGrade,
		Threshold:    t.rules.ImprovementThreshold,
		AcademicYear: year,
	}
	if user, err := t.repo.User().GetByID(ctx, student.UserID); err == nil {
		data.Email = user.Email
		if data.StudentName == "" {
			data.StudentName = user.FullName
		}
	} else {
		t.logger.Warn("Could not load student account for improvement plan",
			"student_id", studentID,
			"user_id", student.UserID,
			"error", err)
	}

	event := events.NewEvent(events.EventImprovementPlanRequested, data)
	event.ID = improvementPlanEventID(studentID, phase, year)
	event.Timestamp = t.now().UTC()

	if err := t.publisher.Publish(ctx, event); err != nil {
		return false, fmt.Errorf("failed to publish improvement plan request: %w", err)
	}

	marker := &models.ImprovementPlanRequest{
		StudentID:    studentID,
		Phase:        phase,
		AcademicYear: year,
		EventID:      event.ID,
		PhaseGrade:   *phaseGrade,
		RequestedAt:  event.Timestamp,
	}
	if err := t.repo.ImprovementPlan().Record(ctx, marker); err != nil {
		// The next submission publishes again under the same event id.
		t.logger.Warn("Failed to record improvement plan request",
			"student_id", studentID,
			"phase", phase,
			"event_id", event.ID,
			"error", err)
	}

	t.metrics.ImprovementPlanRequested()
	t.logger.Info("Improvement plan requested",
		"student_id", studentID,
		"phase", phase,
		"phase_grade", *phaseGrade,
		"academic_year", year)

	return true, nil
}

// improvementPlanEventID is stable per student, phase and year so consumers
// can drop redelivered requests.
func improvementPlanEventID(studentID uint, phase, year int) string {
	name := fmt.Sprintf("improvement-plan:%d:%d:%d", studentID, phase, year)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
