package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/seio-edu/quiz-service/internal/cache"
	"github.com/seio-edu/quiz-service/internal/events"
	"github.com/seio-edu/quiz-service/internal/metrics"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
	"github.com/seio-edu/quiz-service/internal/validator"
)

type attemptService struct {
	repo       repositories.Repository
	aggregator AggregatorService
	trigger    ImprovementPlanTrigger
	publisher  events.EventPublisher
	cache      *cache.CacheManager
	metrics    *metrics.Metrics
	validator  *validator.Validator
	logger     *slog.Logger
	rules      QuizRules

	now  func() time.Time
	goFn func(func())
}

func NewAttemptService(
	repo repositories.Repository,
	aggregator AggregatorService,
	trigger ImprovementPlanTrigger,
	publisher events.EventPublisher,
	cacheManager *cache.CacheManager,
	m *metrics.Metrics,
	v *validator.Validator,
	logger *slog.Logger,
	rules QuizRules,
) AttemptService {
	return &attemptService{
		repo:       repo,
		aggregator: aggregator,
		trigger:    trigger,
		publisher:  publisher,
		cache:      cacheManager,
		metrics:    m,
		validator:  v,
		logger:     logger,
		rules:      rules,
		now:        time.Now,
		goFn:       func(fn func()) { go fn() },
	}
}

// submission carries the validated state of one submit request.
type submission struct {
	student       *models.Student
	questionnaire *models.Questionnaire
	session       *models.QuizSession
	answers       models.AnswerSheet
	questions     []*models.Question
	required      int
	year          int
	now           time.Time
}

func (s *attemptService) Submit(ctx context.Context, user *models.User, req *SubmitQuizRequest) (*models.SubmitQuizResponse, error) {
	resp, err := s.submit(ctx, user, req)
	if err != nil {
		s.metrics.SubmissionRejected(ErrorCode(err))
		return nil, err
	}
	s.metrics.SubmissionAccepted(resp.Score)
	return resp, nil
}

func (s *attemptService) submit(ctx context.Context, user *models.User, req *SubmitQuizRequest) (*models.SubmitQuizResponse, error) {
	student, err := resolveOwnStudent(ctx, s.repo, user)
	if err != nil {
		return nil, err
	}
	if req.StudentID != nil && *req.StudentID != student.ID {
		s.logger.Warn("Ignoring client supplied student id",
			"client_student_id", *req.StudentID,
			"student_id", student.ID)
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if len(req.Answers) == 0 {
		return nil, ErrNoAnswers
	}

	sub, err := s.prepare(ctx, student, req)
	if err != nil {
		return nil, err
	}

	correct := 0
	for _, q := range sub.questions {
		if sub.answers[q.ID] == q.CorrectAnswer {
			correct++
		}
	}
	score, percentage := scoreSubmission(correct, sub.required)

	attempt := &models.QuizAttempt{
		StudentID:       student.ID,
		QuestionnaireID: sub.questionnaire.ID,
		AcademicYear:    sub.year,
		Score:           score,
		Percentage:      percentage,
		CorrectCount:    correct,
		TotalQuestions:  sub.required,
		Phase:           sub.questionnaire.Phase,
		AttemptedAt:     sub.now,
	}
	if sub.session != nil {
		attempt.SessionID = &sub.session.ID
	}

	var outcome *AggregationOutcome
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		used, err := usedAttemptSlots(ctx, tx, student.ID, sub.questionnaire.ID, sub.year)
		if err != nil {
			return err
		}
		if used >= s.rules.MaxAttempts {
			return ErrAttemptLimitExceeded
		}
		attempt.AttemptNumber = used + 1

		if sub.session != nil {
			if sub.session.AttemptNumber != attempt.AttemptNumber {
				s.logger.Warn("Session attempt number differs from used slots",
					"session_id", sub.session.ID,
					"session_attempt", sub.session.AttemptNumber,
					"counted_attempt", attempt.AttemptNumber)
			}
			changed, err := tx.Session().MarkSubmitted(ctx, sub.session.ID, sub.answers, sub.now)
			if err != nil {
				return fmt.Errorf("failed to mark session submitted: %w", err)
			}
			if !changed {
				return ErrSessionAlreadySubmitted
			}
		}

		if err := tx.Attempt().Create(ctx, attempt); err != nil {
			if repositories.IsDuplicateKeyError(err) {
				return ErrSessionAlreadySubmitted
			}
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		outcome, err = s.aggregator.Apply(ctx, tx, attempt, sub.questionnaire)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quiz attempt recorded",
		"attempt_id", attempt.ID,
		"student_id", student.ID,
		"questionnaire_id", sub.questionnaire.ID,
		"attempt_number", attempt.AttemptNumber,
		"score", score)

	s.afterCommit(ctx, attempt, outcome)

	return &models.SubmitQuizResponse{
		Message:        "Quiz submitted successfully",
		Score:          score,
		Percentage:     percentage,
		CorrectCount:   correct,
		TotalQuestions: sub.required,
		PhaseAverage:   outcome.PhaseAverage,
		AttemptNumber:  attempt.AttemptNumber,
		AttemptID:      attempt.ID,
	}, nil
}

// prepare loads and checks everything a submission depends on, up to scoring.
func (s *attemptService) prepare(ctx context.Context, student *models.Student, req *SubmitQuizRequest) (*submission, error) {
	questionnaire, err := s.repo.Questionnaire().GetByID(ctx, req.QuestionnaireID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionnaireNotFound
		}
		return nil, fmt.Errorf("failed to get questionnaire: %w", err)
	}

	now := s.now()
	sub := &submission{
		student:       student,
		questionnaire: questionnaire,
		answers:       make(models.AnswerSheet, len(req.Answers)),
		year:          s.rules.YearAt(now),
		now:           now,
	}

	ids := make([]uint, 0, len(req.Answers))
	for id, raw := range req.Answers {
		option, err := strconv.Atoi(raw)
		if err != nil {
			return nil, ValidationErrors{{Field: "answers", Message: "must be an option number between 1 and 4", Value: raw, Rule: "answer_option"}}
		}
		sub.answers[id] = option
		ids = append(ids, id)
	}

	used, err := usedAttemptSlots(ctx, s.repo, student.ID, questionnaire.ID, sub.year)
	if err != nil {
		return nil, err
	}
	if used >= s.rules.MaxAttempts {
		return nil, ErrAttemptLimitExceeded
	}

	sub.questions, err = s.repo.Question().GetByIDsInQuestionnaire(ctx, questionnaire.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load answered questions: %w", err)
	}
	if len(sub.questions) != len(ids) {
		return nil, ErrInvalidQuestionSet
	}

	sub.session, err = s.findSession(ctx, student, questionnaire, req.SessionID, sub.year)
	if err != nil {
		return nil, err
	}

	if sub.session != nil {
		if err := s.checkSession(ctx, sub); err != nil {
			return nil, err
		}
		// Frozen questions deleted since the session started are not required.
		resolvable, err := s.repo.Question().GetByIDsInQuestionnaire(ctx, questionnaire.ID, sub.session.QuestionIDs.Data())
		if err != nil {
			return nil, fmt.Errorf("failed to load session questions: %w", err)
		}
		sub.required = len(resolvable)
	} else {
		available, err := s.repo.Question().CountByQuestionnaire(ctx, questionnaire.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count questions: %w", err)
		}
		sub.required = effectiveQuestionCount(questionnaire, available)
	}

	if len(sub.answers) != sub.required {
		return nil, &IncompleteSubmissionError{Required: sub.required, Answered: len(sub.answers)}
	}

	return sub, nil
}

// findSession returns the session a submission is bound to. A nil session with
// a nil error means the questionnaire can be answered without one.
func (s *attemptService) findSession(ctx context.Context, student *models.Student, questionnaire *models.Questionnaire, sessionID *uint, year int) (*models.QuizSession, error) {
	var (
		session *models.QuizSession
		err     error
	)
	if sessionID != nil {
		session, err = s.repo.Session().GetByID(ctx, *sessionID)
		if err == nil && (session.StudentID != student.ID || session.QuestionnaireID != questionnaire.ID) {
			return nil, ErrNoActiveSession
		}
	} else {
		session, err = s.repo.Session().GetLatestInProgress(ctx, student.ID, questionnaire.ID, year)
	}

	switch {
	case err == nil:
		return session, nil
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to find session: %w", err)
	case sessionID != nil || questionnaire.RequiresSession():
		return nil, ErrNoActiveSession
	default:
		return nil, nil
	}
}

func (s *attemptService) checkSession(ctx context.Context, sub *submission) error {
	if sub.session.Status == models.SessionSubmitted {
		return ErrSessionAlreadySubmitted
	}
	if err := ensureNotExpired(ctx, s.repo, s.metrics, sub.session, sub.now); err != nil {
		s.logger.Info("Quiz submission after deadline",
			"session_id", sub.session.ID,
			"student_id", sub.student.ID)
		return err
	}

	frozen := sub.session.QuestionIDs.Data()
	for id := range sub.answers {
		if !frozen.Contains(id) {
			s.logger.Warn("Answer outside session question set",
				"session_id", sub.session.ID,
				"question_id", id)
			return ErrInvalidQuestionSet
		}
	}
	return nil
}

// afterCommit runs the side effects of an accepted submission. None of them
// can fail the submission.
func (s *attemptService) afterCommit(ctx context.Context, attempt *models.QuizAttempt, outcome *AggregationOutcome) {
	if s.cache != nil {
		s.cache.InvalidateStudentDashboard(ctx, attempt.StudentID)
	}

	if s.publisher != nil {
		event := events.NewEvent(events.EventAttemptSubmitted, events.AttemptSubmittedData{
			AttemptID:       attempt.ID,
			StudentID:       attempt.StudentID,
			QuestionnaireID: attempt.QuestionnaireID,
			AttemptNumber:   attempt.AttemptNumber,
			Score:           attempt.Score,
			Phase:           attempt.Phase,
			AcademicYear:    attempt.AcademicYear,
			PhaseAverage:    copyFloat(outcome.PhaseAverage),
		})
		s.goFn(func() {
			pubCtx, cancel := context.WithTimeout(context.Background(), s.rules.TriggerTimeout)
			defer cancel()
			if err := s.publisher.Publish(pubCtx, event); err != nil {
				s.logger.Error("Failed to publish attempt event", "attempt_id", attempt.ID, "error", err)
			}
		})
	}

	if s.trigger != nil {
		s.trigger.Dispatch(attempt.StudentID, attempt.Phase, attempt.AcademicYear)
	}
}
