package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/seio-edu/quiz-service/internal/metrics"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

type sessionService struct {
	repo    repositories.Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
	rules   QuizRules

	now     func() time.Time
	shuffle Shuffler
}

func NewSessionService(repo repositories.Repository, logger *slog.Logger, m *metrics.Metrics, rules QuizRules) SessionService {
	return &sessionService{
		repo:    repo,
		logger:  logger,
		metrics: m,
		rules:   rules,
		now:     time.Now,
		shuffle: defaultShuffler,
	}
}

func (s *sessionService) GetQuestions(ctx context.Context, user *models.User, questionnaireID uint) (*models.QuizQuestionsResponse, error) {
	questionnaire, err := s.repo.Questionnaire().GetByID(ctx, questionnaireID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionnaireNotFound
		}
		return nil, fmt.Errorf("failed to get questionnaire: %w", err)
	}

	if !user.IsStudent() {
		return s.preview(ctx, questionnaire)
	}

	student, err := resolveOwnStudent(ctx, s.repo, user)
	if err != nil {
		return nil, err
	}

	return s.getOrCreateSession(ctx, student, questionnaire)
}

// preview serves a non-persisted shuffle with answers visible.
func (s *sessionService) preview(ctx context.Context, questionnaire *models.Questionnaire) (*models.QuizQuestionsResponse, error) {
	questions, err := s.repo.Question().ListByQuestionnaire(ctx, questionnaire.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	effective := effectiveQuestionCount(questionnaire, len(questions))
	selected := shuffleQuestions(questions, effective, s.shuffle)

	views := make([]models.QuestionView, 0, len(selected))
	for _, q := range selected {
		views = append(views, toQuestionView(q, true))
	}

	return &models.QuizQuestionsResponse{
		Questionnaire: questionnaireInfo(questionnaire, len(questions), effective),
		Questions:     views,
	}, nil
}

func (s *sessionService) getOrCreateSession(ctx context.Context, student *models.Student, questionnaire *models.Questionnaire) (*models.QuizQuestionsResponse, error) {
	now := s.now()
	year := s.rules.YearAt(now)

	used, err := usedAttemptSlots(ctx, s.repo, student.ID, questionnaire.ID, year)
	if err != nil {
		return nil, err
	}
	if used >= s.rules.MaxAttempts {
		return nil, ErrAttemptLimitExceeded
	}
	attemptNumber := used + 1

	session, err := s.repo.Session().GetBySlot(ctx, student.ID, questionnaire.ID, attemptNumber, year)
	switch {
	case err == nil:
		if session.Status != models.SessionInProgress {
			// Slot already consumed; the slot count and session table disagree.
			s.logger.Warn("Session slot already closed",
				"session_id", session.ID,
				"status", session.Status,
				"student_id", student.ID,
				"questionnaire_id", questionnaire.ID)
			return nil, ErrSessionAlreadySubmitted
		}
	case repositories.IsNotFoundError(err):
		session, err = s.createSession(ctx, student, questionnaire, attemptNumber, year, now)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := ensureNotExpired(ctx, s.repo, s.metrics, session, now); err != nil {
		s.logger.Info("Quiz session expired on fetch",
			"session_id", session.ID,
			"student_id", student.ID,
			"questionnaire_id", questionnaire.ID)
		return nil, err
	}

	return s.buildSessionResponse(ctx, questionnaire, session, now)
}

func (s *sessionService) createSession(ctx context.Context, student *models.Student, questionnaire *models.Questionnaire, attemptNumber, year int, now time.Time) (*models.QuizSession, error) {
	ids, err := s.repo.Question().ListIDsByQuestionnaire(ctx, questionnaire.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrQuestionnaireEmpty
	}

	selected := selectQuestionIDs(ids, effectiveQuestionCount(questionnaire, len(ids)), s.shuffle)

	session := &models.QuizSession{
		StudentID:       student.ID,
		QuestionnaireID: questionnaire.ID,
		AttemptNumber:   attemptNumber,
		AcademicYear:    year,
		Status:          models.SessionInProgress,
		StartedAt:       now,
		QuestionIDs:     datatypes.NewJSONType(selected),
	}
	if limit := questionnaire.TimeLimit(); limit > 0 {
		expiresAt := now.Add(limit)
		session.ExpiresAt = &expiresAt
	}

	stored, err := s.repo.Session().CreateIfAbsent(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if stored.ID == session.ID {
		s.metrics.SessionCreated()
		s.logger.Info("Quiz session created",
			"session_id", stored.ID,
			"student_id", student.ID,
			"questionnaire_id", questionnaire.ID,
			"attempt_number", attemptNumber,
			"questions", len(selected))
	}
	return stored, nil
}

func (s *sessionService) buildSessionResponse(ctx context.Context, questionnaire *models.Questionnaire, session *models.QuizSession, now time.Time) (*models.QuizQuestionsResponse, error) {
	frozen := session.QuestionIDs.Data()

	questions, err := s.repo.Question().GetByIDsInQuestionnaire(ctx, questionnaire.ID, frozen)
	if err != nil {
		return nil, fmt.Errorf("failed to load session questions: %w", err)
	}
	ordered := orderQuestions(frozen, questions)
	if len(ordered) != len(frozen) {
		s.logger.Warn("Session references missing questions",
			"session_id", session.ID,
			"expected", len(frozen),
			"found", len(ordered))
	}

	views := make([]models.QuestionView, 0, len(ordered))
	for _, q := range ordered {
		views = append(views, toQuestionView(q, false))
	}

	available, err := s.repo.Question().CountByQuestionnaire(ctx, questionnaire.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	info := questionnaireInfo(questionnaire, available, len(ordered))
	return &models.QuizQuestionsResponse{
		Questionnaire: info,
		Session: &models.SessionInfo{
			ID:               session.ID,
			AttemptNumber:    session.AttemptNumber,
			StartedAt:        session.StartedAt,
			ExpiresAt:        session.ExpiresAt,
			RemainingSeconds: session.RemainingSeconds(now),
		},
		Questions: views,
	}, nil
}

// ensureNotExpired is the single place where an in_progress session past its
// deadline becomes expired. It returns ErrTimeExpired for such sessions.
func ensureNotExpired(ctx context.Context, repo repositories.Repository, m *metrics.Metrics, session *models.QuizSession, now time.Time) error {
	if session.Status == models.SessionExpired {
		return ErrTimeExpired
	}
	if session.Status != models.SessionInProgress || !session.IsExpiredAt(now) {
		return nil
	}

	changed, err := repo.Session().MarkExpired(ctx, session.ID)
	if err != nil {
		return errors.Join(ErrTimeExpired, fmt.Errorf("failed to mark session expired: %w", err))
	}
	if changed {
		m.SessionExpired()
	}
	session.Status = models.SessionExpired
	return ErrTimeExpired
}

// usedAttemptSlots counts consumed slots: recorded attempts plus expired sessions.
func usedAttemptSlots(ctx context.Context, repo repositories.Repository, studentID, questionnaireID uint, year int) (int, error) {
	attempts, err := repo.Attempt().CountByStudentQuestionnaire(ctx, studentID, questionnaireID, year)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	expired, err := repo.Session().CountByStatus(ctx, studentID, questionnaireID, year, models.SessionExpired)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired sessions: %w", err)
	}
	return int(attempts + expired), nil
}

func questionnaireInfo(q *models.Questionnaire, available, effective int) models.QuestionnaireInfo {
	return models.QuestionnaireInfo{
		ID:                         q.ID,
		Title:                      q.Title,
		Description:                q.Description,
		Phase:                      q.Phase,
		Grade:                      q.Grade,
		QuestionsToAnswer:          q.QuestionsToAnswer,
		EffectiveQuestionsToAnswer: effective,
		TimeLimitMinutes:           q.TimeLimitMinutes,
		IsPruebaSaber:              q.IsPruebaSaber,
		TotalAvailableQuestions:    available,
	}
}
