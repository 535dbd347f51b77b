package repositories

import (
	"context"
	"time"

	"github.com/seio-edu/quiz-service/internal/models"
)

type QuestionnaireRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Questionnaire, error)
	// ListIDsByPhaseAndGrade returns the questionnaires configured for a phase and school grade.
	ListIDsByPhaseAndGrade(ctx context.Context, phase, grade int) ([]uint, error)
}

type QuestionRepository interface {
	ListByQuestionnaire(ctx context.Context, questionnaireID uint) ([]*models.Question, error)
	ListIDsByQuestionnaire(ctx context.Context, questionnaireID uint) ([]uint, error)
	// GetByIDsInQuestionnaire loads only the given ids that belong to the questionnaire.
	GetByIDsInQuestionnaire(ctx context.Context, questionnaireID uint, ids []uint) ([]*models.Question, error)
	CountByQuestionnaire(ctx context.Context, questionnaireID uint) (int, error)
}

type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Student, error)
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type SessionRepository interface {
	// CreateIfAbsent inserts the session unless its slot is taken and returns
	// whichever session owns the slot afterwards.
	CreateIfAbsent(ctx context.Context, session *models.QuizSession) (*models.QuizSession, error)
	GetByID(ctx context.Context, id uint) (*models.QuizSession, error)
	GetBySlot(ctx context.Context, studentID, questionnaireID uint, attemptNumber, year int) (*models.QuizSession, error)
	GetLatestInProgress(ctx context.Context, studentID, questionnaireID uint, year int) (*models.QuizSession, error)
	CountByStatus(ctx context.Context, studentID, questionnaireID uint, year int, status models.SessionStatus) (int64, error)
	// MarkExpired moves an in_progress session to expired. It reports whether a row changed.
	MarkExpired(ctx context.Context, id uint) (bool, error)
	// MarkSubmitted moves an in_progress session to submitted and stores the answers.
	MarkSubmitted(ctx context.Context, id uint, answers models.AnswerSheet, at time.Time) (bool, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	CountByStudentQuestionnaire(ctx context.Context, studentID, questionnaireID uint, year int) (int64, error)
	ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.QuizAttempt, error)
	ListByStudentQuestionnaire(ctx context.Context, studentID, questionnaireID uint, year int) ([]*models.QuizAttempt, error)
}

type EvaluationResultRepository interface {
	GetByKey(ctx context.Context, studentID, questionnaireID uint, year int) (*models.EvaluationResult, error)
	Save(ctx context.Context, result *models.EvaluationResult) error
	// ListByStudentPhase returns results with their questionnaire preloaded.
	ListByStudentPhase(ctx context.Context, studentID uint, phase, year int) ([]*models.EvaluationResult, error)
	ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.EvaluationResult, error)
	CountForQuestionnaires(ctx context.Context, studentID uint, year int, questionnaireIDs []uint) (int64, error)
}

type PhaseAverageRepository interface {
	Upsert(ctx context.Context, avg *models.PhaseAverage) error
	ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.PhaseAverage, error)
	// ListByTeacherPhase returns rows with the student preloaded. An empty teacherID matches every teacher.
	ListByTeacherPhase(ctx context.Context, teacherID string, phase, year int) ([]*models.PhaseAverage, error)
}

type GradeRepository interface {
	GetByStudentYear(ctx context.Context, studentID uint, year int) (*models.Grade, error)
	Save(ctx context.Context, grade *models.Grade) error
}

// ImprovementPlanRepository remembers which phases already had a plan requested.
type ImprovementPlanRepository interface {
	Exists(ctx context.Context, studentID uint, phase, year int) (bool, error)
	// Record stores the marker. Recording an existing marker is a no-op.
	Record(ctx context.Context, request *models.ImprovementPlanRequest) error
}

// UserRepository reads accounts from the identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
