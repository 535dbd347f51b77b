package repositories

import "context"

// Repository groups every store the quiz service reads or writes.
type Repository interface {
	// Catalog (read-only, owned by the questionnaire service)
	Questionnaire() QuestionnaireRepository
	Question() QuestionRepository
	Student() StudentRepository

	// Quiz lifecycle
	Session() SessionRepository
	Attempt() AttemptRepository

	// Derived aggregates
	EvaluationResult() EvaluationResultRepository
	PhaseAverage() PhaseAverageRepository
	Grade() GradeRepository
	ImprovementPlan() ImprovementPlanRepository

	// Identity provider (read-only)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
