package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/seio-edu/quiz-service/internal/cache"
	"github.com/seio-edu/quiz-service/internal/repositories"
	"github.com/seio-edu/quiz-service/internal/repositories/casdoor"
)

// SQLRepository implements repositories.Repository on top of GORM. It works
// with both the postgres and mysql dialects.
type SQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	questionnaire    repositories.QuestionnaireRepository
	question         repositories.QuestionRepository
	student          repositories.StudentRepository
	session          repositories.SessionRepository
	attempt          repositories.AttemptRepository
	evaluationResult repositories.EvaluationResultRepository
	phaseAverage     repositories.PhaseAverageRepository
	grade            repositories.GradeRepository
	improvementPlan  repositories.ImprovementPlanRepository
	user             repositories.UserRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig
	// CacheManager is shared with the services; one is built from RedisClient when nil.
	CacheManager *cache.CacheManager
}

// NewSQLRepository creates a repository with all sub-repositories wired.
func NewSQLRepository(config RepositoryConfig) repositories.Repository {
	cacheManager := config.CacheManager
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(config.RedisClient)
	}
	repo := newSQLRepository(config.DB, config.RedisClient, cacheManager)
	repo.user = casdoor.NewUserCasdoor(config.CasdoorConfig, config.RedisClient)
	return repo
}

func newSQLRepository(db *gorm.DB, redisClient *redis.Client, cacheManager *cache.CacheManager) *SQLRepository {
	return &SQLRepository{
		db:               db,
		redisClient:      redisClient,
		cacheManager:     cacheManager,
		questionnaire:    NewQuestionnaireStore(db),
		question:         NewQuestionStore(db, cacheManager),
		student:          NewStudentStore(db, cacheManager),
		session:          NewSessionStore(db),
		attempt:          NewAttemptStore(db),
		evaluationResult: NewEvaluationResultStore(db),
		phaseAverage:     NewPhaseAverageStore(db),
		grade:            NewGradeStore(db),
		improvementPlan:  NewImprovementPlanStore(db),
	}
}

func (r *SQLRepository) Questionnaire() repositories.QuestionnaireRepository { return r.questionnaire }
func (r *SQLRepository) Question() repositories.QuestionRepository           { return r.question }
func (r *SQLRepository) Student() repositories.StudentRepository             { return r.student }
func (r *SQLRepository) Session() repositories.SessionRepository             { return r.session }
func (r *SQLRepository) Attempt() repositories.AttemptRepository             { return r.attempt }
func (r *SQLRepository) EvaluationResult() repositories.EvaluationResultRepository {
	return r.evaluationResult
}
func (r *SQLRepository) PhaseAverage() repositories.PhaseAverageRepository { return r.phaseAverage }
func (r *SQLRepository) Grade() repositories.GradeRepository               { return r.grade }
func (r *SQLRepository) User() repositories.UserRepository                 { return r.user }
func (r *SQLRepository) ImprovementPlan() repositories.ImprovementPlanRepository {
	return r.improvementPlan
}

// WithTransaction executes a function within a database transaction
func (r *SQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := newSQLRepository(tx, r.redisClient, r.cacheManager)

		// User repository doesn't need transaction (it's external)
		txRepo.user = r.user

		return fn(txRepo)
	})
}

// Ping checks the health of database and cache connections
func (r *SQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes all connections
func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize initializes all repositories and connections
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("Redis connection failed: %w", err)
		}
	}

	rm.repo = NewSQLRepository(rm.config)

	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
