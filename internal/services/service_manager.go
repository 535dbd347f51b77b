package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seio-edu/quiz-service/internal/cache"
	"github.com/seio-edu/quiz-service/internal/events"
	"github.com/seio-edu/quiz-service/internal/metrics"
	"github.com/seio-edu/quiz-service/internal/repositories"
	"github.com/seio-edu/quiz-service/internal/validator"
)

// ServiceManagerConfig holds the collaborators shared by every service.
type ServiceManagerConfig struct {
	Rules     QuizRules
	Cache     *cache.CacheManager
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	// Service instances
	sessionService     SessionService
	attemptService     AttemptService
	aggregatorService  AggregatorService
	improvementTrigger ImprovementPlanTrigger
	evaluationService  EvaluationService
	reportService      ReportService

	tasks *backgroundTasks

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, config ServiceManagerConfig) ServiceManager {
	if config.Cache == nil {
		config.Cache = cache.NewCacheManager(nil)
	}
	if config.Rules.MaxAttempts == 0 {
		config.Rules = DefaultQuizRules()
	}
	return &serviceManager{
		repo:      repo,
		logger:    logger,
		validator: v,
		config:    config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.config.Publisher == nil {
		return errors.New("event publisher is required")
	}

	sm.logger.Info("Initializing service manager",
		"max_attempts", sm.config.Rules.MaxAttempts,
		"improvement_threshold", sm.config.Rules.ImprovementThreshold)

	// Leaves first: the attempt recorder depends on the aggregator and trigger.
	sm.tasks = &backgroundTasks{}
	sm.aggregatorService = NewAggregatorService(sm.repo, sm.logger)

	trigger := NewImprovementPlanTrigger(sm.repo, sm.config.Publisher, sm.config.Metrics, sm.logger, sm.config.Rules).(*improvementPlanTrigger)
	trigger.goFn = sm.tasks.Go
	sm.improvementTrigger = trigger

	sm.sessionService = NewSessionService(sm.repo, sm.logger, sm.config.Metrics, sm.config.Rules)

	attempts := NewAttemptService(
		sm.repo,
		sm.aggregatorService,
		sm.improvementTrigger,
		sm.config.Publisher,
		sm.config.Cache,
		sm.config.Metrics,
		sm.validator,
		sm.logger,
		sm.config.Rules,
	).(*attemptService)
	attempts.goFn = sm.tasks.Go
	sm.attemptService = attempts

	sm.evaluationService = NewEvaluationService(sm.repo, sm.aggregatorService, sm.config.Cache, sm.logger, sm.config.Rules)
	sm.reportService = NewReportService(sm.repo, sm.logger, sm.config.Rules)

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Session() SessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.sessionService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Aggregator() AggregatorService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.aggregatorService
}

func (sm *serviceManager) ImprovementPlan() ImprovementPlanTrigger {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.improvementTrigger
}

func (sm *serviceManager) Evaluation() EvaluationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.evaluationService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.reportService
}

func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	// Redis is optional; a failing cache degrades to direct reads.
	if err := sm.config.Cache.HealthCheck(ctx); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
		sm.logger.Warn("Cache health check failed", "error", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	// Pending events and improvement plan checks still need the publisher.
	if sm.tasks != nil {
		if err := sm.tasks.Wait(ctx); err != nil {
			sm.logger.Warn("Background tasks still running at shutdown", "error", err)
		}
	}

	if sm.config.Publisher != nil {
		if err := sm.config.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
