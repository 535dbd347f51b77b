package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/services"
	"github.com/seio-edu/quiz-service/internal/utils"
	"github.com/seio-edu/quiz-service/internal/validator"
)

type HandlerManager struct {
	quizHandler    *QuizHandler
	reportHandler  *ReportHandler
	authMiddleware *CasdoorAuthMiddleware
	serviceManager services.ServiceManager
	metricsHandler http.Handler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	v *validator.Validator,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	metricsHandler http.Handler,
) *HandlerManager {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	return &HandlerManager{
		quizHandler: NewQuizHandler(
			serviceManager.Session(),
			serviceManager.Attempt(),
			serviceManager.Evaluation(),
			logger,
		),
		reportHandler:  NewReportHandler(serviceManager.Report(), v, logger),
		authMiddleware: authMiddleware,
		serviceManager: serviceManager,
		metricsHandler: metricsHandler,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	quiz := router.Group("/api/quiz")
	quiz.Use(hm.authMiddleware.AuthMiddleware())
	{
		quiz.GET("/questions/:id", hm.quizHandler.GetQuestions)
		quiz.POST("/submit", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.quizHandler.SubmitQuiz)

		// Read-only history; students are limited to their own records by the service.
		quiz.GET("/attempts/all/:student_id", hm.quizHandler.ListAllAttempts)
		quiz.GET("/attempts/:student_id/:questionnaire_id", hm.quizHandler.ListQuestionnaireAttempts)
		quiz.GET("/evaluations-by-phase/:student_id", hm.quizHandler.EvaluationsByPhase)

		// Maintenance and reporting - Teachers and Admins only
		staff := quiz.Group("")
		staff.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			staff.POST("/recompute/:student_id/:phase", hm.quizHandler.Recompute)
			staff.GET("/reports/phase-averages", hm.reportHandler.ExportPhaseAverages)
		}
	}

	router.GET("/metrics", gin.WrapH(hm.metricsHandler))

	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "quiz-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "quiz-service",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}
