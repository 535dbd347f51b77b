package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seio-edu/quiz-service/internal/services"
	"github.com/seio-edu/quiz-service/internal/utils"
)

type QuizHandler struct {
	BaseHandler
	sessionService    services.SessionService
	attemptService    services.AttemptService
	evaluationService services.EvaluationService
}

func NewQuizHandler(
	sessionService services.SessionService,
	attemptService services.AttemptService,
	evaluationService services.EvaluationService,
	logger utils.Logger,
) *QuizHandler {
	return &QuizHandler{
		BaseHandler:       NewBaseHandler(logger),
		sessionService:    sessionService,
		attemptService:    attemptService,
		evaluationService: evaluationService,
	}
}

// GetQuestions returns the questions of a questionnaire
// @Summary Get quiz questions
// @Description Students receive their session-bound subset; other roles get a preview
// @Tags quiz
// @Produce json
// @Param id path uint true "Questionnaire ID"
// @Success 200 {object} models.QuizQuestionsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /quiz/questions/{id} [get]
func (h *QuizHandler) GetQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting quiz questions", "questionnaire_id", id)

	resp, err := h.sessionService.GetQuestions(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitQuiz scores a submission
// @Summary Submit quiz answers
// @Tags quiz
// @Accept json
// @Produce json
// @Param submission body services.SubmitQuizRequest true "Answers"
// @Success 200 {object} models.SubmitQuizResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quiz/submit [post]
func (h *QuizHandler) SubmitQuiz(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req services.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Code:    "VALIDATION_FAILED",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting quiz", "questionnaire_id", req.QuestionnaireID, "answers", len(req.Answers))

	resp, err := h.attemptService.Submit(c.Request.Context(), user, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListAllAttempts returns the current-year attempts of a student
// @Summary List attempts
// @Tags quiz
// @Produce json
// @Param student_id path string true "Student ID or me"
// @Success 200 {array} models.AttemptHistoryItem
// @Router /quiz/attempts/all/{student_id} [get]
func (h *QuizHandler) ListAllAttempts(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	ref := c.Param("student_id")

	h.LogRequest(c, "Listing attempts", "student_ref", ref)

	attempts, err := h.evaluationService.ListAttempts(c.Request.Context(), user, ref)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// ListQuestionnaireAttempts returns the current-year attempts of a student on one questionnaire
// @Summary List questionnaire attempts
// @Tags quiz
// @Produce json
// @Param student_id path string true "Student ID or me"
// @Param questionnaire_id path uint true "Questionnaire ID"
// @Success 200 {array} models.AttemptHistoryItem
// @Router /quiz/attempts/{student_id}/{questionnaire_id} [get]
func (h *QuizHandler) ListQuestionnaireAttempts(c *gin.Context) {
	questionnaireID := h.parseIDParam(c, "questionnaire_id")
	if questionnaireID == 0 {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	ref := c.Param("student_id")

	h.LogRequest(c, "Listing questionnaire attempts", "student_ref", ref, "questionnaire_id", questionnaireID)

	attempts, err := h.evaluationService.ListAttemptsForQuestionnaire(c.Request.Context(), user, ref, questionnaireID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// EvaluationsByPhase returns the phase dashboard of a student
// @Summary Evaluations by phase
// @Tags quiz
// @Produce json
// @Param student_id path string true "Student ID or me"
// @Success 200 {object} models.PhaseEvaluationsResponse
// @Router /quiz/evaluations-by-phase/{student_id} [get]
func (h *QuizHandler) EvaluationsByPhase(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	ref := c.Param("student_id")

	h.LogRequest(c, "Getting evaluations by phase", "student_ref", ref)

	resp, err := h.evaluationService.EvaluationsByPhase(c.Request.Context(), user, ref)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Recompute rebuilds the phase aggregates of a student
// @Summary Recompute phase aggregates
// @Tags quiz
// @Produce json
// @Param student_id path string true "Student ID"
// @Param phase path int true "Phase 1-4"
// @Success 200 {object} models.RecomputeResponse
// @Router /quiz/recompute/{student_id}/{phase} [post]
func (h *QuizHandler) Recompute(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	phase, err := strconv.Atoi(c.Param("phase"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid phase",
			Code:    "VALIDATION_FAILED",
		})
		return
	}
	ref := c.Param("student_id")

	h.LogRequest(c, "Recomputing phase aggregates", "student_ref", ref, "phase", phase)

	resp, err := h.evaluationService.Recompute(c.Request.Context(), user, ref, phase)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// quizRejections are answered with 400 and the sentinel message only, so
// wrapped storage errors never reach the client.
var quizRejections = []error{
	services.ErrAttemptLimitExceeded,
	services.ErrNoActiveSession,
	services.ErrTimeExpired,
	services.ErrInvalidQuestionSet,
	services.ErrNoAnswers,
	services.ErrStudentProfileMissing,
	services.ErrInvalidPhase,
}

func (h *QuizHandler) handleServiceError(c *gin.Context, err error) {
	code := services.ErrorCode(err)

	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Code:    code,
			Details: validationErrors,
		})
		return
	}

	var incomplete *services.IncompleteSubmissionError
	if errors.As(err, &incomplete) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Incomplete submission",
			Code:    code,
			Details: map[string]interface{}{
				"required": incomplete.Required,
				"answered": incomplete.Answered,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Code:    code,
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	for _, rejection := range quizRejections {
		if errors.Is(err, rejection) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: rejection.Error(),
				Code:    code,
			})
			return
		}
	}

	switch {
	case errors.Is(err, services.ErrSessionAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Quiz session already submitted",
			Code:    code,
		})
	case errors.Is(err, services.ErrQuestionnaireNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Questionnaire not found",
			Code:    code,
		})
	case errors.Is(err, services.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Student not found",
			Code:    code,
		})
	case errors.Is(err, services.ErrQuestionnaireEmpty):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Questionnaire has no questions",
			Code:    code,
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Code:    code,
		})
	}
}
