package services

import (
	"errors"
	"fmt"

	"github.com/seio-edu/quiz-service/internal/validator"
)

// ===== QUIZ ERRORS =====

var (
	ErrStudentProfileMissing   = errors.New("authenticated user has no student profile")
	ErrStudentNotFound         = errors.New("student not found")
	ErrQuestionnaireNotFound   = errors.New("questionnaire not found")
	ErrQuestionnaireEmpty      = errors.New("questionnaire has no questions")
	ErrAttemptLimitExceeded    = errors.New("maximum attempts for this questionnaire reached this academic year")
	ErrNoActiveSession         = errors.New("no active quiz session")
	ErrTimeExpired             = errors.New("quiz session time has expired")
	ErrInvalidQuestionSet      = errors.New("answers reference questions outside the quiz session")
	ErrNoAnswers               = errors.New("no answers submitted")
	ErrSessionAlreadySubmitted = errors.New("quiz session already submitted")
	ErrInvalidPhase            = errors.New("phase must be between 1 and 4")
)

// IncompleteSubmissionError reports a submission that does not answer exactly
// the required number of questions.
type IncompleteSubmissionError struct {
	Required int
	Answered int
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("incomplete submission: %d questions required, %d answered", e.Required, e.Answered)
}

// ===== SHARED ERROR TYPES =====

type ValidationErrors = validator.ValidationErrors

// PermissionError reports an authenticated user acting on a resource they may not access.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

// ErrorCode returns the machine-readable code clients use to react to err.
func ErrorCode(err error) string {
	var incomplete *IncompleteSubmissionError
	var validationErrors ValidationErrors
	var permissionError *PermissionError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAttemptLimitExceeded):
		return "ATTEMPT_LIMIT_EXCEEDED"
	case errors.Is(err, ErrNoActiveSession):
		return "NO_ACTIVE_SESSION"
	case errors.Is(err, ErrTimeExpired):
		return "TIME_EXPIRED"
	case errors.Is(err, ErrInvalidQuestionSet):
		return "INVALID_QUESTION_SET"
	case errors.As(err, &incomplete):
		return "INCOMPLETE_SUBMISSION"
	case errors.Is(err, ErrNoAnswers):
		return "NO_ANSWERS"
	case errors.Is(err, ErrStudentProfileMissing):
		return "STUDENT_PROFILE_MISSING"
	case errors.Is(err, ErrSessionAlreadySubmitted):
		return "SESSION_ALREADY_SUBMITTED"
	case errors.Is(err, ErrQuestionnaireNotFound):
		return "QUESTIONNAIRE_NOT_FOUND"
	case errors.Is(err, ErrQuestionnaireEmpty):
		return "QUESTIONNAIRE_EMPTY"
	case errors.Is(err, ErrStudentNotFound):
		return "STUDENT_NOT_FOUND"
	case errors.Is(err, ErrInvalidPhase), errors.As(err, &validationErrors):
		return "VALIDATION_FAILED"
	case errors.As(err, &permissionError):
		return "FORBIDDEN"
	default:
		return "INTERNAL_ERROR"
	}
}
