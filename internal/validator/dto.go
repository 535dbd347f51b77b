package validator

// SubmitQuizRequest is the body of POST /api/quiz/submit. StudentID is
// accepted for client compatibility and never trusted.
type SubmitQuizRequest struct {
	StudentID       *uint           `json:"student_id"`
	QuestionnaireID uint            `json:"questionnaire_id" validate:"required,min=1"`
	Answers         map[uint]string `json:"answers" validate:"omitempty,dive,answer_option"`
	SessionID       *uint           `json:"session_id" validate:"omitempty,min=1"`
}

// PhaseReportQuery is the query string of the phase-average export.
type PhaseReportQuery struct {
	Phase int `form:"phase" validate:"required,min=1,max=4"`
	Year  int `form:"year" validate:"omitempty,min=2000,max=2100"`
}
