package models

import "time"

// ===== QUIZ DELIVERY =====

type QuestionnaireInfo struct {
	ID                         uint    `json:"id"`
	Title                      string  `json:"title"`
	Description                *string `json:"description,omitempty"`
	Phase                      int     `json:"phase"`
	Grade                      int     `json:"grade"`
	QuestionsToAnswer          *int    `json:"questions_to_answer"`
	EffectiveQuestionsToAnswer int     `json:"effective_questions_to_answer"`
	TimeLimitMinutes           *int    `json:"time_limit_minutes"`
	IsPruebaSaber              bool    `json:"is_prueba_saber"`
	TotalAvailableQuestions    int     `json:"total_available_questions"`
}

// QuestionView is a question as delivered to a client. CorrectAnswer is only
// populated for non-student previews.
type QuestionView struct {
	ID            uint    `json:"id"`
	QuestionText  string  `json:"question_text"`
	Option1       string  `json:"option1"`
	Option2       string  `json:"option2"`
	Option3       string  `json:"option3"`
	Option4       string  `json:"option4"`
	Category      *string `json:"category,omitempty"`
	CorrectAnswer *int    `json:"correct_answer,omitempty"`
}

type SessionInfo struct {
	ID               uint       `json:"id"`
	AttemptNumber    int        `json:"attempt_number"`
	StartedAt        time.Time  `json:"started_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RemainingSeconds *int       `json:"remaining_seconds"`
}

type QuizQuestionsResponse struct {
	Questionnaire QuestionnaireInfo `json:"questionnaire"`
	Session       *SessionInfo      `json:"session,omitempty"`
	Questions     []QuestionView    `json:"questions"`
}

type SubmitQuizResponse struct {
	Message        string   `json:"message"`
	Score          float64  `json:"score"`
	Percentage     float64  `json:"percentage"`
	CorrectCount   int      `json:"correctCount"`
	TotalQuestions int      `json:"totalQuestions"`
	PhaseAverage   *float64 `json:"phaseAverage"`
	AttemptNumber  int      `json:"attemptNumber"`
	AttemptID      uint     `json:"attemptId"`
}

// ===== HISTORY & DASHBOARD =====

type AttemptHistoryItem struct {
	ID                 uint      `json:"id"`
	QuestionnaireID    uint      `json:"questionnaire_id"`
	QuestionnaireTitle string    `json:"questionnaire_title"`
	AttemptNumber      int       `json:"attempt_number"`
	Score              float64   `json:"score"`
	Percentage         float64   `json:"percentage"`
	CorrectCount       int       `json:"correct_count"`
	TotalQuestions     int       `json:"total_questions"`
	Phase              int       `json:"phase"`
	AcademicYear       int       `json:"academic_year"`
	AttemptedAt        time.Time `json:"attempted_at"`
}

type EvaluationSummary struct {
	QuestionnaireID    uint      `json:"questionnaire_id"`
	QuestionnaireTitle string    `json:"questionnaire_title"`
	BestScore          float64   `json:"best_score"`
	SelectedAttemptID  uint      `json:"selected_attempt_id"`
	AttemptsUsed       int       `json:"attempts_used"`
	IsPruebaSaber      bool      `json:"is_prueba_saber"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type TeacherPhaseAverage struct {
	TeacherID            string   `json:"teacher_id"`
	AverageScore         *float64 `json:"average_score"`
	CompletedEvaluations int      `json:"completed_evaluations"`
}

type PhaseSummary struct {
	Phase                int                   `json:"phase"`
	Evaluations          []EvaluationSummary   `json:"evaluations"`
	PhaseGrade           *float64              `json:"phase_grade"`
	CompletedEvaluations int                   `json:"completed_evaluations"`
	TeacherAverages      []TeacherPhaseAverage `json:"teacher_averages"`
}

type PhaseEvaluationsResponse struct {
	StudentID      uint           `json:"student_id"`
	AcademicYear   int            `json:"academic_year"`
	Phases         []PhaseSummary `json:"phases"`
	OverallAverage *float64       `json:"overall_average"`
}

// ===== MAINTENANCE =====

type RecomputeResponse struct {
	StudentID            uint     `json:"student_id"`
	Phase                int      `json:"phase"`
	AcademicYear         int      `json:"academic_year"`
	PhaseAverage         *float64 `json:"phase_average"`
	CompletedEvaluations int      `json:"completed_evaluations"`
	OverallAverage       *float64 `json:"overall_average"`
}
