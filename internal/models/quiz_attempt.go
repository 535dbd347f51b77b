package models

import "time"

// QuizAttempt is an immutable scored submission.
type QuizAttempt struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	StudentID       uint    `json:"student_id" gorm:"not null;uniqueIndex:idx_quiz_attempt_slot,priority:1;index:idx_quiz_attempt_student_year,priority:1"`
	QuestionnaireID uint    `json:"questionnaire_id" gorm:"not null;uniqueIndex:idx_quiz_attempt_slot,priority:2"`
	AttemptNumber   int     `json:"attempt_number" gorm:"not null;uniqueIndex:idx_quiz_attempt_slot,priority:3"`
	AcademicYear    int     `json:"academic_year" gorm:"not null;uniqueIndex:idx_quiz_attempt_slot,priority:4;index:idx_quiz_attempt_student_year,priority:2"`
	Score           float64 `json:"score" gorm:"not null"`
	Percentage      float64 `json:"percentage"`
	CorrectCount    int     `json:"correct_count"`
	TotalQuestions  int     `json:"total_questions"`
	Phase           int     `json:"phase" gorm:"not null"`
	SessionID       *uint   `json:"session_id"`

	AttemptedAt time.Time `json:"attempted_at" gorm:"not null"`

	Questionnaire *Questionnaire `json:"questionnaire,omitempty" gorm:"foreignKey:QuestionnaireID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
