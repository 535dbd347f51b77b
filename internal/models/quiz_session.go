package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
	SessionExpired    SessionStatus = "expired"
)

// QuestionIDList is the frozen, ordered question selection of a session.
type QuestionIDList []uint

func (l QuestionIDList) Contains(id uint) bool {
	return slices.Contains(l, id)
}

// AnswerSheet maps question id to the selected option (1-4).
type AnswerSheet map[uint]int

// QuizSession binds one attempt slot to a frozen question selection and an
// optional deadline. Each (student, questionnaire, attempt, year) slot owns at
// most one session.
type QuizSession struct {
	ID              uint          `json:"id" gorm:"primaryKey"`
	StudentID       uint          `json:"student_id" gorm:"not null;uniqueIndex:idx_quiz_session_slot,priority:1"`
	QuestionnaireID uint          `json:"questionnaire_id" gorm:"not null;uniqueIndex:idx_quiz_session_slot,priority:2"`
	AttemptNumber   int           `json:"attempt_number" gorm:"not null;uniqueIndex:idx_quiz_session_slot,priority:3"`
	AcademicYear    int           `json:"academic_year" gorm:"not null;uniqueIndex:idx_quiz_session_slot,priority:4"`
	Status          SessionStatus `json:"status" gorm:"not null;size:20;default:in_progress;index"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	ExpiresAt   *time.Time `json:"expires_at"`
	SubmittedAt *time.Time `json:"submitted_at"`

	QuestionIDs datatypes.JSONType[QuestionIDList] `json:"question_ids" gorm:"column:question_ids_json;not null"`
	Answers     datatypes.JSONType[AnswerSheet]    `json:"answers,omitempty" gorm:"column:answers_json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

// IsExpiredAt reports whether the session deadline has passed at now.
func (s *QuizSession) IsExpiredAt(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// RemainingSeconds returns the whole seconds left, rounded up, or nil when untimed.
func (s *QuizSession) RemainingSeconds(now time.Time) *int {
	if s.ExpiresAt == nil {
		return nil
	}
	left := s.ExpiresAt.Sub(now)
	secs := 0
	if left > 0 {
		secs = int((left + time.Second - 1) / time.Second)
	}
	return &secs
}
