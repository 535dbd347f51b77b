package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptSubmitted         EventType = "quiz.attempt_submitted"
	EventImprovementPlanRequested EventType = "improvement_plan.requested"
)

const (
	eventSource  = "quiz-service"
	eventVersion = "1.0"
)

// Event is the envelope published on the quiz events topic.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an event with a random id.
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// AttemptSubmittedData is the payload of EventAttemptSubmitted.
type AttemptSubmittedData struct {
	AttemptID       uint     `json:"attempt_id"`
	StudentID       uint     `json:"student_id"`
	QuestionnaireID uint     `json:"questionnaire_id"`
	AttemptNumber   int      `json:"attempt_number"`
	Score           float64  `json:"score"`
	Phase           int      `json:"phase"`
	AcademicYear    int      `json:"academic_year"`
	PhaseAverage    *float64 `json:"phase_average"`
}

// ImprovementPlanRequestedData asks the plan generator for a remediation plan.
type ImprovementPlanRequestedData struct {
	StudentID    uint    `json:"student_id"`
	UserID       string  `json:"user_id"`
	StudentName  string  `json:"student_name"`
	Email        string  `json:"email,omitempty"`
	Grade        int     `json:"grade"`
	Course       string  `json:"course"`
	Phase        int     `json:"phase"`
	PhaseGrade   float64 `json:"phase_grade"`
	Threshold    float64 `json:"threshold"`
	AcademicYear int     `json:"academic_year"`
}
