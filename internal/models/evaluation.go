package models

import "time"

// EvaluationResult holds the best score of a student on one questionnaire in one year.
type EvaluationResult struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	StudentID         uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_evaluation_result_key,priority:1"`
	QuestionnaireID   uint      `json:"questionnaire_id" gorm:"not null;uniqueIndex:idx_evaluation_result_key,priority:2"`
	AcademicYear      int       `json:"academic_year" gorm:"not null;uniqueIndex:idx_evaluation_result_key,priority:3"`
	BestScore         float64   `json:"best_score" gorm:"not null"`
	SelectedAttemptID uint      `json:"selected_attempt_id"`
	Phase             int       `json:"phase" gorm:"not null;index"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Questionnaire *Questionnaire `json:"questionnaire,omitempty" gorm:"foreignKey:QuestionnaireID"`
}

func (EvaluationResult) TableName() string {
	return "evaluation_results"
}

// PhaseAverage is the teacher-facing phase average of a student.
type PhaseAverage struct {
	ID                   uint      `json:"id" gorm:"primaryKey"`
	StudentID            uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_phase_average_key,priority:1"`
	TeacherID            string    `json:"teacher_id" gorm:"not null;size:255;uniqueIndex:idx_phase_average_key,priority:2"`
	Phase                int       `json:"phase" gorm:"not null;uniqueIndex:idx_phase_average_key,priority:3"`
	AverageScore         *float64  `json:"average_score"`
	CompletedEvaluations int       `json:"completed_evaluations"`
	AcademicYear         int       `json:"academic_year" gorm:"not null;index"`
	UpdatedAt            time.Time `json:"updated_at"`

	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (PhaseAverage) TableName() string {
	return "phase_averages"
}

// Grade is the per-year report card row of a student.
type Grade struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	StudentID    uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_grade_key,priority:1"`
	AcademicYear int       `json:"academic_year" gorm:"not null;uniqueIndex:idx_grade_key,priority:2"`
	Phase1       *float64  `json:"phase1"`
	Phase2       *float64  `json:"phase2"`
	Phase3       *float64  `json:"phase3"`
	Phase4       *float64  `json:"phase4"`
	Average      *float64  `json:"average"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Grade) TableName() string {
	return "grades"
}

const PhaseCount = 4

// PhaseValue returns the phase column for phase 1-4, or nil.
func (g *Grade) PhaseValue(phase int) *float64 {
	if g == nil {
		return nil
	}
	switch phase {
	case 1:
		return g.Phase1
	case 2:
		return g.Phase2
	case 3:
		return g.Phase3
	case 4:
		return g.Phase4
	}
	return nil
}

// SetPhase assigns the phase column for phase 1-4. Other phases are ignored.
func (g *Grade) SetPhase(phase int, value *float64) {
	switch phase {
	case 1:
		g.Phase1 = value
	case 2:
		g.Phase2 = value
	case 3:
		g.Phase3 = value
	case 4:
		g.Phase4 = value
	}
}

// AllModels lists the tables owned or read by the quiz service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Student{},
		&Questionnaire{},
		&Question{},
		&QuizSession{},
		&QuizAttempt{},
		&EvaluationResult{},
		&PhaseAverage{},
		&Grade{},
		&ImprovementPlanRequest{},
	}
}

// ImprovementPlanRequest marks a phase for which an improvement plan has
// been requested. At most one row exists per student, phase and year.
type ImprovementPlanRequest struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	StudentID    uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_improvement_plan_key,priority:1"`
	Phase        int       `json:"phase" gorm:"not null;uniqueIndex:idx_improvement_plan_key,priority:2"`
	AcademicYear int       `json:"academic_year" gorm:"not null;uniqueIndex:idx_improvement_plan_key,priority:3"`
	EventID      string    `json:"event_id" gorm:"not null;size:36"`
	PhaseGrade   float64   `json:"phase_grade" gorm:"not null"`
	RequestedAt  time.Time `json:"requested_at" gorm:"not null"`
}

func (ImprovementPlanRequest) TableName() string {
	return "improvement_plan_requests"
}
