package models

import "time"

type Questionnaire struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:255"`
	Description *string `json:"description" gorm:"type:text"`
	TeacherID   string  `json:"teacher_id" gorm:"not null;index;size:255"`
	Phase       int     `json:"phase" gorm:"not null;index:idx_questionnaire_phase_grade"`
	Grade       int     `json:"grade" gorm:"not null;index:idx_questionnaire_phase_grade"`

	// Optional limits. A nil or non-positive value means "not configured".
	QuestionsToAnswer *int `json:"questions_to_answer"`
	TimeLimitMinutes  *int `json:"time_limit_minutes"`

	IsPruebaSaber bool      `json:"is_prueba_saber" gorm:"default:false"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Questionnaire) TableName() string {
	return "questionnaires"
}

// SubsetLimit returns the configured subset size, or 0 when unlimited.
func (q *Questionnaire) SubsetLimit() int {
	if q.QuestionsToAnswer == nil || *q.QuestionsToAnswer <= 0 {
		return 0
	}
	return *q.QuestionsToAnswer
}

// TimeLimit returns the configured time limit, or 0 when untimed.
func (q *Questionnaire) TimeLimit() time.Duration {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return 0
	}
	return time.Duration(*q.TimeLimitMinutes) * time.Minute
}

// RequiresSession reports whether submissions must be bound to a quiz session.
func (q *Questionnaire) RequiresSession() bool {
	return q.SubsetLimit() > 0 || q.TimeLimit() > 0
}

// Question is a four-option multiple choice item. CorrectAnswer is 1-based.
type Question struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	QuestionnaireID uint      `json:"questionnaire_id" gorm:"not null;index"`
	QuestionText    string    `json:"question_text" gorm:"type:text;not null"`
	Option1         string    `json:"option1" gorm:"type:text"`
	Option2         string    `json:"option2" gorm:"type:text"`
	Option3         string    `json:"option3" gorm:"type:text"`
	Option4         string    `json:"option4" gorm:"type:text"`
	CorrectAnswer   int       `json:"correct_answer" gorm:"not null"`
	Category        *string   `json:"category" gorm:"size:100"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}
