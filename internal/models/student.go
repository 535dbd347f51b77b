package models

import "time"

// Student is the school profile linked to an identity-provider account.
// Rows are maintained by the user-management service.
type Student struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex;not null;size:255"`
	Name      string    `json:"name" gorm:"size:150"`
	Grade     int       `json:"grade" gorm:"not null;index"`
	Course    string    `json:"course" gorm:"size:50"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}
