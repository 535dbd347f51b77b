package models

import "time"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User is an identity-provider account. It is never persisted by this service.
type User struct {
	ID        string   `json:"id"`
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	AvatarURL *string  `json:"avatar_url,omitempty"`

	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *User) IsStudent() bool {
	return u != nil && u.Role == RoleStudent
}

// CanReadAnyStudent reports whether the user may read other students' results.
func (u *User) CanReadAnyStudent() bool {
	return u != nil && (u.Role == RoleTeacher || u.Role == RoleAdmin)
}
