package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

// StudentSelf is the path value that refers to the caller's own profile.
const StudentSelf = "me"

// resolveOwnStudent returns the student profile linked to the authenticated user.
func resolveOwnStudent(ctx context.Context, repo repositories.Repository, user *models.User) (*models.Student, error) {
	if user == nil || user.ID == "" {
		return nil, ErrStudentProfileMissing
	}
	student, err := repo.Student().GetByUserID(ctx, user.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentProfileMissing
		}
		return nil, fmt.Errorf("failed to resolve student profile: %w", err)
	}
	return student, nil
}

// resolveStudentRef resolves a path reference to a student the user may read.
// Students may only read themselves; teachers and admins may read anyone.
func resolveStudentRef(ctx context.Context, repo repositories.Repository, user *models.User, ref string) (*models.Student, error) {
	ref = strings.TrimSpace(ref)
	if ref == StudentSelf {
		return resolveOwnStudent(ctx, repo, user)
	}

	id, err := strconv.ParseUint(ref, 10, 32)
	if err != nil || id == 0 {
		return nil, ValidationErrors{{Field: "student_id", Message: "must be a positive integer or \"me\"", Value: ref, Rule: "student_ref"}}
	}

	if !user.CanReadAnyStudent() {
		own, err := resolveOwnStudent(ctx, repo, user)
		if err != nil {
			return nil, err
		}
		if own.ID != uint(id) {
			return nil, NewPermissionError(user.ID, uint(id), "student", "read", "students may only read their own results")
		}
		return own, nil
	}

	student, err := repo.Student().GetByID(ctx, uint(id))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return student, nil
}
