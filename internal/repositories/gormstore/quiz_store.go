package gormstore

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

// ===== SESSIONS =====

type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) repositories.SessionRepository {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateIfAbsent(ctx context.Context, session *models.QuizSession) (*models.QuizSession, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(session)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return session, nil
	}
	// Lost the race for the slot; serve the winner.
	return s.GetBySlot(ctx, session.StudentID, session.QuestionnaireID, session.AttemptNumber, session.AcademicYear)
}

func (s *SessionStore) GetByID(ctx context.Context, id uint) (*models.QuizSession, error) {
	var session models.QuizSession
	if err := s.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) GetBySlot(ctx context.Context, studentID, questionnaireID uint, attemptNumber, year int) (*models.QuizSession, error) {
	var session models.QuizSession
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND questionnaire_id = ? AND attempt_number = ? AND academic_year = ?",
			studentID, questionnaireID, attemptNumber, year).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) GetLatestInProgress(ctx context.Context, studentID, questionnaireID uint, year int) (*models.QuizSession, error) {
	var session models.QuizSession
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND questionnaire_id = ? AND academic_year = ? AND status = ?",
			studentID, questionnaireID, year, models.SessionInProgress).
		Order("started_at DESC, id DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) CountByStatus(ctx context.Context, studentID, questionnaireID uint, year int, status models.SessionStatus) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("student_id = ? AND questionnaire_id = ? AND academic_year = ? AND status = ?",
			studentID, questionnaireID, year, status).
		Count(&count).Error
	return count, err
}

func (s *SessionStore) MarkExpired(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("id = ? AND status = ?", id, models.SessionInProgress).
		Update("status", models.SessionExpired)
	return res.RowsAffected == 1, res.Error
}

func (s *SessionStore) MarkSubmitted(ctx context.Context, id uint, answers models.AnswerSheet, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.QuizSession{}).
		Where("id = ? AND status = ?", id, models.SessionInProgress).
		Updates(map[string]interface{}{
			"status":       models.SessionSubmitted,
			"submitted_at": at,
			"answers_json": datatypes.NewJSONType(answers),
		})
	return res.RowsAffected == 1, res.Error
}

// ===== ATTEMPTS =====

type AttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
}

func (s *AttemptStore) CountByStudentQuestionnaire(ctx context.Context, studentID, questionnaireID uint, year int) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("student_id = ? AND questionnaire_id = ? AND academic_year = ?", studentID, questionnaireID, year).
		Count(&count).Error
	return count, err
}

func (s *AttemptStore) ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	err := s.db.WithContext(ctx).
		Preload("Questionnaire").
		Where("student_id = ? AND academic_year = ?", studentID, year).
		Order("attempted_at DESC, id DESC").
		Find(&attempts).Error
	return attempts, err
}

func (s *AttemptStore) ListByStudentQuestionnaire(ctx context.Context, studentID, questionnaireID uint, year int) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	err := s.db.WithContext(ctx).
		Preload("Questionnaire").
		Where("student_id = ? AND questionnaire_id = ? AND academic_year = ?", studentID, questionnaireID, year).
		Order("attempted_at DESC, id DESC").
		Find(&attempts).Error
	return attempts, err
}

// ===== EVALUATION RESULTS =====

type EvaluationResultStore struct {
	db *gorm.DB
}

func NewEvaluationResultStore(db *gorm.DB) repositories.EvaluationResultRepository {
	return &EvaluationResultStore{db: db}
}

func (s *EvaluationResultStore) GetByKey(ctx context.Context, studentID, questionnaireID uint, year int) (*models.EvaluationResult, error) {
	var result models.EvaluationResult
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND questionnaire_id = ? AND academic_year = ?", studentID, questionnaireID, year).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *EvaluationResultStore) Save(ctx context.Context, result *models.EvaluationResult) error {
	db := s.db.WithContext(ctx).Omit(clause.Associations)
	if result.ID == 0 {
		return db.Create(result).Error
	}
	return db.Save(result).Error
}

func (s *EvaluationResultStore) ListByStudentPhase(ctx context.Context, studentID uint, phase, year int) ([]*models.EvaluationResult, error) {
	var results []*models.EvaluationResult
	err := s.db.WithContext(ctx).
		Preload("Questionnaire").
		Where("student_id = ? AND phase = ? AND academic_year = ?", studentID, phase, year).
		Order("questionnaire_id").
		Find(&results).Error
	return results, err
}

func (s *EvaluationResultStore) ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.EvaluationResult, error) {
	var results []*models.EvaluationResult
	err := s.db.WithContext(ctx).
		Preload("Questionnaire").
		Where("student_id = ? AND academic_year = ?", studentID, year).
		Order("phase, questionnaire_id").
		Find(&results).Error
	return results, err
}

func (s *EvaluationResultStore) CountForQuestionnaires(ctx context.Context, studentID uint, year int, questionnaireIDs []uint) (int64, error) {
	if len(questionnaireIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.EvaluationResult{}).
		Where("student_id = ? AND academic_year = ? AND questionnaire_id IN ?", studentID, year, questionnaireIDs).
		Count(&count).Error
	return count, err
}

// ===== PHASE AVERAGES =====

type PhaseAverageStore struct {
	db *gorm.DB
}

func NewPhaseAverageStore(db *gorm.DB) repositories.PhaseAverageRepository {
	return &PhaseAverageStore{db: db}
}

func (s *PhaseAverageStore) Upsert(ctx context.Context, avg *models.PhaseAverage) error {
	return s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "teacher_id"}, {Name: "phase"}},
			DoUpdates: clause.AssignmentColumns([]string{"average_score", "completed_evaluations", "academic_year", "updated_at"}),
		}).
		Create(avg).Error
}

func (s *PhaseAverageStore) ListByStudent(ctx context.Context, studentID uint, year int) ([]*models.PhaseAverage, error) {
	var rows []*models.PhaseAverage
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND academic_year = ?", studentID, year).
		Order("phase, teacher_id").
		Find(&rows).Error
	return rows, err
}

func (s *PhaseAverageStore) ListByTeacherPhase(ctx context.Context, teacherID string, phase, year int) ([]*models.PhaseAverage, error) {
	var rows []*models.PhaseAverage
	query := s.db.WithContext(ctx).
		Preload("Student").
		Where("phase = ? AND academic_year = ?", phase, year)
	if teacherID != "" {
		query = query.Where("teacher_id = ?", teacherID)
	}
	err := query.Order("student_id").Find(&rows).Error
	return rows, err
}

// ===== GRADES =====

type GradeStore struct {
	db *gorm.DB
}

func NewGradeStore(db *gorm.DB) repositories.GradeRepository {
	return &GradeStore{db: db}
}

func (s *GradeStore) GetByStudentYear(ctx context.Context, studentID uint, year int) (*models.Grade, error) {
	var grade models.Grade
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND academic_year = ?", studentID, year).
		First(&grade).Error
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

func (s *GradeStore) Save(ctx context.Context, grade *models.Grade) error {
	if grade.ID != 0 {
		return s.db.WithContext(ctx).Save(grade).Error
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "academic_year"}},
			DoUpdates: clause.AssignmentColumns([]string{"phase1", "phase2", "phase3", "phase4", "average", "updated_at"}),
		}).
		Create(grade).Error
}

// ===== IMPROVEMENT PLANS =====

type ImprovementPlanStore struct {
	db *gorm.DB
}

func NewImprovementPlanStore(db *gorm.DB) repositories.ImprovementPlanRepository {
	return &ImprovementPlanStore{db: db}
}

func (s *ImprovementPlanStore) Exists(ctx context.Context, studentID uint, phase, year int) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ImprovementPlanRequest{}).
		Where("student_id = ? AND phase = ? AND academic_year = ?", studentID, phase, year).
		Count(&count).Error
	return count > 0, err
}

func (s *ImprovementPlanStore) Record(ctx context.Context, request *models.ImprovementPlanRequest) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(request).Error
}
