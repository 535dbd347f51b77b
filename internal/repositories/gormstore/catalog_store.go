package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/seio-edu/quiz-service/internal/cache"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

// ===== QUESTIONNAIRES =====

type QuestionnaireStore struct {
	db *gorm.DB
}

func NewQuestionnaireStore(db *gorm.DB) repositories.QuestionnaireRepository {
	return &QuestionnaireStore{db: db}
}

// GetByID reads the database directly; submissions depend on current settings.
func (s *QuestionnaireStore) GetByID(ctx context.Context, id uint) (*models.Questionnaire, error) {
	var questionnaire models.Questionnaire
	if err := s.db.WithContext(ctx).First(&questionnaire, id).Error; err != nil {
		return nil, err
	}
	return &questionnaire, nil
}

func (s *QuestionnaireStore) ListIDsByPhaseAndGrade(ctx context.Context, phase, grade int) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.Questionnaire{}).
		Where("phase = ? AND grade = ?", phase, grade).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// ===== QUESTIONS =====

type QuestionStore struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionStore(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionRepository {
	return &QuestionStore{db: db, cacheManager: cacheManager}
}

// ListByQuestionnaire serves the teacher preview and may lag edits by the
// question cache TTL.
func (s *QuestionStore) ListByQuestionnaire(ctx context.Context, questionnaireID uint) ([]*models.Question, error) {
	var questions []*models.Question
	err := s.cacheManager.Question.CacheOrExecute(ctx, fmt.Sprintf("questionnaire:%d", questionnaireID), &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []*models.Question
		if err := s.db.WithContext(ctx).
			Where("questionnaire_id = ?", questionnaireID).
			Order("id").
			Find(&dbQuestions).Error; err != nil {
			return nil, err
		}
		return dbQuestions, nil
	})
	return questions, err
}

func (s *QuestionStore) ListIDsByQuestionnaire(ctx context.Context, questionnaireID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("questionnaire_id = ?", questionnaireID).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *QuestionStore) GetByIDsInQuestionnaire(ctx context.Context, questionnaireID uint, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}
	var questions []*models.Question
	err := s.db.WithContext(ctx).
		Where("questionnaire_id = ? AND id IN ?", questionnaireID, ids).
		Find(&questions).Error
	return questions, err
}

func (s *QuestionStore) CountByQuestionnaire(ctx context.Context, questionnaireID uint) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("questionnaire_id = ?", questionnaireID).
		Count(&count).Error
	return int(count), err
}

// ===== STUDENTS =====

type StudentStore struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewStudentStore(db *gorm.DB, cacheManager *cache.CacheManager) repositories.StudentRepository {
	return &StudentStore{db: db, cacheManager: cacheManager}
}

func (s *StudentStore) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentStore) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var student models.Student
	err := s.cacheManager.Student.CacheOrExecute(ctx, "user:"+userID, &student, cache.StudentCacheConfig.TTL, func() (interface{}, error) {
		var dbStudent models.Student
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&dbStudent).Error; err != nil {
			return nil, err
		}
		return &dbStudent, nil
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}
