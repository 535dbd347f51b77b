package gormstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seio-edu/quiz-service/internal/cache"
	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newTestRepository(t *testing.T) (*SQLRepository, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return newSQLRepository(db, nil, cache.NewCacheManager(nil)), db
}

func testSession(attempt int, questionIDs ...uint) *models.QuizSession {
	return &models.QuizSession{
		StudentID:       7,
		QuestionnaireID: 3,
		AttemptNumber:   attempt,
		AcademicYear:    2025,
		Status:          models.SessionInProgress,
		StartedAt:       time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC),
		QuestionIDs:     datatypes.NewJSONType(models.QuestionIDList(questionIDs)),
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestSessionStore_CreateIfAbsent(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.Session().CreateIfAbsent(ctx, testSession(1, 11, 12, 13))
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected the first session to be inserted")
	}

	t.Run("a second insert for the slot returns the stored session", func(t *testing.T) {
		got, err := repo.Session().CreateIfAbsent(ctx, testSession(1, 21, 22, 23))
		if err != nil {
			t.Fatalf("CreateIfAbsent() error = %v", err)
		}
		if got.ID != first.ID {
			t.Errorf("ID = %d, want %d", got.ID, first.ID)
		}
		if ids := got.QuestionIDs.Data(); len(ids) != 3 || ids[0] != 11 {
			t.Errorf("question ids = %v, want the first selection", ids)
		}
	})

	t.Run("concurrent inserts agree on one session", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]uint, 8)
		errs := make([]error, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := repo.Session().CreateIfAbsent(ctx, testSession(2, uint(100+i)))
				if err == nil {
					ids[i] = s.ID
				}
				errs[i] = err
			}(i)
		}
		wg.Wait()

		for i := range ids {
			if errs[i] != nil {
				t.Fatalf("CreateIfAbsent() error = %v", errs[i])
			}
			if ids[i] != ids[0] {
				t.Fatalf("got session ids %v, want one id", ids)
			}
		}
		count, err := repo.Session().CountByStatus(ctx, 7, 3, 2025, models.SessionInProgress)
		if err != nil {
			t.Fatalf("CountByStatus() error = %v", err)
		}
		if count != 2 {
			t.Errorf("in-progress sessions = %d, want 2", count)
		}
	})
}

func TestSessionStore_StatusTransitions(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2025, time.March, 10, 8, 20, 0, 0, time.UTC)

	submitted, err := repo.Session().CreateIfAbsent(ctx, testSession(1, 11, 12))
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	expired, err := repo.Session().CreateIfAbsent(ctx, testSession(2, 11, 12))
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}

	tests := []struct {
		name string
		call func() (bool, error)
		want bool
	}{
		{"submit in progress", func() (bool, error) {
			return repo.Session().MarkSubmitted(ctx, submitted.ID, models.AnswerSheet{11: 2, 12: 4}, at)
		}, true},
		{"submit twice", func() (bool, error) {
			return repo.Session().MarkSubmitted(ctx, submitted.ID, models.AnswerSheet{11: 1}, at)
		}, false},
		{"expire submitted", func() (bool, error) { return repo.Session().MarkExpired(ctx, submitted.ID) }, false},
		{"expire in progress", func() (bool, error) { return repo.Session().MarkExpired(ctx, expired.ID) }, true},
		{"expire twice", func() (bool, error) { return repo.Session().MarkExpired(ctx, expired.ID) }, false},
		{"submit expired", func() (bool, error) {
			return repo.Session().MarkSubmitted(ctx, expired.ID, models.AnswerSheet{11: 1}, at)
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("transition applied = %v, want %v", got, tt.want)
			}
		})
	}

	stored, err := repo.Session().GetByID(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != models.SessionSubmitted {
		t.Errorf("status = %s, want submitted", stored.Status)
	}
	if answers := stored.Answers.Data(); len(answers) != 2 || answers[12] != 4 {
		t.Errorf("answers = %v, want the first submission", answers)
	}
	if stored.SubmittedAt == nil || !stored.SubmittedAt.Equal(at) {
		t.Errorf("submitted_at = %v, want %v", stored.SubmittedAt, at)
	}

	if _, err := repo.Session().GetLatestInProgress(ctx, 7, 3, 2025); !repositories.IsNotFoundError(err) {
		t.Errorf("GetLatestInProgress() error = %v, want not found", err)
	}
}

func TestAttemptStore_DuplicateSlot(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	newAttempt := func(score float64) *models.QuizAttempt {
		return &models.QuizAttempt{
			StudentID:       7,
			QuestionnaireID: 3,
			AttemptNumber:   1,
			AcademicYear:    2025,
			Score:           score,
			Phase:           1,
			AttemptedAt:     time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
		}
	}

	if err := repo.Attempt().Create(ctx, newAttempt(4)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Attempt().Create(ctx, newAttempt(5))
	if !repositories.IsDuplicateKeyError(err) {
		t.Fatalf("Create() error = %v, want duplicate key", err)
	}

	count, err := repo.Attempt().CountByStudentQuestionnaire(ctx, 7, 3, 2025)
	if err != nil {
		t.Fatalf("CountByStudentQuestionnaire() error = %v", err)
	}
	if count != 1 {
		t.Errorf("attempts = %d, want 1", count)
	}
}

func TestEvaluationResultStore_Save(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	result := &models.EvaluationResult{StudentID: 7, QuestionnaireID: 3, AcademicYear: 2025, BestScore: 2, Phase: 1, SelectedAttemptID: 1}
	if err := repo.EvaluationResult().Save(ctx, result); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	stored, err := repo.EvaluationResult().GetByKey(ctx, 7, 3, 2025)
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	stored.BestScore = 4
	stored.SelectedAttemptID = 2
	if err := repo.EvaluationResult().Save(ctx, stored); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var rows []models.EvaluationResult
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(rows) != 1 || rows[0].BestScore != 4 || rows[0].SelectedAttemptID != 2 {
		t.Errorf("rows = %+v, want one updated row", rows)
	}
}

func TestPhaseAverageStore_UpsertRepeated(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	for i, score := range []float64{2.5, 3.75, 4} {
		avg := &models.PhaseAverage{
			StudentID:            7,
			TeacherID:            "teacher-1",
			Phase:                2,
			AverageScore:         floatPtr(score),
			CompletedEvaluations: i + 1,
			AcademicYear:         2025,
		}
		if err := repo.PhaseAverage().Upsert(ctx, avg); err != nil {
			t.Fatalf("Upsert(%v) error = %v", score, err)
		}
	}
	other := &models.PhaseAverage{StudentID: 7, TeacherID: "teacher-2", Phase: 2, AverageScore: floatPtr(1), CompletedEvaluations: 1, AcademicYear: 2025}
	if err := repo.PhaseAverage().Upsert(ctx, other); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	var count int64
	if err := db.Model(&models.PhaseAverage{}).Count(&count).Error; err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("rows = %d, want 2", count)
	}

	rows, err := repo.PhaseAverage().ListByStudent(ctx, 7, 2025)
	if err != nil {
		t.Fatalf("ListByStudent() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	first := rows[0]
	if first.TeacherID != "teacher-1" || first.AverageScore == nil || *first.AverageScore != 4 || first.CompletedEvaluations != 3 {
		t.Errorf("teacher-1 row = %+v, want the last upsert", first)
	}
}

func TestGradeStore_SaveRepeated(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Grade().Save(ctx, &models.Grade{StudentID: 7, AcademicYear: 2025, Phase1: floatPtr(2)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// A second writer that never read the row still lands on it.
	if err := repo.Grade().Save(ctx, &models.Grade{StudentID: 7, AcademicYear: 2025, Phase1: floatPtr(3.5), Average: floatPtr(3.5)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	grade, err := repo.Grade().GetByStudentYear(ctx, 7, 2025)
	if err != nil {
		t.Fatalf("GetByStudentYear() error = %v", err)
	}
	if grade.Phase1 == nil || *grade.Phase1 != 3.5 || grade.Average == nil || *grade.Average != 3.5 {
		t.Errorf("grade = %+v, want phase1 and average 3.5", grade)
	}

	grade.Phase2 = floatPtr(4)
	if err := repo.Grade().Save(ctx, grade); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var rows []models.Grade
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Phase2 == nil || *rows[0].Phase2 != 4 {
		t.Errorf("phase2 = %v, want 4", rows[0].Phase2)
	}

	if _, err := repo.Grade().GetByStudentYear(ctx, 7, 2024); !repositories.IsNotFoundError(err) {
		t.Errorf("GetByStudentYear(2024) error = %v, want not found", err)
	}
}

func TestImprovementPlanStore_RecordOnce(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	exists, err := repo.ImprovementPlan().Exists(ctx, 7, 1, 2025)
	if err != nil || exists {
		t.Fatalf("Exists() = %v, %v; want false", exists, err)
	}

	at := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	for _, eventID := range []string{"first-event", "second-event"} {
		req := &models.ImprovementPlanRequest{StudentID: 7, Phase: 1, AcademicYear: 2025, EventID: eventID, PhaseGrade: 2, RequestedAt: at}
		if err := repo.ImprovementPlan().Record(ctx, req); err != nil {
			t.Fatalf("Record(%s) error = %v", eventID, err)
		}
	}

	exists, err = repo.ImprovementPlan().Exists(ctx, 7, 1, 2025)
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v; want true", exists, err)
	}
	if exists, _ := repo.ImprovementPlan().Exists(ctx, 7, 1, 2026); exists {
		t.Error("a marker leaked into another academic year")
	}

	var rows []models.ImprovementPlanRequest
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(rows) != 1 || rows[0].EventID != "first-event" {
		t.Errorf("rows = %+v, want the first marker only", rows)
	}
}

func TestSQLRepository_WithTransactionRollsBack(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.Session().CreateIfAbsent(ctx, testSession(1, 11)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction() error = %v, want %v", err, boom)
	}

	if _, err := repo.Session().GetBySlot(ctx, 7, 3, 1, 2025); !repositories.IsNotFoundError(err) {
		t.Errorf("GetBySlot() error = %v, want not found after rollback", err)
	}
}
