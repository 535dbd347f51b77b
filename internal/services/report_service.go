package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/seio-edu/quiz-service/internal/models"
	"github.com/seio-edu/quiz-service/internal/repositories"
)

var phaseAverageHeaders = []interface{}{
	"Student ID", "Student", "Grade", "Course", "Teacher ID", "Phase Average", "Completed Evaluations",
}

type reportService struct {
	repo   repositories.Repository
	logger *slog.Logger
	rules  QuizRules

	now func() time.Time
}

func NewReportService(repo repositories.Repository, logger *slog.Logger, rules QuizRules) ReportService {
	return &reportService{
		repo:   repo,
		logger: logger,
		rules:  rules,
		now:    time.Now,
	}
}

// ExportPhaseAverages renders the phase averages visible to user as an xlsx
// workbook. Teachers see their own students; administrators see every teacher.
func (s *reportService) ExportPhaseAverages(ctx context.Context, user *models.User, phase, year int) ([]byte, error) {
	if phase < 1 || phase > models.PhaseCount {
		return nil, ErrInvalidPhase
	}
	if !user.CanReadAnyStudent() {
		return nil, NewPermissionError(user.ID, 0, "phase_averages", "export", "only teachers and administrators may export reports")
	}
	if year == 0 {
		year = s.rules.YearAt(s.now())
	}

	teacherID := user.ID
	if user.Role == models.RoleAdmin {
		teacherID = ""
	}

	rows, err := s.repo.PhaseAverage().ListByTeacherPhase(ctx, teacherID, phase, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase averages: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TeacherID != rows[j].TeacherID {
			return rows[i].TeacherID < rows[j].TeacherID
		}
		return rows[i].StudentID < rows[j].StudentID
	})

	data, err := renderPhaseAverages(phase, rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Phase average report exported",
		"user_id", user.ID,
		"phase", phase,
		"academic_year", year,
		"rows", len(rows))

	return data, nil
}

func renderPhaseAverages(phase int, rows []*models.PhaseAverage) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("Phase %d", phase)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &phaseAverageHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		values := []interface{}{row.StudentID, "", "", "", row.TeacherID, "", row.CompletedEvaluations}
		if row.Student != nil {
			values[1] = row.Student.Name
			values[2] = row.Student.Grade
			values[3] = row.Student.Course
		}
		if row.AverageScore != nil {
			values[5] = *row.AverageScore
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "G", 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
