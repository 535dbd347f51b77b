package services

import (
	"math"

	"github.com/seio-edu/quiz-service/internal/models"
)

// EvaluationScore is the best score of one questionnaire as seen by the aggregator.
type EvaluationScore struct {
	QuestionnaireID uint
	BestScore       float64
	IsPruebaSaber   bool
}

// AggregateSnapshot is everything needed to recompute a student's phase aggregates.
type AggregateSnapshot struct {
	StudentID    uint
	AcademicYear int
	Phase        int
	// Evaluations are the student's results for Phase in AcademicYear.
	Evaluations []EvaluationScore
	// Grade is the stored grade row, or nil when the student has none yet.
	Grade *models.Grade
}

// Aggregates are the recomputed values for one snapshot.
type Aggregates struct {
	PhaseAverage         *float64
	CompletedEvaluations int
	Grade                models.Grade
}

// RecomputeAggregates derives the phase average and grade row from a snapshot.
// Prueba Saber questionnaires never count. A phase without qualifying
// evaluations yields a nil average. The grade average is the mean of the
// non-nil phase columns.
func RecomputeAggregates(snapshot AggregateSnapshot) Aggregates {
	var sum float64
	var count int
	for _, e := range snapshot.Evaluations {
		if e.IsPruebaSaber {
			continue
		}
		sum += e.BestScore
		count++
	}

	var phaseAverage *float64
	if count > 0 {
		if avg := sum / float64(count); !math.IsNaN(avg) {
			rounded := round2(avg)
			phaseAverage = &rounded
		}
	}

	var grade models.Grade
	if snapshot.Grade != nil {
		grade = *snapshot.Grade
	}
	grade.StudentID = snapshot.StudentID
	grade.AcademicYear = snapshot.AcademicYear
	grade.SetPhase(snapshot.Phase, copyFloat(phaseAverage))
	grade.Average = gradeAverage(&grade)

	return Aggregates{
		PhaseAverage:         phaseAverage,
		CompletedEvaluations: count,
		Grade:                grade,
	}
}

func gradeAverage(grade *models.Grade) *float64 {
	var sum float64
	var count int
	for phase := 1; phase <= models.PhaseCount; phase++ {
		if v := grade.PhaseValue(phase); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := round2(sum / float64(count))
	return &avg
}

// MergeBestScore folds an attempt into the existing evaluation result. The
// best score moves only on a strictly greater score; phase and year always
// follow the questionnaire. It reports whether a new result was created.
func MergeBestScore(existing *models.EvaluationResult, attempt *models.QuizAttempt, questionnaire *models.Questionnaire) (*models.EvaluationResult, bool) {
	if existing == nil {
		return &models.EvaluationResult{
			StudentID:         attempt.StudentID,
			QuestionnaireID:   attempt.QuestionnaireID,
			AcademicYear:      attempt.AcademicYear,
			BestScore:         attempt.Score,
			SelectedAttemptID: attempt.ID,
			Phase:             questionnaire.Phase,
		}, true
	}

	merged := *existing
	merged.Questionnaire = nil
	if attempt.Score > merged.BestScore {
		merged.BestScore = attempt.Score
		merged.SelectedAttemptID = attempt.ID
	}
	merged.Phase = questionnaire.Phase
	merged.AcademicYear = attempt.AcademicYear
	return &merged, false
}

// evaluationScores projects stored results onto aggregator inputs. Results
// without a loaded questionnaire are treated as regular questionnaires.
func evaluationScores(results []*models.EvaluationResult) []EvaluationScore {
	scores := make([]EvaluationScore, 0, len(results))
	for _, r := range results {
		score := EvaluationScore{QuestionnaireID: r.QuestionnaireID, BestScore: r.BestScore}
		if r.Questionnaire != nil {
			score.IsPruebaSaber = r.Questionnaire.IsPruebaSaber
		}
		scores = append(scores, score)
	}
	return scores
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
