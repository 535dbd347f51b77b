package services

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/seio-edu/quiz-service/internal/models"
)

func intPtr(v int) *int { return &v }

func TestEffectiveQuestionCount(t *testing.T) {
	tests := []struct {
		name      string
		subset    *int
		available int
		want      int
	}{
		{name: "no subset", subset: nil, available: 12, want: 12},
		{name: "zero subset means all", subset: intPtr(0), available: 12, want: 12},
		{name: "subset smaller", subset: intPtr(5), available: 12, want: 5},
		{name: "subset larger", subset: intPtr(20), available: 12, want: 12},
		{name: "subset equal", subset: intPtr(12), available: 12, want: 12},
		{name: "nothing available", subset: intPtr(5), available: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &models.Questionnaire{QuestionsToAnswer: tt.subset}
			if got := effectiveQuestionCount(q, tt.available); got != tt.want {
				t.Errorf("effectiveQuestionCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectQuestionIDs(t *testing.T) {
	ids := []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	original := slices.Clone(ids)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 50; i++ {
		selected := selectQuestionIDs(ids, 4, rng.Shuffle)
		if len(selected) != 4 {
			t.Fatalf("selected %d ids, want 4", len(selected))
		}
		seen := map[uint]bool{}
		for _, id := range selected {
			if !slices.Contains(ids, id) || seen[id] {
				t.Fatalf("invalid selection %v", selected)
			}
			seen[id] = true
		}
	}
	if !slices.Equal(ids, original) {
		t.Errorf("input modified: %v", ids)
	}

	if got := selectQuestionIDs(ids, 20, reverseShuffler); len(got) != len(ids) || got[0] != 10 {
		t.Errorf("oversized selection = %v", got)
	}
}

func TestSelectQuestionIDs_CoversAllQuestions(t *testing.T) {
	ids := []uint{1, 2, 3, 4, 5, 6}
	rng := rand.New(rand.NewPCG(7, 7))
	counts := map[uint]int{}
	for i := 0; i < 600; i++ {
		for _, id := range selectQuestionIDs(ids, 2, rng.Shuffle) {
			counts[id]++
		}
	}
	for _, id := range ids {
		if counts[id] < 100 {
			t.Errorf("question %d selected only %d times in 600 draws", id, counts[id])
		}
	}
}

func TestOrderQuestions(t *testing.T) {
	questions := []*models.Question{{ID: 1}, {ID: 2}, {ID: 3}}
	got := orderQuestions(models.QuestionIDList{3, 9, 1}, questions)
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Errorf("orderQuestions() = %v", got)
	}
}

func TestToQuestionView(t *testing.T) {
	q := &models.Question{ID: 4, QuestionText: "2+2?", Option1: "3", Option2: "4", CorrectAnswer: 2}

	if view := toQuestionView(q, false); view.CorrectAnswer != nil {
		t.Error("answer revealed without revealAnswer")
	}
	view := toQuestionView(q, true)
	if view.CorrectAnswer == nil || *view.CorrectAnswer != 2 {
		t.Errorf("CorrectAnswer = %v, want 2", view.CorrectAnswer)
	}
	if view.QuestionText != "2+2?" || view.Option2 != "4" {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestScoreSubmission(t *testing.T) {
	tests := []struct {
		correct, total     int
		wantScore, wantPct float64
	}{
		{5, 5, 5, 100},
		{0, 5, 0, 0},
		{2, 3, 3.33, 66.67},
		{1, 8, 0.63, 12.5},
		{7, 9, 3.89, 77.78},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		score, pct := scoreSubmission(tt.correct, tt.total)
		if score != tt.wantScore || pct != tt.wantPct {
			t.Errorf("scoreSubmission(%d, %d) = %v, %v; want %v, %v",
				tt.correct, tt.total, score, pct, tt.wantScore, tt.wantPct)
		}
	}
}
