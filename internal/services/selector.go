package services

import (
	"math"
	"math/rand/v2"

	"github.com/seio-edu/quiz-service/internal/models"
)

// Shuffler permutes n elements in place through swap. rand.Shuffle, a
// Fisher-Yates shuffle over a randomly seeded source, is the default.
type Shuffler func(n int, swap func(i, j int))

var defaultShuffler Shuffler = rand.Shuffle

// effectiveQuestionCount clamps the configured subset size to the available
// questions. Without a configured subset every question is required.
func effectiveQuestionCount(questionnaire *models.Questionnaire, available int) int {
	if limit := questionnaire.SubsetLimit(); limit > 0 && limit < available {
		return limit
	}
	return available
}

// selectQuestionIDs returns a uniformly random ordered selection of count ids.
// The input slice is not modified.
func selectQuestionIDs(ids []uint, count int, shuffle Shuffler) models.QuestionIDList {
	selected := make(models.QuestionIDList, len(ids))
	copy(selected, ids)
	shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	if count < len(selected) {
		selected = selected[:count]
	}
	return selected
}

// shuffleQuestions returns a shuffled copy of questions truncated to count.
func shuffleQuestions(questions []*models.Question, count int, shuffle Shuffler) []*models.Question {
	out := make([]*models.Question, len(questions))
	copy(out, questions)
	shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	if count < len(out) {
		out = out[:count]
	}
	return out
}

// orderQuestions arranges questions by the frozen id order, skipping ids that
// no longer resolve.
func orderQuestions(ids models.QuestionIDList, questions []*models.Question) []*models.Question {
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered
}

// toQuestionView converts a question for delivery; correct answers are only
// exposed when revealAnswer is set.
func toQuestionView(q *models.Question, revealAnswer bool) models.QuestionView {
	view := models.QuestionView{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Option1:      q.Option1,
		Option2:      q.Option2,
		Option3:      q.Option3,
		Option4:      q.Option4,
		Category:     q.Category,
	}
	if revealAnswer {
		correct := q.CorrectAnswer
		view.CorrectAnswer = &correct
	}
	return view
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// scoreSubmission converts a correct count into the 0-5 score and a percentage.
func scoreSubmission(correct, total int) (score, percentage float64) {
	if total <= 0 {
		return 0, 0
	}
	ratio := float64(correct) / float64(total)
	return round2(ratio * 5), round2(ratio * 100)
}
