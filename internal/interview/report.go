package interview

import (
	"fmt"
	"math"

	"github.com/fmuoria/interview-portal/internal/models"
)

const (
	strengthThreshold    = 75.0
	improvementThreshold = 60.0
	maxQuestionExcerpt   = 80
)

// Recommendation maps an overall score to a hiring recommendation
func Recommendation(score float64) string {
	switch {
	case score >= 80:
		return "Strongly recommended"
	case score >= 65:
		return "Recommended"
	case score >= 50:
		return "Consider"
	default:
		return "Not recommended"
	}
}

// OverallScore is the mean of the answer scores over all questions, rounded to 2 decimals
func OverallScore(questions []models.InterviewQuestion, answers []models.Answer) float64 {
	if len(questions) == 0 {
		return 0
	}
	var sum float64
	for i := range questions {
		if i < len(answers) {
			sum += answers[i].Score
		}
	}
	return math.Round(sum/float64(len(questions))*100) / 100
}

// summarize fills the aggregate fields of an evaluated session
func summarize(session *models.InterviewSession) {
	session.OverallScore = OverallScore(session.Questions, session.Answers)
	session.Recommendation = Recommendation(session.OverallScore)
	session.Strengths = []string{}
	session.Improvements = []string{}

	answered := 0
	for i, a := range session.Answers {
		q := excerpt(session.Questions[i].QuestionText)
		switch {
		case a.Skipped:
			session.Improvements = append(session.Improvements, fmt.Sprintf("Unanswered: %s", q))
		case a.Empty() && a.TimedOut:
			session.Improvements = append(session.Improvements, fmt.Sprintf("Ran out of time: %s", q))
		case a.Score >= strengthThreshold:
			session.Strengths = append(session.Strengths, fmt.Sprintf("Strong %s answer: %s", session.Questions[i].Category, q))
		case a.Score < improvementThreshold:
			session.Improvements = append(session.Improvements, fmt.Sprintf("Needs more depth: %s", q))
		}
		if !a.Empty() {
			answered++
		}
	}

	session.Feedback = fmt.Sprintf("Answered %d of %d questions with an overall score of %.2f. %s.",
		answered, len(session.Questions), session.OverallScore, Recommendation(session.OverallScore))
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= maxQuestionExcerpt {
		return s
	}
	return string(r[:maxQuestionExcerpt]) + "..."
}
