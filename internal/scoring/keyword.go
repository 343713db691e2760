package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fmuoria/interview-portal/internal/models"
)

// KeywordScorer scores applicants by how many job requirements their documents mention.
// It is used when no LLM is configured and as a fallback when the model fails.
type KeywordScorer struct{}

// NewKeywordScorer creates a keyword-overlap scorer
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// ScoreApplicant scores applicant against job using keyword coverage
func (k *KeywordScorer) ScoreApplicant(_ context.Context, applicant models.ApplicantDocument, job models.Job) (models.Scores, error) {
	cvTokens := tokenize(applicant.CVContent)
	if len(cvTokens) == 0 {
		return models.Scores{}, fmt.Errorf("applicant %s has no readable resume text", applicant.Name)
	}

	required := append(append([]string{}, job.RequiredExperience...), job.Skills...)
	expReq, expReqHit := coverage(required, cvTokens)
	expNice, _ := coverage(job.NiceToHaveExperience, cvTokens)
	eduReq, eduReqHit := coverage(job.RequiredEducation, cvTokens)
	eduNice, _ := coverage(job.NiceToHaveEducation, cvTokens)
	dutReq, dutReqHit := coverage(job.RequiredDuties, cvTokens)
	dutNice, _ := coverage(job.NiceToHaveDuties, cvTokens)

	scores := models.Scores{
		ExperienceScore:     round1(50 * (0.8*expReq + 0.2*expNice)),
		EducationScore:      round1(20 * (0.8*eduReq + 0.2*eduNice)),
		DutiesScore:         round1(20 * (0.8*dutReq + 0.2*dutNice)),
		ExperienceReasoning: fmt.Sprintf("Resume mentions %d of %d required experience and skill items.", expReqHit, len(required)),
		EducationReasoning:  fmt.Sprintf("Resume mentions %d of %d required education items.", eduReqHit, len(job.RequiredEducation)),
		DutiesReasoning:     fmt.Sprintf("Resume mentions %d of %d required duties.", dutReqHit, len(job.RequiredDuties)),
	}

	if words := len(strings.Fields(applicant.CLContent)); words > 0 {
		clTokens := tokenize(applicant.CLContent)
		relevance, _ := coverage(append(required, job.RequiredDuties...), clTokens)
		length := math.Min(float64(words)/150, 1)
		scores.CoverLetterScore = round1(10 * (0.5*length + 0.5*relevance))
		scores.CoverLetterReasoning = fmt.Sprintf("Cover letter of %d words addressing %.0f%% of the requirements.", words, relevance*100)
	} else {
		scores.CoverLetterReasoning = "No cover letter provided."
	}

	scores.TotalScore = round1(scores.ExperienceScore + scores.EducationScore + scores.DutiesScore + scores.CoverLetterScore)
	return scores, nil
}

// coverage returns the fraction of items at least half of whose words appear in tokens.
// An empty list is fully covered.
func coverage(items []string, tokens map[string]bool) (float64, int) {
	if len(items) == 0 {
		return 1, 0
	}
	hits := 0
	for _, item := range items {
		words := tokenize(item)
		if len(words) == 0 {
			continue
		}
		found := 0
		for w := range words {
			if tokens[w] {
				found++
			}
		}
		if found*2 >= len(words) {
			hits++
		}
	}
	return float64(hits) / float64(len(items)), hits
}

// tokenize lowercases text and returns its words of two or more characters
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	for _, f := range fields {
		if len(f) >= 2 {
			tokens[f] = true
		}
	}
	return tokens
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
