package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fmuoria/interview-portal/internal/llm"
	"github.com/fmuoria/interview-portal/internal/models"
)

const (
	// MaxCVChars bounds the resume text sent to the model
	MaxCVChars = 6000
	// MaxCoverLetterChars bounds the cover letter text sent to the model
	MaxCoverLetterChars = 2000
	// maxRequirementItems is how many items per requirement list the prompt spells out
	maxRequirementItems = 5
)

// ApplicantScorer scores an applicant's documents against a job
type ApplicantScorer interface {
	ScoreApplicant(ctx context.Context, applicant models.ApplicantDocument, job models.Job) (models.Scores, error)
}

// Scorer evaluates applicants using an LLM
type Scorer struct {
	llmClient llm.Generator
}

// NewScorer creates a new scorer instance
func NewScorer(llmClient llm.Generator) *Scorer {
	return &Scorer{
		llmClient: llmClient,
	}
}

// ScoreApplicant evaluates an applicant against a job posting
func (s *Scorer) ScoreApplicant(ctx context.Context, applicant models.ApplicantDocument, job models.Job) (models.Scores, error) {
	prompt := s.buildScoringPrompt(applicant, job)

	response, err := s.llmClient.GenerateContent(ctx, prompt)
	if err != nil {
		return models.Scores{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	scores, err := s.parseScores(response)
	if err != nil {
		return models.Scores{}, fmt.Errorf("failed to parse scores: %w", err)
	}

	scores.ExperienceScore = clamp(scores.ExperienceScore, 0, 50)
	scores.EducationScore = clamp(scores.EducationScore, 0, 20)
	scores.DutiesScore = clamp(scores.DutiesScore, 0, 20)
	scores.CoverLetterScore = clamp(scores.CoverLetterScore, 0, 10)
	scores.TotalScore = scores.ExperienceScore + scores.EducationScore + scores.DutiesScore + scores.CoverLetterScore

	return scores, nil
}

// buildScoringPrompt creates the screening prompt for the LLM
func (s *Scorer) buildScoringPrompt(applicant models.ApplicantDocument, job models.Job) string {
	var sb strings.Builder

	sb.WriteString("You are an expert HR analyst screening a job applicant. Score the applicant against the posting.\n\n")

	sb.WriteString("## JOB\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", job.Title))
	sb.WriteString(fmt.Sprintf("Description: %s\n\n", truncate(sanitizeUTF8(job.Description), 1500)))

	sb.WriteString("### REQUIRED (higher weight)\n")
	sb.WriteString(s.condenseRequirements("Experience", append(append([]string{}, job.RequiredExperience...), job.Skills...), maxRequirementItems))
	sb.WriteString(s.condenseRequirements("Education", job.RequiredEducation, maxRequirementItems))
	sb.WriteString(s.condenseRequirements("Duties", job.RequiredDuties, maxRequirementItems))

	sb.WriteString("\n### NICE TO HAVE (lower weight)\n")
	sb.WriteString(s.condenseRequirements("Experience", job.NiceToHaveExperience, maxRequirementItems))
	sb.WriteString(s.condenseRequirements("Education", job.NiceToHaveEducation, maxRequirementItems))
	sb.WriteString(s.condenseRequirements("Duties", job.NiceToHaveDuties, maxRequirementItems))

	sb.WriteString("\n## APPLICANT\n")
	sb.WriteString(fmt.Sprintf("Name: %s\n\n", applicant.Name))

	sb.WriteString("### RESUME\n")
	cv := sanitizeUTF8(applicant.CVContent)
	if len(cv) > MaxCVChars {
		sb.WriteString(sanitizeUTF8(cv[:MaxCVChars]))
		sb.WriteString("\n[CV truncated for length]")
	} else {
		sb.WriteString(cv)
	}
	sb.WriteString("\n\n")

	if applicant.CLContent != "" {
		sb.WriteString("### COVER LETTER\n")
		cl := sanitizeUTF8(applicant.CLContent)
		if len(cl) > MaxCoverLetterChars {
			sb.WriteString(sanitizeUTF8(cl[:MaxCoverLetterChars]))
			sb.WriteString("\n[Cover letter truncated for length]")
		} else {
			sb.WriteString(cl)
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("## INSTRUCTIONS\n")
	sb.WriteString("Missing REQUIRED qualifications should significantly lower scores; missing NICE TO HAVE ones only slightly.\n")
	sb.WriteString("Respond with a JSON object in exactly this format:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "experience_score": <0-50>,` + "\n")
	sb.WriteString(`  "experience_reasoning": "<one or two sentences>",` + "\n")
	sb.WriteString(`  "education_score": <0-20>,` + "\n")
	sb.WriteString(`  "education_reasoning": "<one or two sentences>",` + "\n")
	sb.WriteString(`  "duties_score": <0-20>,` + "\n")
	sb.WriteString(`  "duties_reasoning": "<one or two sentences>",` + "\n")
	sb.WriteString(`  "cover_letter_score": <0-10>,` + "\n")
	sb.WriteString(`  "cover_letter_reasoning": "<one or two sentences>"` + "\n")
	sb.WriteString("}\n")
	sb.WriteString("No cover letter means a cover_letter_score of 0. Return ONLY the JSON object.\n")

	return sb.String()
}

// condenseRequirements renders a requirement list on one line, eliding items past max
func (s *Scorer) condenseRequirements(category string, items []string, max int) string {
	if len(items) == 0 {
		return ""
	}

	shown := items
	if len(items) > max {
		shown = items[:max]
	}

	line := fmt.Sprintf("%s: %s", category, strings.Join(shown, "; "))
	if len(items) > max {
		line += fmt.Sprintf(" (+%d more)", len(items)-max)
	}
	return line + "\n"
}

// parseScores extracts scores from LLM response
func (s *Scorer) parseScores(response string) (models.Scores, error) {
	jsonStr, err := llm.ExtractJSON(response)
	if err != nil {
		return models.Scores{}, err
	}

	var scores models.Scores
	if err := json.Unmarshal([]byte(jsonStr), &scores); err != nil {
		return models.Scores{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return scores, nil
}

// sanitizeUTF8 replaces invalid byte sequences so the prompt is valid UTF-8
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncate shortens s to maxLen bytes followed by an ellipsis
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
