package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/llm"
	"github.com/fmuoria/interview-portal/internal/models"
)

const maxResumePromptChars = 8000

var (
	emailPattern      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern      = regexp.MustCompile(`\+?\d[\d ().\-]{7,}\d`)
	experiencePattern = regexp.MustCompile(`(?i)(\d{1,2})\+?\s*(?:years?|yrs?)`)
	degreeKeywords    = []string{"bachelor", "master", "phd", "doctor", "diploma", "degree", "bsc", "msc", "b.sc", "m.sc", "mba", "certificate"}
)

// ResumeParser turns resume text into structured fields
type ResumeParser struct {
	llmClient llm.Generator
	skills    []string
	logger    *zap.Logger
}

// NewResumeParser creates a parser. llmClient may be nil, in which case only
// the heuristic parser is used.
func NewResumeParser(llmClient llm.Generator, skills []string, logger *zap.Logger) *ResumeParser {
	return &ResumeParser{
		llmClient: llmClient,
		skills:    skills,
		logger:    logger,
	}
}

// Parse extracts fields with the model when available, filling gaps heuristically
func (p *ResumeParser) Parse(ctx context.Context, text string) (models.ParsedResume, error) {
	if strings.TrimSpace(text) == "" {
		return models.ParsedResume{}, fmt.Errorf("resume text is empty")
	}

	heuristic := ParseResumeText(text, p.skills)
	if p.llmClient == nil {
		return heuristic, nil
	}

	parsed, err := p.parseWithLLM(ctx, text)
	if err != nil {
		p.logger.Warn("llm resume parsing failed, using heuristics", zap.Error(err))
		return heuristic, nil
	}

	return mergeParsed(parsed, heuristic), nil
}

func (p *ResumeParser) parseWithLLM(ctx context.Context, text string) (models.ParsedResume, error) {
	if len(text) > maxResumePromptChars {
		text = text[:maxResumePromptChars]
	}
	text = strings.ToValidUTF8(text, "�")

	var sb strings.Builder
	sb.WriteString("Extract structured data from the resume below.\n")
	sb.WriteString(`Return ONLY a JSON object: {"name": "", "email": "", "phone": "", "skills": [""], "experience_years": 0, "education": [""], "summary": "<two sentences>"}` + "\n\n")
	sb.WriteString("RESUME:\n")
	sb.WriteString(text)

	response, err := p.llmClient.GenerateContent(ctx, sb.String())
	if err != nil {
		return models.ParsedResume{}, err
	}

	jsonStr, err := llm.ExtractJSON(response)
	if err != nil {
		return models.ParsedResume{}, err
	}

	var parsed models.ParsedResume
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return models.ParsedResume{}, fmt.Errorf("failed to unmarshal parsed resume: %w", err)
	}
	return parsed, nil
}

// mergeParsed keeps primary's fields and fills empty ones from secondary
func mergeParsed(primary, secondary models.ParsedResume) models.ParsedResume {
	if primary.Name == "" {
		primary.Name = secondary.Name
	}
	if primary.Email == "" {
		primary.Email = secondary.Email
	}
	if primary.Phone == "" {
		primary.Phone = secondary.Phone
	}
	if len(primary.Skills) == 0 {
		primary.Skills = secondary.Skills
	}
	if primary.ExperienceYears == 0 {
		primary.ExperienceYears = secondary.ExperienceYears
	}
	if len(primary.Education) == 0 {
		primary.Education = secondary.Education
	}
	if primary.Summary == "" {
		primary.Summary = secondary.Summary
	}
	return primary
}

// ParseResumeText extracts fields from resume text with regular expressions and
// a skills dictionary
func ParseResumeText(text string, skills []string) models.ParsedResume {
	parsed := models.ParsedResume{
		Skills:    []string{},
		Education: []string{},
	}

	lines := nonEmptyLines(text)
	if len(lines) > 0 && !emailPattern.MatchString(lines[0]) && len(lines[0]) <= 60 {
		parsed.Name = lines[0]
	}

	parsed.Email = emailPattern.FindString(text)
	parsed.Phone = strings.TrimSpace(phonePattern.FindString(text))

	for _, m := range experiencePattern.FindAllStringSubmatch(text, -1) {
		if years, err := strconv.Atoi(m[1]); err == nil && years > parsed.ExperienceYears && years < 60 {
			parsed.ExperienceYears = years
		}
	}

	words := tokenSet(text)
	lower := strings.ToLower(text)
	for _, skill := range skills {
		s := strings.ToLower(skill)
		// Multi-word and punctuated skills match as substrings, single words as tokens
		if strings.ContainsAny(s, " .+#") {
			if strings.Contains(lower, s) {
				parsed.Skills = append(parsed.Skills, skill)
			}
		} else if words[s] {
			parsed.Skills = append(parsed.Skills, skill)
		}
	}

	for _, line := range lines {
		l := strings.ToLower(line)
		for _, kw := range degreeKeywords {
			if strings.Contains(l, kw) {
				parsed.Education = append(parsed.Education, line)
				break
			}
		}
	}

	summary := strings.Join(lines, " ")
	if len(summary) > 300 {
		summary = strings.ToValidUTF8(summary[:300], "") + "..."
	}
	parsed.Summary = summary

	return parsed
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	}) {
		set[f] = true
	}
	return set
}
