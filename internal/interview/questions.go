package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/config"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/llm"
	"github.com/fmuoria/interview-portal/internal/models"
)

// GenerateRequest describes the question set to build
type GenerateRequest struct {
	Job        *models.Job
	Resume     *models.ParsedResume
	Count      int
	Difficulty models.Difficulty
}

// QuestionGenerator builds interview questions from job and resume context
type QuestionGenerator struct {
	llmClient llm.Generator
	cfg       *config.InterviewConfig
	logger    *zap.Logger
}

// NewQuestionGenerator creates a generator. With a nil llmClient questions
// always come from the configured question bank.
func NewQuestionGenerator(llmClient llm.Generator, cfg *config.InterviewConfig, logger *zap.Logger) *QuestionGenerator {
	return &QuestionGenerator{
		llmClient: llmClient,
		cfg:       cfg,
		logger:    logger,
	}
}

type generatedQuestion struct {
	QuestionText string `json:"question_text"`
	Category     string `json:"category"`
	Difficulty   string `json:"difficulty"`
}

// Generate returns req.Count questions, or the configured default count when zero
func (g *QuestionGenerator) Generate(ctx context.Context, req GenerateRequest) ([]models.InterviewQuestion, error) {
	if req.Job == nil {
		return nil, apperrors.InvalidInput("job is required", nil)
	}
	count := req.Count
	if count == 0 {
		count = g.cfg.DefaultQuestionCount
	}
	if count < 1 || count > g.cfg.MaxQuestionCount {
		return nil, apperrors.InvalidInput(fmt.Sprintf("count must be between 1 and %d", g.cfg.MaxQuestionCount), nil)
	}
	if req.Difficulty != "" && !req.Difficulty.Valid() {
		return nil, apperrors.InvalidInput("difficulty must be easy, medium or hard", nil)
	}

	var generated []generatedQuestion
	if g.llmClient != nil {
		var err error
		generated, err = g.generateWithLLM(ctx, req, count)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Warn("llm question generation failed, using question bank",
				zap.String("job_id", req.Job.ID),
				zap.Error(err))
			generated = nil
		}
	}
	if len(generated) < count {
		generated = append(generated, g.fromBank(req.Difficulty, count-len(generated))...)
	}

	questions := make([]models.InterviewQuestion, 0, count)
	for _, gq := range generated[:count] {
		difficulty := models.Difficulty(strings.ToLower(gq.Difficulty))
		if !difficulty.Valid() {
			difficulty = req.Difficulty
			if difficulty == "" {
				difficulty = models.DifficultyMedium
			}
		}
		category := gq.Category
		if category == "" {
			category = "general"
		}
		questions = append(questions, models.InterviewQuestion{
			ID:               uuid.NewString(),
			QuestionText:     strings.TrimSpace(gq.QuestionText),
			Category:         category,
			Difficulty:       difficulty,
			TimeLimitSeconds: g.cfg.TimeLimit(string(difficulty)),
		})
	}

	return questions, nil
}

func (g *QuestionGenerator) generateWithLLM(ctx context.Context, req GenerateRequest, count int) ([]generatedQuestion, error) {
	response, err := g.llmClient.GenerateContent(ctx, buildQuestionPrompt(req, count))
	if err != nil {
		return nil, err
	}

	jsonStr, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Questions []generatedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}

	valid := parsed.Questions[:0]
	for _, q := range parsed.Questions {
		if strings.TrimSpace(q.QuestionText) != "" {
			valid = append(valid, q)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	if len(valid) > count {
		valid = valid[:count]
	}
	return valid, nil
}

// fromBank cycles through bank questions of the requested difficulty
func (g *QuestionGenerator) fromBank(difficulty models.Difficulty, n int) []generatedQuestion {
	var pool []config.BankQuestion
	for _, q := range g.cfg.QuestionBank {
		if difficulty == "" || strings.EqualFold(q.Difficulty, string(difficulty)) {
			pool = append(pool, q)
		}
	}
	if len(pool) == 0 {
		pool = g.cfg.QuestionBank
	}

	out := make([]generatedQuestion, 0, n)
	for i := 0; i < n; i++ {
		q := pool[i%len(pool)]
		out = append(out, generatedQuestion{
			QuestionText: q.Text,
			Category:     q.Category,
			Difficulty:   q.Difficulty,
		})
	}
	return out
}

func buildQuestionPrompt(req GenerateRequest, count int) string {
	var sb strings.Builder

	sb.WriteString("You are an interviewer preparing an interview for the role below.\n\n")
	sb.WriteString(fmt.Sprintf("ROLE: %s\n", req.Job.Title))
	if req.Job.Description != "" {
		desc := req.Job.Description
		if len(desc) > 1500 {
			desc = strings.ToValidUTF8(desc[:1500], "")
		}
		sb.WriteString(fmt.Sprintf("DESCRIPTION: %s\n", desc))
	}
	if len(req.Job.Skills) > 0 {
		sb.WriteString(fmt.Sprintf("KEY SKILLS: %s\n", strings.Join(req.Job.Skills, ", ")))
	}
	if len(req.Job.RequiredDuties) > 0 {
		sb.WriteString(fmt.Sprintf("DUTIES: %s\n", strings.Join(req.Job.RequiredDuties, "; ")))
	}

	if req.Resume != nil {
		sb.WriteString("\nCANDIDATE:\n")
		if req.Resume.Summary != "" {
			sb.WriteString(fmt.Sprintf("Summary: %s\n", req.Resume.Summary))
		}
		if len(req.Resume.Skills) > 0 {
			sb.WriteString(fmt.Sprintf("Skills: %s\n", strings.Join(req.Resume.Skills, ", ")))
		}
		if req.Resume.ExperienceYears > 0 {
			sb.WriteString(fmt.Sprintf("Experience: %d years\n", req.Resume.ExperienceYears))
		}
	}

	sb.WriteString(fmt.Sprintf("\nWrite exactly %d open-ended interview questions", count))
	if req.Difficulty != "" {
		sb.WriteString(fmt.Sprintf(" of %s difficulty", req.Difficulty))
	}
	sb.WriteString(". Mix behavioral and technical questions grounded in the role and the candidate's background.\n")
	sb.WriteString(`Return ONLY a JSON object: {"questions": [{"question_text": "", "category": "behavioral|technical|situational|motivation", "difficulty": "easy|medium|hard"}]}` + "\n")

	return sb.String()
}
