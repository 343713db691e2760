package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/llm"
	"github.com/fmuoria/interview-portal/internal/models"
)

// EvaluationInput is one interview answer with the context needed to judge it
type EvaluationInput struct {
	JobTitle       string
	JobDescription string
	Skills         []string
	Question       models.InterviewQuestion
	Answer         models.Answer
}

// Evaluation is the score (0-100) and feedback for one answer
type Evaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Evaluator scores interview answers
type Evaluator interface {
	Evaluate(ctx context.Context, in EvaluationInput) (Evaluation, error)
}

var unansweredEvaluation = Evaluation{Score: 0, Feedback: "No answer was given for this question."}

// RandomEvaluator gives answered questions a uniform score in [60, 90).
// It stands in for a real model in development and tests.
type RandomEvaluator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomEvaluator creates a RandomEvaluator with a fixed seed
func NewRandomEvaluator(seed int64) *RandomEvaluator {
	return &RandomEvaluator{rnd: rand.New(rand.NewSource(seed))}
}

func (e *RandomEvaluator) Evaluate(_ context.Context, in EvaluationInput) (Evaluation, error) {
	if in.Answer.Empty() {
		return unansweredEvaluation, nil
	}

	e.mu.Lock()
	score := e.rnd.Float64()*30 + 60
	e.mu.Unlock()

	score = math.Floor(score*100) / 100
	return Evaluation{Score: score, Feedback: feedbackFor(score)}, nil
}

func feedbackFor(score float64) string {
	switch {
	case score >= 80:
		return "Clear, well-structured answer with relevant detail."
	case score >= 70:
		return "Solid answer; more concrete examples would strengthen it."
	default:
		return "Answer addresses the question but lacks depth and specifics."
	}
}

// LLMEvaluator asks the model to grade each answer and falls back on failure
type LLMEvaluator struct {
	llmClient llm.Generator
	fallback  Evaluator
	logger    *zap.Logger
}

// NewLLMEvaluator creates an evaluator backed by a Generator
func NewLLMEvaluator(llmClient llm.Generator, fallback Evaluator, logger *zap.Logger) *LLMEvaluator {
	return &LLMEvaluator{
		llmClient: llmClient,
		fallback:  fallback,
		logger:    logger,
	}
}

func (e *LLMEvaluator) Evaluate(ctx context.Context, in EvaluationInput) (Evaluation, error) {
	if in.Answer.Empty() {
		return unansweredEvaluation, nil
	}

	response, err := e.llmClient.GenerateContent(ctx, buildEvaluationPrompt(in))
	if err == nil {
		var eval Evaluation
		if eval, err = parseEvaluation(response); err == nil {
			return eval, nil
		}
	}

	if ctx.Err() != nil {
		return Evaluation{}, ctx.Err()
	}

	e.logger.Warn("llm evaluation failed, using fallback",
		zap.String("question_id", in.Question.ID),
		zap.Error(err))
	return e.fallback.Evaluate(ctx, in)
}

func buildEvaluationPrompt(in EvaluationInput) string {
	var sb strings.Builder

	sb.WriteString("You are an experienced interviewer grading a candidate's answer.\n\n")
	sb.WriteString(fmt.Sprintf("Role: %s\n", in.JobTitle))
	if in.JobDescription != "" {
		sb.WriteString(fmt.Sprintf("Role description: %s\n", truncate(sanitizeUTF8(in.JobDescription), 1000)))
	}
	if len(in.Skills) > 0 {
		sb.WriteString(fmt.Sprintf("Key skills: %s\n", strings.Join(in.Skills, ", ")))
	}
	sb.WriteString(fmt.Sprintf("\nQuestion (%s, %s): %s\n", in.Question.Category, in.Question.Difficulty, in.Question.QuestionText))
	sb.WriteString(fmt.Sprintf("Answer: %s\n\n", truncate(sanitizeUTF8(in.Answer.Text), 4000)))
	if in.Answer.TimedOut {
		sb.WriteString("The candidate ran out of time; grade what was provided.\n")
	}
	sb.WriteString("Grade relevance, structure, depth and use of concrete examples.\n")
	sb.WriteString(`Return ONLY a JSON object: {"score": <0-100>, "feedback": "<two sentences of constructive feedback>"}` + "\n")

	return sb.String()
}

func parseEvaluation(response string) (Evaluation, error) {
	jsonStr, err := llm.ExtractJSON(response)
	if err != nil {
		return Evaluation{}, err
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(jsonStr), &eval); err != nil {
		return Evaluation{}, fmt.Errorf("failed to unmarshal evaluation: %w", err)
	}
	eval.Score = math.Round(clamp(eval.Score, 0, 100)*100) / 100
	return eval, nil
}
