package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InterviewConfig tunes question generation, timing and scoring of AI interviews
type InterviewConfig struct {
	DefaultQuestionCount  int            `yaml:"default_question_count"`
	MaxQuestionCount      int            `yaml:"max_question_count"`
	TimeLimits            map[string]int `yaml:"time_limits"`
	EvaluationConcurrency int            `yaml:"evaluation_concurrency"`
	Skills                []string       `yaml:"skills"`
	QuestionBank          []BankQuestion `yaml:"question_bank"`
}

// BankQuestion is a fallback interview question used when no LLM is available
type BankQuestion struct {
	Text       string `yaml:"text"`
	Category   string `yaml:"category"`
	Difficulty string `yaml:"difficulty"`
}

// DefaultInterviewConfig returns the built-in interview settings
func DefaultInterviewConfig() *InterviewConfig {
	return &InterviewConfig{
		DefaultQuestionCount: 5,
		MaxQuestionCount:     20,
		TimeLimits: map[string]int{
			"easy":   90,
			"medium": 120,
			"hard":   180,
		},
		EvaluationConcurrency: 4,
		Skills: []string{
			"go", "python", "java", "javascript", "typescript", "react", "sql",
			"postgresql", "docker", "kubernetes", "aws", "gcp", "git", "linux",
		},
		QuestionBank: []BankQuestion{
			{Text: "Tell me about yourself and your background.", Category: "behavioral", Difficulty: "easy"},
			{Text: "Why are you interested in this role?", Category: "motivation", Difficulty: "easy"},
			{Text: "Describe a challenging project you worked on and how you handled it.", Category: "behavioral", Difficulty: "medium"},
			{Text: "How do you prioritize tasks when facing multiple deadlines?", Category: "behavioral", Difficulty: "medium"},
			{Text: "Describe a time you disagreed with a teammate and how it was resolved.", Category: "behavioral", Difficulty: "medium"},
			{Text: "Walk me through how you would design a system for this role's core product.", Category: "technical", Difficulty: "hard"},
			{Text: "Tell me about a production incident you debugged and what you changed afterwards.", Category: "technical", Difficulty: "hard"},
		},
	}
}

// LoadInterviewConfig reads interview settings from a YAML file.
// A missing file yields the defaults.
func LoadInterviewConfig(filename string) (*InterviewConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultInterviewConfig(), nil
		}
		return nil, fmt.Errorf("failed to read interview config %s: %w", filename, err)
	}

	config := DefaultInterviewConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse interview config: %w", err)
	}

	if err := validateInterviewConfig(config); err != nil {
		return nil, fmt.Errorf("invalid interview config: %w", err)
	}

	return config, nil
}

// validateInterviewConfig checks interview settings for consistency
func validateInterviewConfig(config *InterviewConfig) error {
	if config.DefaultQuestionCount <= 0 {
		return fmt.Errorf("default_question_count must be greater than 0")
	}

	if config.MaxQuestionCount < config.DefaultQuestionCount {
		return fmt.Errorf("max_question_count (%d) must not be less than default_question_count (%d)",
			config.MaxQuestionCount, config.DefaultQuestionCount)
	}

	if config.EvaluationConcurrency <= 0 {
		return fmt.Errorf("evaluation_concurrency must be greater than 0")
	}

	for _, difficulty := range []string{"easy", "medium", "hard"} {
		if config.TimeLimits[difficulty] <= 0 {
			return fmt.Errorf("time_limits.%s must be greater than 0", difficulty)
		}
	}

	if len(config.QuestionBank) == 0 {
		return fmt.Errorf("question_bank must not be empty")
	}

	for i, q := range config.QuestionBank {
		if q.Text == "" {
			return fmt.Errorf("question_bank[%d] must have text", i)
		}
		if _, ok := config.TimeLimits[q.Difficulty]; !ok {
			return fmt.Errorf("question_bank[%d] has unknown difficulty %q", i, q.Difficulty)
		}
	}

	return nil
}

// TimeLimit returns the per-question time limit in seconds for a difficulty
func (c *InterviewConfig) TimeLimit(difficulty string) int {
	if limit, ok := c.TimeLimits[difficulty]; ok {
		return limit
	}
	return c.TimeLimits["medium"]
}
