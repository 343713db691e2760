package models

import (
	"time"
)

// InterviewMode is how the candidate answers
type InterviewMode string

const (
	ModeText  InterviewMode = "text"
	ModeVoice InterviewMode = "voice"
	ModeVideo InterviewMode = "video"
)

// Valid reports whether m is a known interview mode
func (m InterviewMode) Valid() bool {
	switch m {
	case ModeText, ModeVoice, ModeVideo:
		return true
	}
	return false
}

// SessionStatus only moves forward: not_started, active, completed
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionActive     SessionStatus = "active"
	SessionCompleted  SessionStatus = "completed"
)

// InterviewQuestion is one open-ended question of an AI interview
type InterviewQuestion struct {
	ID               string     `json:"id"`
	QuestionText     string     `json:"question_text"`
	Category         string     `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
}

// Answer is the recorded response to an InterviewQuestion
type Answer struct {
	QuestionID  string    `json:"question_id"`
	Text        string    `json:"text"`
	MediaPath   string    `json:"media_path,omitempty"`
	TimedOut    bool      `json:"timed_out"`
	Skipped     bool      `json:"skipped"`
	SubmittedAt time.Time `json:"submitted_at"`
	Score       float64   `json:"score"`
	Feedback    string    `json:"feedback,omitempty"`
}

// Empty reports whether the answer carries no content to evaluate
func (a Answer) Empty() bool {
	return a.Skipped || (a.Text == "" && a.MediaPath == "")
}

// InterviewSession is a candidate's run through a question set
type InterviewSession struct {
	ID               string              `json:"id"`
	CandidateID      string              `json:"candidate_id"`
	JobID            string              `json:"job_id"`
	Mode             InterviewMode       `json:"mode"`
	Questions        []InterviewQuestion `json:"questions"`
	Answers          []Answer            `json:"answers"`
	CurrentIndex     int                 `json:"current_index"`
	TimeRemaining    int                 `json:"time_remaining"`
	Status           SessionStatus       `json:"status"`
	QuestionDeadline *time.Time          `json:"question_deadline,omitempty"`
	OverallScore     float64             `json:"overall_score"`
	Feedback         string              `json:"feedback,omitempty"`
	Strengths        []string            `json:"strengths,omitempty"`
	Improvements     []string            `json:"improvements,omitempty"`
	Recommendation   string              `json:"recommendation,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	StartedAt        *time.Time          `json:"started_at,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}

// CurrentQuestion returns the question awaiting an answer, if any
func (s *InterviewSession) CurrentQuestion() (InterviewQuestion, bool) {
	if s.Status != SessionActive || s.CurrentIndex >= len(s.Questions) {
		return InterviewQuestion{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Remaining returns whole seconds left on the current question at now
func (s *InterviewSession) Remaining(now time.Time) int {
	if s.QuestionDeadline == nil || s.Status != SessionActive {
		return 0
	}
	d := s.QuestionDeadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Review is an interviewer's assessment of a completed session
type Review struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	ReviewerID string    `json:"reviewer_id"`
	Rating     int       `json:"rating"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnswerReport pairs a question with its evaluated answer
type AnswerReport struct {
	Question InterviewQuestion `json:"question"`
	Answer   Answer            `json:"answer"`
}

// InterviewReport is the score and feedback payload of a completed session
type InterviewReport struct {
	SessionID      string         `json:"session_id"`
	CandidateID    string         `json:"candidate_id"`
	CandidateName  string         `json:"candidate_name"`
	JobID          string         `json:"job_id"`
	JobTitle       string         `json:"job_title"`
	Mode           InterviewMode  `json:"mode"`
	OverallScore   float64        `json:"overall_score"`
	Feedback       string         `json:"feedback"`
	Strengths      []string       `json:"strengths"`
	Improvements   []string       `json:"improvements"`
	Recommendation string         `json:"recommendation"`
	Answers        []AnswerReport `json:"answers"`
	Reviews        []Review       `json:"reviews"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}
