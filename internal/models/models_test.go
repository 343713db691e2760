package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestQuestionValidate(t *testing.T) {
	valid := Question{
		QuestionText:  "What does GOMAXPROCS control?",
		OptionA:       "Heap size",
		OptionB:       "Parallel OS threads executing Go code",
		OptionC:       "Goroutine stack size",
		OptionD:       "GC frequency",
		CorrectOption: "b",
		Difficulty:    DifficultyMedium,
	}

	tests := []struct {
		name    string
		mutate  func(q *Question)
		wantErr string
	}{
		{name: "valid", mutate: func(q *Question) {}},
		{name: "empty text", mutate: func(q *Question) { q.QuestionText = "  " }, wantErr: "question_text"},
		{name: "missing option", mutate: func(q *Question) { q.OptionC = "" }, wantErr: "option_c"},
		{name: "bad correct option", mutate: func(q *Question) { q.CorrectOption = "e" }, wantErr: "correct_option"},
		{name: "bad difficulty", mutate: func(q *Question) { q.Difficulty = "extreme" }, wantErr: "difficulty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			err := q.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestQuestionRedactedHidesAnswer(t *testing.T) {
	q := Question{ID: "q1", CorrectOption: "c"}
	data, err := json.Marshal(q.Redacted())
	if err != nil {
		t.Fatalf("Failed to marshal question: %v", err)
	}
	if strings.Contains(string(data), "correct_option") {
		t.Errorf("redacted question leaked correct_option: %s", data)
	}
	if q.CorrectOption != "c" {
		t.Error("Redacted() modified the original")
	}
}

func TestUserPasswordHashNotSerialized(t *testing.T) {
	u := User{ID: "u1", Email: "a@b.c", PasswordHash: "secret-hash"}
	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Failed to marshal user: %v", err)
	}
	if strings.Contains(string(data), "secret-hash") {
		t.Errorf("password hash leaked: %s", data)
	}
}

func TestRoleAndStatusValidation(t *testing.T) {
	if !RoleCandidate.Valid() || !RoleCompany.IsStaff() || RoleCandidate.IsStaff() {
		t.Error("unexpected role classification")
	}
	if Role("admin").Valid() {
		t.Error("admin should not be a valid role")
	}
	if !ModeVideo.Valid() || InterviewMode("telepathy").Valid() {
		t.Error("unexpected mode validation")
	}
	if !ApplicationOffer.Valid() || ApplicationStatus("ghosted").Valid() {
		t.Error("unexpected application status validation")
	}
}

func TestJobValidate(t *testing.T) {
	job := Job{Title: "Backend Engineer", Description: "Build APIs", Status: JobOpen}
	if err := job.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	job.Status = "draft"
	if err := job.Validate(); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestScoresCalculation(t *testing.T) {
	scores := Scores{
		ExperienceScore:  45.0,
		EducationScore:   18.0,
		DutiesScore:      19.0,
		CoverLetterScore: 8.0,
	}

	expectedTotal := 90.0
	actualTotal := scores.ExperienceScore + scores.EducationScore + scores.DutiesScore + scores.CoverLetterScore

	if actualTotal != expectedTotal {
		t.Errorf("Expected total score %.2f, got %.2f", expectedTotal, actualTotal)
	}
}

func TestInterviewSessionCurrentQuestionAndRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(1500 * time.Millisecond)
	s := &InterviewSession{
		Status:           SessionActive,
		Questions:        []InterviewQuestion{{ID: "q1"}, {ID: "q2"}},
		CurrentIndex:     1,
		QuestionDeadline: &deadline,
	}

	q, ok := s.CurrentQuestion()
	if !ok || q.ID != "q2" {
		t.Errorf("CurrentQuestion() = %v, %v; want q2, true", q.ID, ok)
	}
	if got := s.Remaining(now); got != 2 {
		t.Errorf("Remaining() = %d, want 2 (rounded up)", got)
	}
	if got := s.Remaining(now.Add(time.Minute)); got != 0 {
		t.Errorf("Remaining() past deadline = %d, want 0", got)
	}

	s.CurrentIndex = 2
	if _, ok := s.CurrentQuestion(); ok {
		t.Error("CurrentQuestion() past the last question should report false")
	}

	s.Status = SessionCompleted
	if got := s.Remaining(now); got != 0 {
		t.Errorf("Remaining() on completed session = %d, want 0", got)
	}
}

func TestAnswerEmpty(t *testing.T) {
	tests := []struct {
		name   string
		answer Answer
		want   bool
	}{
		{"text", Answer{Text: "I led the migration"}, false},
		{"media only", Answer{MediaPath: "uploads/a.webm"}, false},
		{"blank", Answer{}, true},
		{"skipped with text", Answer{Text: "x", Skipped: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.answer.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}
