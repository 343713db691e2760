package models

import (
	"fmt"
	"strings"
	"time"
)

// Role gates which routes a user may call
type Role string

const (
	RoleCandidate   Role = "candidate"
	RoleInterviewer Role = "interviewer"
	RoleCompany     Role = "company"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleCandidate, RoleInterviewer, RoleCompany:
		return true
	}
	return false
}

// IsStaff reports whether the role reviews candidates rather than being one
func (r Role) IsStaff() bool {
	return r == RoleInterviewer || r == RoleCompany
}

// User is an account holder of any role
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Difficulty grades quiz and interview questions
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Question is a multiple-choice entry of the quiz bank
type Question struct {
	ID            string     `json:"id"`
	QuestionText  string     `json:"question_text"`
	OptionA       string     `json:"option_a"`
	OptionB       string     `json:"option_b"`
	OptionC       string     `json:"option_c"`
	OptionD       string     `json:"option_d"`
	CorrectOption string     `json:"correct_option,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks that a question is complete and its correct option is one of a-d
func (q Question) Validate() error {
	if strings.TrimSpace(q.QuestionText) == "" {
		return fmt.Errorf("question_text is required")
	}
	for name, opt := range map[string]string{"option_a": q.OptionA, "option_b": q.OptionB, "option_c": q.OptionC, "option_d": q.OptionD} {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if !ValidOption(q.CorrectOption) {
		return fmt.Errorf("correct_option must be one of a, b, c, d")
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("difficulty must be easy, medium or hard")
	}
	return nil
}

// Redacted returns a copy without the correct option, for candidates
func (q Question) Redacted() Question {
	q.CorrectOption = ""
	return q
}

// ValidOption reports whether opt names one of the four choices
func ValidOption(opt string) bool {
	switch opt {
	case "a", "b", "c", "d":
		return true
	}
	return false
}

// Submission is a graded attempt at the quiz bank
type Submission struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Answers    map[string]string `json:"answers"`
	Score      int               `json:"score"`
	Total      int               `json:"total"`
	Percentage float64           `json:"percentage"`
	CreatedAt  time.Time         `json:"created_at"`
}

// JobStatus tells whether a posting accepts applications
type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
)

// Job is a posting owned by a company, with requirements used for screening
type Job struct {
	ID                   string    `json:"id"`
	CompanyID            string    `json:"company_id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Location             string    `json:"location"`
	EmploymentType       string    `json:"employment_type"`
	Skills               []string  `json:"skills"`
	RequiredExperience   []string  `json:"required_experience"`
	RequiredEducation    []string  `json:"required_education"`
	RequiredDuties       []string  `json:"required_duties"`
	NiceToHaveExperience []string  `json:"nice_to_have_experience"`
	NiceToHaveEducation  []string  `json:"nice_to_have_education"`
	NiceToHaveDuties     []string  `json:"nice_to_have_duties"`
	Status               JobStatus `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Validate checks the fields a company must provide
func (j Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(j.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if j.Status != JobOpen && j.Status != JobClosed {
		return fmt.Errorf("status must be open or closed")
	}
	return nil
}

// ApplicationStatus tracks a candidate through the hiring pipeline
type ApplicationStatus string

const (
	ApplicationApplied   ApplicationStatus = "applied"
	ApplicationScreening ApplicationStatus = "screening"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationOffer     ApplicationStatus = "offer"
	ApplicationRejected  ApplicationStatus = "rejected"
)

// Valid reports whether s is a known application status
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationApplied, ApplicationScreening, ApplicationInterview, ApplicationOffer, ApplicationRejected:
		return true
	}
	return false
}

// Application links a candidate to a job
type Application struct {
	ID            string            `json:"id"`
	JobID         string            `json:"job_id"`
	CandidateID   string            `json:"candidate_id"`
	CandidateName string            `json:"candidate_name"`
	Status        ApplicationStatus `json:"status"`
	CoverLetter   string            `json:"cover_letter,omitempty"`
	ResumeID      string            `json:"resume_id,omitempty"`
	Source        string            `json:"source"`
	Scores        *Scores           `json:"scores,omitempty"`
	Rank          int               `json:"rank,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CandidateProfile is the candidate's self-description
type CandidateProfile struct {
	UserID          string   `json:"user_id"`
	Headline        string   `json:"headline"`
	Phone           string   `json:"phone"`
	Location        string   `json:"location"`
	Skills          []string `json:"skills"`
	ExperienceYears int      `json:"experience_years"`
	Education       string   `json:"education"`
	Summary         string   `json:"summary"`
	ResumeID        string   `json:"resume_id,omitempty"`
}

// CompanyProfile describes a hiring organisation
type CompanyProfile struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Website     string `json:"website"`
	Industry    string `json:"industry"`
	Size        string `json:"size"`
	Description string `json:"description"`
}

// ParsedResume holds the structured fields extracted from resume text
type ParsedResume struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Skills          []string `json:"skills"`
	ExperienceYears int      `json:"experience_years"`
	Education       []string `json:"education"`
	Summary         string   `json:"summary"`
}

// Resume is an uploaded document with its extracted text
type Resume struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Filename  string       `json:"filename"`
	Path      string       `json:"-"`
	Text      string       `json:"text"`
	Parsed    ParsedResume `json:"parsed"`
	CreatedAt time.Time    `json:"created_at"`
}

// ApplicantDocument holds CV and cover letter content for screening
type ApplicantDocument struct {
	Name      string `json:"name"`
	CVContent string `json:"cv_content"`
	CVPath    string `json:"cv_path"`
	CLContent string `json:"cl_content"` // Cover Letter
	CLPath    string `json:"cl_path"`
}

// Scores represents evaluation scores for an applicant
type Scores struct {
	ExperienceScore      float64 `json:"experience_score"`   // 0-50
	EducationScore       float64 `json:"education_score"`    // 0-20
	DutiesScore          float64 `json:"duties_score"`       // 0-20
	CoverLetterScore     float64 `json:"cover_letter_score"` // 0-10
	TotalScore           float64 `json:"total_score"`        // 0-100
	ExperienceReasoning  string  `json:"experience_reasoning"`
	EducationReasoning   string  `json:"education_reasoning"`
	DutiesReasoning      string  `json:"duties_reasoning"`
	CoverLetterReasoning string  `json:"cover_letter_reasoning"`
}

// ApplicantResult represents the screening result for one application
type ApplicantResult struct {
	ApplicationID string  `json:"application_id"`
	Name          string  `json:"name"`
	Scores        Scores  `json:"scores"`
	Rank          int     `json:"rank"`
	InterviewID   string  `json:"interview_id,omitempty"`
	Interview     float64 `json:"interview_score,omitempty"`
}

// ScreeningReport is the ranked list of a job's applicants
type ScreeningReport struct {
	JobID      string            `json:"job_id"`
	JobTitle   string            `json:"job_title"`
	Applicants []ApplicantResult `json:"applicants"`
	Skipped    int               `json:"skipped"`
	Timestamp  string            `json:"timestamp"`
}
