package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/ingestion"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/storage"
)

// TestIsRateLimitError tests the rate limit error detection
func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Nil error", err: nil, expected: false},
		{name: "ResourceExhausted error", err: errors.New("rpc error: code = ResourceExhausted desc = Resource exhausted"), expected: true},
		{name: "HTTP 429 error", err: errors.New("HTTP 429: Too Many Requests"), expected: true},
		{name: "Rate limit error", err: errors.New("rate limit exceeded"), expected: true},
		{name: "Quota error", err: errors.New("quota exceeded for this project"), expected: true},
		{name: "Domain rate limit", err: apperrors.RateLimit("model throttled", nil), expected: true},
		{name: "Wrapped quota", err: apperrors.Unavailable("generating content", errors.New("Quota exceeded")), expected: true},
		{name: "Other error", err: errors.New("connection timeout"), expected: false},
		{name: "Invalid JSON error", err: errors.New("failed to parse JSON"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRateLimitError(tt.err)
			if result != tt.expected {
				t.Errorf("isRateLimitError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

// TestRateLimitConstants tests that rate limit constants are set correctly
func TestRateLimitConstants(t *testing.T) {
	if requestDelay.Seconds() != 4 {
		t.Errorf("requestDelay = %v, want 4 seconds", requestDelay)
	}

	if maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", maxRetries)
	}

	if retryBackoff.Seconds() != 10 {
		t.Errorf("retryBackoff = %v, want 10 seconds", retryBackoff)
	}
}

// TestRankResults tests the tie-breaking logic for equal total scores
func TestRankResults(t *testing.T) {
	tests := []struct {
		name     string
		results  []models.ApplicantResult
		expected []string
	}{
		{
			name: "Sort by total score (no ties)",
			results: []models.ApplicantResult{
				{Name: "Alice", Scores: models.Scores{TotalScore: 70}},
				{Name: "Bob", Scores: models.Scores{TotalScore: 90}},
				{Name: "Carol", Scores: models.Scores{TotalScore: 80}},
			},
			expected: []string{"Bob", "Carol", "Alice"},
		},
		{
			name: "Tie on total score, broken by experience score",
			results: []models.ApplicantResult{
				{Name: "Alice", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40}},
				{Name: "Bob", Scores: models.Scores{TotalScore: 80, ExperienceScore: 45}},
				{Name: "Carol", Scores: models.Scores{TotalScore: 90, ExperienceScore: 35}},
			},
			expected: []string{"Carol", "Bob", "Alice"},
		},
		{
			name: "Tie on total and experience, broken by duties score",
			results: []models.ApplicantResult{
				{Name: "Alice", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40, DutiesScore: 15}},
				{Name: "Bob", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40, DutiesScore: 18}},
			},
			expected: []string{"Bob", "Alice"},
		},
		{
			name: "Tie broken by education score",
			results: []models.ApplicantResult{
				{Name: "Alice", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40, DutiesScore: 15, EducationScore: 12}},
				{Name: "Bob", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40, DutiesScore: 15, EducationScore: 18}},
			},
			expected: []string{"Bob", "Alice"},
		},
		{
			name: "Tie broken by cover letter score",
			results: []models.ApplicantResult{
				{Name: "Alice", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40, DutiesScore: 15, EducationScore: 18, CoverLetterScore: 7}},
				{Name: "Bob", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40, DutiesScore: 15, EducationScore: 18, CoverLetterScore: 9}},
			},
			expected: []string{"Bob", "Alice"},
		},
		{
			name: "Complete tie keeps input order",
			results: []models.ApplicantResult{
				{Name: "Alice", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40}},
				{Name: "Bob", Scores: models.Scores{TotalScore: 80, ExperienceScore: 40}},
			},
			expected: []string{"Alice", "Bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]models.ApplicantResult, len(tt.results))
			copy(results, tt.results)

			rankResults(results)

			for i, name := range tt.expected {
				if results[i].Name != name {
					t.Errorf("Position %d: got %s, want %s", i, results[i].Name, name)
				}
				if results[i].Rank != i+1 {
					t.Errorf("Position %d: rank %d, want %d", i, results[i].Rank, i+1)
				}
			}
		})
	}
}

type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*models.Job
	apps     []models.Application
	resumes  map[string]*models.Resume
	sessions []*models.InterviewSession
}

func (f *fakeStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("job not found", nil)
	}
	return job, nil
}

func (f *fakeStore) ListApplications(_ context.Context, filter storage.ApplicationFilter) ([]models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Application
	for _, a := range f.apps {
		if a.JobID == filter.JobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateApplication(_ context.Context, a *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.apps {
		if existing.JobID == a.JobID && existing.CandidateID == a.CandidateID {
			return apperrors.Conflict("already applied to this job", nil)
		}
	}
	f.apps = append(f.apps, *a)
	return nil
}

func (f *fakeStore) UpdateApplication(_ context.Context, a *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.apps {
		if f.apps[i].ID == a.ID {
			f.apps[i] = *a
			return nil
		}
	}
	return apperrors.NotFound("application not found", nil)
}

func (f *fakeStore) GetResume(_ context.Context, id string) (*models.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resumes[id]
	if !ok {
		return nil, apperrors.NotFound("resume not found", nil)
	}
	return r, nil
}

func (f *fakeStore) LatestResume(_ context.Context, userID string) (*models.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.resumes {
		if r.UserID == userID {
			return r, nil
		}
	}
	return nil, apperrors.NotFound("resume not found", nil)
}

func (f *fakeStore) CreateResume(_ context.Context, r *models.Resume) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes[r.ID] = r
	return nil
}

func (f *fakeStore) ListSessions(_ context.Context, filter storage.SessionFilter) ([]*models.InterviewSession, error) {
	var out []*models.InterviewSession
	for _, s := range f.sessions {
		if s.Status == filter.Status && len(filter.JobIDs) == 1 && s.JobID == filter.JobIDs[0] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) app(id string) models.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.ID == id {
			return a
		}
	}
	return models.Application{}
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() {}

func newFixture(t *testing.T) (*fakeStore, *recordingPublisher) {
	t.Helper()
	store := &fakeStore{
		jobs: map[string]*models.Job{
			"job-1": {
				ID:                 "job-1",
				CompanyID:          "company-1",
				Title:              "Backend Engineer",
				Skills:             []string{"Go", "PostgreSQL"},
				RequiredExperience: []string{"backend services"},
				Status:             models.JobOpen,
			},
		},
		resumes: map[string]*models.Resume{
			"r-strong": {ID: "r-strong", UserID: "cand-a", Text: "Five years building backend services in Go with PostgreSQL."},
			"r-weak":   {ID: "r-weak", UserID: "cand-b", Text: "I enjoy painting landscapes and hiking."},
		},
		apps: []models.Application{
			{ID: "app-b", JobID: "job-1", CandidateID: "cand-b", CandidateName: "Brian", Status: models.ApplicationApplied, ResumeID: "r-weak"},
			{ID: "app-a", JobID: "job-1", CandidateID: "cand-a", CandidateName: "Amina", Status: models.ApplicationInterview},
			{ID: "app-c", JobID: "job-1", CandidateID: "cand-c", CandidateName: "Chao", Status: models.ApplicationApplied},
		},
		sessions: []*models.InterviewSession{
			{ID: "s-old", CandidateID: "cand-a", JobID: "job-1", Status: models.SessionCompleted, OverallScore: 61.5},
			{ID: "s-best", CandidateID: "cand-a", JobID: "job-1", Status: models.SessionCompleted, OverallScore: 77.25},
			{ID: "s-live", CandidateID: "cand-b", JobID: "job-1", Status: models.SessionActive, OverallScore: 0},
		},
	}
	return store, &recordingPublisher{}
}

func TestScreenJob(t *testing.T) {
	store, publisher := newFixture(t)
	s := NewScreener(store, nil, ingestion.NewFileHandler(t.TempDir()), nil, publisher, zap.NewNop())

	report, err := s.ScreenJob(context.Background(), "job-1", "company-1")
	require.NoError(t, err)

	assert.Equal(t, "Backend Engineer", report.JobTitle)
	assert.Equal(t, 1, report.Skipped, "applicant without a resume is skipped")
	require.Len(t, report.Applicants, 2)

	top := report.Applicants[0]
	assert.Equal(t, "Amina", top.Name)
	assert.Equal(t, 1, top.Rank)
	assert.Greater(t, top.Scores.TotalScore, report.Applicants[1].Scores.TotalScore)
	assert.Equal(t, "s-best", top.InterviewID)
	assert.Equal(t, 77.25, top.Interview)
	assert.Empty(t, report.Applicants[1].InterviewID, "active sessions are not reported")

	a := store.app("app-a")
	require.NotNil(t, a.Scores)
	assert.Equal(t, 1, a.Rank)
	assert.Equal(t, models.ApplicationInterview, a.Status, "later stages are left alone")

	b := store.app("app-b")
	assert.Equal(t, 2, b.Rank)
	assert.Equal(t, models.ApplicationScreening, b.Status)

	assert.Nil(t, store.app("app-c").Scores)
	assert.Equal(t, []string{events.ApplicationStatusChangedSubject}, publisher.subjects)

	persisted, err := s.Report(context.Background(), "job-1", "company-1")
	require.NoError(t, err)
	require.Len(t, persisted.Applicants, 2)
	assert.Equal(t, "Amina", persisted.Applicants[0].Name)
	assert.Equal(t, 77.25, persisted.Applicants[0].Interview)
	assert.Equal(t, 1, persisted.Skipped)
}

func TestScreenJob_OtherCompany(t *testing.T) {
	store, publisher := newFixture(t)
	s := NewScreener(store, nil, ingestion.NewFileHandler(t.TempDir()), nil, publisher, zap.NewNop())

	_, err := s.ScreenJob(context.Background(), "job-1", "company-2")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeForbidden))

	_, err = s.ScreenJob(context.Background(), "missing", "company-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))
}

func TestScreenJob_AlreadyRunning(t *testing.T) {
	store, publisher := newFixture(t)
	s := NewScreener(store, nil, ingestion.NewFileHandler(t.TempDir()), nil, publisher, zap.NewNop())

	require.True(t, s.begin("job-1"))
	_, err := s.ScreenJob(context.Background(), "job-1", "company-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))
	s.end("job-1")
}

type throttledScorer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *throttledScorer) ScoreApplicant(context.Context, models.ApplicantDocument, models.Job) (models.Scores, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return models.Scores{}, s.err
}

func TestScore_RetriesThenFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{name: "rate limited", err: errors.New("rpc error: code = ResourceExhausted"), wantCalls: maxRetries + 1},
		{name: "malformed response", err: errors.New("no JSON found in response"), wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, publisher := newFixture(t)
			scorer := &throttledScorer{err: tt.err}
			s := NewScreener(store, scorer, ingestion.NewFileHandler(t.TempDir()), nil, publisher, zap.NewNop())
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			s.backoff = time.Millisecond

			scores, err := s.score(context.Background(), models.ApplicantDocument{
				Name:      "Amina",
				CVContent: "Backend services in Go",
			}, *store.jobs["job-1"])
			require.NoError(t, err)

			assert.Equal(t, tt.wantCalls, scorer.calls)
			assert.Greater(t, scores.TotalScore, 0.0, "keyword fallback scores the applicant")
		})
	}
}

type fakeFetcher struct {
	files map[string]string
}

func (f fakeFetcher) FetchAttachments(_ context.Context, _ string, destDir string) ([]string, error) {
	var saved []string
	for name, content := range f.files {
		path := filepath.Join(destDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, err
		}
		saved = append(saved, path)
	}
	return saved, nil
}

func TestImportFromGmail(t *testing.T) {
	store, publisher := newFixture(t)
	fetcher := fakeFetcher{files: map[string]string{
		"WanjiruKamau_CV.txt":            "Wanjiru Kamau\nBackend services in Go and PostgreSQL.",
		"WanjiruKamau_CoverLetter.txt":   "I would love to join.",
		"OtienoOdhiambo_CoverLetter.txt": "No CV attached.",
	}}
	s := NewScreener(store, nil, ingestion.NewFileHandler(t.TempDir()), fetcher, publisher, zap.NewNop())
	ctx := context.Background()

	result, err := s.ImportFromGmail(ctx, "job-1", "company-1", "Backend Engineer application")
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Imported: 1, Skipped: 1}, *result)

	apps, err := store.ListApplications(ctx, storage.ApplicationFilter{JobID: "job-1"})
	require.NoError(t, err)
	require.Len(t, apps, 4)
	imported := apps[3]
	assert.Equal(t, "gmail:WanjiruKamau", imported.CandidateID)
	assert.Equal(t, "gmail", imported.Source)
	assert.Equal(t, "I would love to join.", imported.CoverLetter)
	assert.Equal(t, models.ApplicationApplied, imported.Status)

	resume, err := store.GetResume(ctx, imported.ResumeID)
	require.NoError(t, err)
	assert.Contains(t, resume.Text, "PostgreSQL")
	assert.Equal(t, "WanjiruKamau_CV.txt", resume.Filename)

	again, err := s.ImportFromGmail(ctx, "job-1", "company-1", "Backend Engineer application")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Existing)
	assert.Zero(t, again.Imported)
	imports := 0
	for _, r := range store.resumes {
		if r.UserID == "gmail:WanjiruKamau" {
			imports++
		}
	}
	assert.Equal(t, 1, imports, "re-import must not store another resume")

	assert.Equal(t, []string{events.ApplicationSubmittedSubject}, publisher.subjects)
}

func TestImportFromGmail_Errors(t *testing.T) {
	store, publisher := newFixture(t)
	ctx := context.Background()

	s := NewScreener(store, nil, ingestion.NewFileHandler(t.TempDir()), nil, publisher, zap.NewNop())
	_, err := s.ImportFromGmail(ctx, "job-1", "company-1", "subject")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeUnavailable))

	s = NewScreener(store, nil, ingestion.NewFileHandler(t.TempDir()), fakeFetcher{}, publisher, zap.NewNop())
	_, err = s.ImportFromGmail(ctx, "job-1", "company-1", "  ")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeInvalidInput))

	_, err = s.ImportFromGmail(ctx, "job-1", "company-2", "subject")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeForbidden))
}
