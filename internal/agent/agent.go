package agent

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/ingestion"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/scoring"
	"github.com/fmuoria/interview-portal/internal/storage"
)

const (
	// requestDelay spaces LLM scoring calls to stay under the model's quota
	requestDelay = 4 * time.Second
	maxRetries   = 3
	retryBackoff = 10 * time.Second

	screeningConcurrency = 2
	gmailSource          = "gmail"
)

// Store is the persistence the screener needs
type Store interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListApplications(ctx context.Context, f storage.ApplicationFilter) ([]models.Application, error)
	CreateApplication(ctx context.Context, a *models.Application) error
	UpdateApplication(ctx context.Context, a *models.Application) error
	GetResume(ctx context.Context, id string) (*models.Resume, error)
	LatestResume(ctx context.Context, userID string) (*models.Resume, error)
	CreateResume(ctx context.Context, r *models.Resume) error
	ListSessions(ctx context.Context, f storage.SessionFilter) ([]*models.InterviewSession, error)
}

// AttachmentFetcher downloads emailed application documents
type AttachmentFetcher interface {
	FetchAttachments(ctx context.Context, subject, destDir string) ([]string, error)
}

// ImportResult summarizes a mailbox import
type ImportResult struct {
	Imported int `json:"imported"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

// Screener scores and ranks the applicants of a job
type Screener struct {
	store       Store
	scorer      scoring.ApplicantScorer
	fallback    scoring.ApplicantScorer
	files       *ingestion.FileHandler
	gmail       AttachmentFetcher
	publisher   events.Publisher
	logger      *zap.Logger
	limiter     *rate.Limiter
	backoff     time.Duration
	concurrency int
	now         func() time.Time

	// one screening run per job at a time
	mu      sync.Mutex
	running map[string]bool
}

// NewScreener creates a screener. scorer may be nil, in which case keyword
// scoring is used for every applicant; gmail may be nil when no mailbox is configured.
func NewScreener(store Store, scorer scoring.ApplicantScorer, files *ingestion.FileHandler, gmail AttachmentFetcher, publisher events.Publisher, logger *zap.Logger) *Screener {
	fallback := scoring.NewKeywordScorer()
	s := &Screener{
		store:       store,
		scorer:      scorer,
		fallback:    fallback,
		files:       files,
		gmail:       gmail,
		publisher:   publisher,
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Every(requestDelay), 1),
		backoff:     retryBackoff,
		concurrency: screeningConcurrency,
		now:         time.Now,
		running:     make(map[string]bool),
	}
	if scorer == nil {
		s.scorer = fallback
		s.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return s
}

type candidate struct {
	app models.Application
	doc models.ApplicantDocument
}

// ScreenJob scores every application of a company's job, ranks them and
// persists scores and ranks on the applications
func (s *Screener) ScreenJob(ctx context.Context, jobID, companyID string) (*models.ScreeningReport, error) {
	job, err := s.ownedJob(ctx, jobID, companyID)
	if err != nil {
		return nil, err
	}

	if !s.begin(jobID) {
		return nil, apperrors.Conflict("screening is already running for this job", nil)
	}
	defer s.end(jobID)

	apps, err := s.store.ListApplications(ctx, storage.ApplicationFilter{JobID: jobID})
	if err != nil {
		return nil, err
	}

	candidates, skipped, err := s.collect(ctx, apps)
	if err != nil {
		return nil, err
	}
	s.logger.Info("screening applicants",
		zap.String("job_id", jobID),
		zap.Int("applicants", len(candidates)),
		zap.Int("skipped", skipped))

	results := make([]models.ApplicantResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			scores, err := s.score(gctx, c.doc, *job)
			if err != nil {
				return err
			}
			results[i] = models.ApplicantResult{
				ApplicationID: c.app.ID,
				Name:          c.doc.Name,
				Scores:        scores,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rankResults(results)

	byID := make(map[string]models.Application, len(candidates))
	for _, c := range candidates {
		byID[c.app.ID] = c.app
	}
	for _, r := range results {
		app := byID[r.ApplicationID]
		scores := r.Scores
		app.Scores = &scores
		app.Rank = r.Rank
		from := app.Status
		if app.Status == models.ApplicationApplied {
			app.Status = models.ApplicationScreening
		}
		if err := s.store.UpdateApplication(ctx, &app); err != nil {
			return nil, err
		}
		if from != app.Status {
			s.publish(ctx, events.ApplicationStatusChangedSubject, events.ApplicationStatusChanged{
				ApplicationID: app.ID,
				JobID:         app.JobID,
				From:          string(from),
				To:            string(app.Status),
				At:            s.now().UTC(),
			})
		}
	}

	if err := s.attachInterviews(ctx, jobID, candidates, results); err != nil {
		return nil, err
	}

	return &models.ScreeningReport{
		JobID:      job.ID,
		JobTitle:   job.Title,
		Applicants: results,
		Skipped:    skipped,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	}, nil
}

// Report returns the ranking persisted by the last screening run without rescoring
func (s *Screener) Report(ctx context.Context, jobID, companyID string) (*models.ScreeningReport, error) {
	job, err := s.ownedJob(ctx, jobID, companyID)
	if err != nil {
		return nil, err
	}

	apps, err := s.store.ListApplications(ctx, storage.ApplicationFilter{JobID: jobID})
	if err != nil {
		return nil, err
	}

	var results []models.ApplicantResult
	var candidates []candidate
	skipped := 0
	for _, app := range apps {
		if app.Scores == nil {
			skipped++
			continue
		}
		results = append(results, models.ApplicantResult{
			ApplicationID: app.ID,
			Name:          app.CandidateName,
			Scores:        *app.Scores,
			Rank:          app.Rank,
		})
		candidates = append(candidates, candidate{app: app})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })

	if err := s.attachInterviews(ctx, jobID, candidates, results); err != nil {
		return nil, err
	}

	return &models.ScreeningReport{
		JobID:      job.ID,
		JobTitle:   job.Title,
		Applicants: nonNil(results),
		Skipped:    skipped,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	}, nil
}

// ImportFromGmail downloads applications emailed with subject and files them
// against the job. Senders become applicants identified by name.
func (s *Screener) ImportFromGmail(ctx context.Context, jobID, companyID, subject string) (*ImportResult, error) {
	if s.gmail == nil {
		return nil, apperrors.Unavailable("gmail import is not configured", nil)
	}
	if strings.TrimSpace(subject) == "" {
		return nil, apperrors.InvalidInput("subject is required", nil)
	}
	if _, err := s.ownedJob(ctx, jobID, companyID); err != nil {
		return nil, err
	}

	if err := s.files.ClearDir("imports", jobID); err != nil {
		return nil, apperrors.Internal("preparing import directory", err)
	}
	dir := s.files.Dir("imports", jobID)

	saved, err := s.gmail.FetchAttachments(ctx, subject, dir)
	if err != nil {
		return nil, apperrors.Unavailable("fetching gmail attachments", err)
	}
	s.logger.Info("fetched gmail attachments", zap.String("job_id", jobID), zap.Int("files", len(saved)))

	docs, skipped, err := s.files.LoadDocuments(ctx, dir)
	if err != nil {
		return nil, apperrors.Internal("loading imported documents", err)
	}

	result := &ImportResult{Skipped: skipped}
	for _, doc := range docs {
		candidateID := gmailSource + ":" + doc.Name
		resume := &models.Resume{
			ID:       uuid.NewString(),
			UserID:   candidateID,
			Filename: filepath.Base(doc.CVPath),
			Path:     doc.CVPath,
			Text:     doc.CVContent,
			Parsed:   ingestion.ParseResumeText(doc.CVContent, nil),
		}

		// The application row decides whether the sender is new; the resume
		// is only stored for new applicants
		app := &models.Application{
			ID:            uuid.NewString(),
			JobID:         jobID,
			CandidateID:   candidateID,
			CandidateName: doc.Name,
			Status:        models.ApplicationApplied,
			CoverLetter:   doc.CLContent,
			ResumeID:      resume.ID,
			Source:        gmailSource,
		}
		err := s.store.CreateApplication(ctx, app)
		switch {
		case apperrors.Is(err, apperrors.ErrTypeConflict):
			result.Existing++
			continue
		case err != nil:
			return nil, err
		}
		if err := s.store.CreateResume(ctx, resume); err != nil {
			return nil, err
		}

		result.Imported++
		s.publish(ctx, events.ApplicationSubmittedSubject, events.ApplicationSubmitted{
			ApplicationID: app.ID,
			JobID:         jobID,
			CandidateID:   candidateID,
			Source:        gmailSource,
			At:            s.now().UTC(),
		})
	}

	return result, nil
}

func (s *Screener) ownedJob(ctx context.Context, jobID, companyID string) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CompanyID != companyID {
		return nil, apperrors.Forbidden("job belongs to another company", nil)
	}
	return job, nil
}

// collect loads resume text for each application; applications without one are skipped
func (s *Screener) collect(ctx context.Context, apps []models.Application) ([]candidate, int, error) {
	var out []candidate
	skipped := 0
	for _, app := range apps {
		resume, err := s.resumeFor(ctx, app)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrTypeNotFound) {
				skipped++
				continue
			}
			return nil, 0, err
		}
		if strings.TrimSpace(resume.Text) == "" {
			skipped++
			continue
		}

		name := app.CandidateName
		if name == "" {
			name = resume.Parsed.Name
		}
		out = append(out, candidate{
			app: app,
			doc: models.ApplicantDocument{
				Name:      name,
				CVContent: resume.Text,
				CVPath:    resume.Path,
				CLContent: app.CoverLetter,
			},
		})
	}
	return out, skipped, nil
}

func (s *Screener) resumeFor(ctx context.Context, app models.Application) (*models.Resume, error) {
	if app.ResumeID != "" {
		return s.store.GetResume(ctx, app.ResumeID)
	}
	return s.store.LatestResume(ctx, app.CandidateID)
}

// score rates one applicant with the primary scorer, retrying on rate limits
// and falling back to keyword scoring
func (s *Screener) score(ctx context.Context, doc models.ApplicantDocument, job models.Job) (models.Scores, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return models.Scores{}, err
		}

		scores, err := s.scorer.ScoreApplicant(ctx, doc, job)
		if err == nil {
			return scores, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return models.Scores{}, ctx.Err()
		}
		if !isRateLimitError(err) || attempt == maxRetries {
			break
		}

		wait := s.backoff * time.Duration(attempt+1)
		s.logger.Warn("scoring rate limited, retrying",
			zap.String("applicant", doc.Name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return models.Scores{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	s.logger.Warn("scoring failed, using keyword scorer",
		zap.String("applicant", doc.Name),
		zap.Error(lastErr))
	return s.fallback.ScoreApplicant(ctx, doc, job)
}

// attachInterviews adds the best completed interview score of each applicant
func (s *Screener) attachInterviews(ctx context.Context, jobID string, candidates []candidate, results []models.ApplicantResult) error {
	sessions, err := s.store.ListSessions(ctx, storage.SessionFilter{
		JobIDs: []string{jobID},
		Status: models.SessionCompleted,
	})
	if err != nil {
		return err
	}

	best := make(map[string]*models.InterviewSession)
	for _, session := range sessions {
		if cur, ok := best[session.CandidateID]; !ok || session.OverallScore > cur.OverallScore {
			best[session.CandidateID] = session
		}
	}

	candidateOf := make(map[string]string, len(candidates))
	for _, c := range candidates {
		candidateOf[c.app.ID] = c.app.CandidateID
	}
	for i := range results {
		if session, ok := best[candidateOf[results[i].ApplicationID]]; ok {
			results[i].InterviewID = session.ID
			results[i].Interview = session.OverallScore
		}
	}
	return nil
}

func (s *Screener) publish(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *Screener) begin(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[jobID] {
		return false
	}
	s.running[jobID] = true
	return true
}

func (s *Screener) end(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, jobID)
}

// rankResults sorts by total score with tie-breakers experience, duties,
// education and cover letter, then assigns ranks from 1
func rankResults(results []models.ApplicantResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Scores, results[j].Scores
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.ExperienceScore != b.ExperienceScore {
			return a.ExperienceScore > b.ExperienceScore
		}
		if a.DutiesScore != b.DutiesScore {
			return a.DutiesScore > b.DutiesScore
		}
		if a.EducationScore != b.EducationScore {
			return a.EducationScore > b.EducationScore
		}
		return a.CoverLetterScore > b.CoverLetterScore
	})

	for i := range results {
		results[i].Rank = i + 1
	}
}

// isRateLimitError reports whether err is a quota or throttling error from the model API
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.Is(err, apperrors.ErrTypeRateLimit) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"resourceexhausted", "resource exhausted", "429", "rate limit", "quota"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
