package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fmuoria/interview-portal/internal/config"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/scoring"
	"github.com/fmuoria/interview-portal/internal/telemetry"
)

var tracer = telemetry.GetTracer("interview-portal/interview")

// Store persists interview sessions and reads the context they need
type Store interface {
	SaveSession(ctx context.Context, session *models.InterviewSession) error
	GetSession(ctx context.Context, id string) (*models.InterviewSession, error)
	ListActiveSessions(ctx context.Context) ([]*models.InterviewSession, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListReviews(ctx context.Context, sessionID string) ([]models.Review, error)
}

// EventType distinguishes stream events
type EventType string

const (
	EventTick      EventType = "tick"
	EventAdvanced  EventType = "advanced"
	EventCompleted EventType = "completed"
)

// Event is pushed to stream subscribers of a session
type Event struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"session_id"`
	Index         int       `json:"index"`
	TimeRemaining int       `json:"time_remaining"`
	TimedOut      bool      `json:"timed_out,omitempty"`
}

// CreateInput describes a new session
type CreateInput struct {
	CandidateID string
	JobID       string
	Mode        models.InterviewMode
	Questions   []models.InterviewQuestion
	Resume      *models.ParsedResume
	Count       int
	Difficulty  models.Difficulty
}

// SubmitInput is a candidate's answer to the current question
type SubmitInput struct {
	SessionID   string
	CandidateID string
	QuestionID  string
	Text        string
	MediaPath   string
}

type timer interface {
	Stop() bool
}

// timeoutRetryDelay spaces out timeout transitions that failed to persist
const timeoutRetryDelay = 5 * time.Second

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Manager drives interview sessions through not_started, active and completed.
// Transitions on one session are serialized; every transition is persisted.
type Manager struct {
	store     Store
	generator *QuestionGenerator
	evaluator scoring.Evaluator
	publisher events.Publisher
	cfg       *config.InterviewConfig
	logger    *zap.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func()) timer

	// ctx outlives requests and is used for timer-driven transitions
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	locks       map[string]*sessionLock
	timers      map[string]timer
	deadlines   map[string]time.Time
	subscribers map[string]map[chan Event]struct{}
}

// NewManager creates a session manager
func NewManager(store Store, generator *QuestionGenerator, evaluator scoring.Evaluator, publisher events.Publisher, cfg *config.InterviewConfig, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		generator: generator,
		evaluator: evaluator,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		ctx:         ctx,
		cancel:      cancel,
		locks:       make(map[string]*sessionLock),
		timers:      make(map[string]timer),
		deadlines:   make(map[string]time.Time),
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// GenerateQuestions builds a question set for a job without creating a session
func (m *Manager) GenerateQuestions(ctx context.Context, jobID string, resume *models.ParsedResume, count int, difficulty models.Difficulty) ([]models.InterviewQuestion, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return m.generator.Generate(ctx, GenerateRequest{
		Job:        job,
		Resume:     resume,
		Count:      count,
		Difficulty: difficulty,
	})
}

// Create stores a new not_started session for an open job
func (m *Manager) Create(ctx context.Context, in CreateInput) (*models.InterviewSession, error) {
	if in.CandidateID == "" {
		return nil, apperrors.InvalidInput("candidate is required", nil)
	}
	if in.Mode == "" {
		in.Mode = models.ModeText
	}
	if !in.Mode.Valid() {
		return nil, apperrors.InvalidInput("mode must be text, voice or video", nil)
	}

	job, err := m.store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobOpen {
		return nil, apperrors.Conflict("job is not open", nil)
	}

	questions := in.Questions
	if len(questions) == 0 {
		questions, err = m.generator.Generate(ctx, GenerateRequest{
			Job:        job,
			Resume:     in.Resume,
			Count:      in.Count,
			Difficulty: in.Difficulty,
		})
		if err != nil {
			return nil, err
		}
	} else if questions, err = m.normalizeQuestions(questions); err != nil {
		return nil, err
	}

	session := &models.InterviewSession{
		ID:          uuid.NewString(),
		CandidateID: in.CandidateID,
		JobID:       job.ID,
		Mode:        in.Mode,
		Questions:   questions,
		Answers:     []models.Answer{},
		Status:      models.SessionNotStarted,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	m.logger.Info("interview session created",
		zap.String("session_id", session.ID),
		zap.String("job_id", job.ID),
		zap.Int("questions", len(questions)))
	return session, nil
}

// normalizeQuestions validates client-supplied questions and fills ids and limits
func (m *Manager) normalizeQuestions(questions []models.InterviewQuestion) ([]models.InterviewQuestion, error) {
	if len(questions) > m.cfg.MaxQuestionCount {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d questions are allowed", m.cfg.MaxQuestionCount), nil)
	}

	out := make([]models.InterviewQuestion, len(questions))
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		q.QuestionText = strings.TrimSpace(q.QuestionText)
		if q.QuestionText == "" {
			return nil, apperrors.InvalidInput(fmt.Sprintf("question %d has no text", i+1), nil)
		}
		if q.ID == "" || seen[q.ID] {
			q.ID = uuid.NewString()
		}
		seen[q.ID] = true
		if !q.Difficulty.Valid() {
			q.Difficulty = models.DifficultyMedium
		}
		if q.Category == "" {
			q.Category = "general"
		}
		if q.TimeLimitSeconds <= 0 {
			q.TimeLimitSeconds = m.cfg.TimeLimit(string(q.Difficulty))
		}
		out[i] = q
	}
	return out, nil
}

// Start activates a session and arms the timer of its first question
func (m *Manager) Start(ctx context.Context, sessionID, candidateID string) (*models.InterviewSession, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	session, err := m.owned(ctx, sessionID, candidateID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionNotStarted {
		return nil, apperrors.Conflict("interview has already been started", nil)
	}

	now := m.now().UTC()
	session.Status = models.SessionActive
	session.StartedAt = &now
	session.CurrentIndex = 0
	m.setDeadline(session, now)

	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	m.arm(session)

	m.logger.Info("interview started", zap.String("session_id", session.ID))
	return session, nil
}

// Get returns a snapshot of the session with time_remaining computed now
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.TimeRemaining = session.Remaining(m.now())
	return session, nil
}

// Remaining returns seconds left on the current question of an armed session
func (m *Manager) Remaining(sessionID string) (int, bool) {
	m.mu.Lock()
	deadline, ok := m.deadlines[sessionID]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}

	d := deadline.Sub(m.now())
	if d <= 0 {
		return 0, true
	}
	return int((d + time.Second - 1) / time.Second), true
}

// SubmitAnswer records the answer to the current question and moves to the next
func (m *Manager) SubmitAnswer(ctx context.Context, in SubmitInput) (*models.InterviewSession, error) {
	unlock := m.lock(in.SessionID)
	defer unlock()

	session, err := m.owned(ctx, in.SessionID, in.CandidateID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, apperrors.Conflict(fmt.Sprintf("interview is %s", session.Status), nil)
	}

	current, ok := session.CurrentQuestion()
	if !ok {
		return nil, apperrors.Conflict("all questions have been answered", nil)
	}
	if in.QuestionID != current.ID {
		return nil, apperrors.InvalidInput("answer is not for the current question", nil)
	}
	if strings.TrimSpace(in.Text) == "" && in.MediaPath == "" {
		return nil, apperrors.InvalidInput("answer is required", nil)
	}

	// The current timer stays armed until the next state is stored
	now := m.now().UTC()
	session.Answers = append(session.Answers, models.Answer{
		QuestionID:  current.ID,
		Text:        strings.TrimSpace(in.Text),
		MediaPath:   in.MediaPath,
		SubmittedAt: now,
	})
	m.advance(session, now)

	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	m.arm(session)
	m.notify(Event{Type: EventAdvanced, SessionID: session.ID, Index: session.CurrentIndex, TimeRemaining: session.TimeRemaining})

	return session, nil
}

// Complete evaluates the session and returns its report
func (m *Manager) Complete(ctx context.Context, sessionID, candidateID string) (*models.InterviewReport, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	session, err := m.owned(ctx, sessionID, candidateID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionCompleted:
		return nil, apperrors.Conflict("interview is already completed", nil)
	case models.SessionNotStarted:
		return nil, apperrors.Conflict("interview has not been started", nil)
	}

	if err := m.complete(ctx, session); err != nil {
		return nil, err
	}
	return m.buildReport(ctx, session)
}

// Report returns the report of a completed session
func (m *Manager) Report(ctx context.Context, sessionID string) (*models.InterviewReport, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionCompleted {
		return nil, apperrors.Conflict("interview is not completed", nil)
	}
	return m.buildReport(ctx, session)
}

// Subscribe returns a channel of events for a session and a function that
// releases it
func (m *Manager) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	m.mu.Lock()
	if m.subscribers[sessionID] == nil {
		m.subscribers[sessionID] = make(map[chan Event]struct{})
	}
	m.subscribers[sessionID][ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers[sessionID], ch)
			if len(m.subscribers[sessionID]) == 0 {
				delete(m.subscribers, sessionID)
			}
			m.mu.Unlock()
		})
	}
}

// Restore re-arms timers of sessions that were active when the service stopped.
// Questions whose deadline passed in the meantime time out immediately.
func (m *Manager) Restore(ctx context.Context) error {
	sessions, err := m.store.ListActiveSessions(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, session := range sessions {
		if _, ok := session.CurrentQuestion(); !ok {
			continue
		}
		if session.QuestionDeadline == nil {
			m.setDeadline(session, m.now().UTC())
			if err := m.store.SaveSession(ctx, session); err != nil {
				return err
			}
		}
		m.arm(session)
		restored++
	}

	m.logger.Info("restored interview timers", zap.Int("sessions", restored))
	return nil
}

// Stop cancels all timers. Sessions stay active in storage and are
// picked up again by Restore.
func (m *Manager) Stop() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	for id := range m.deadlines {
		delete(m.deadlines, id)
	}
}

// onTimeout auto-submits an empty answer for question index of a session
func (m *Manager) onTimeout(sessionID string, index int) {
	ctx := m.ctx
	if ctx.Err() != nil {
		return
	}

	unlock := m.lock(sessionID)
	defer unlock()

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		m.logger.Error("failed to load session on timeout", zap.String("session_id", sessionID), zap.Error(err))
		if apperrors.Is(err, apperrors.ErrTypeNotFound) {
			m.disarm(sessionID)
			return
		}
		m.retryTimeout(sessionID, index)
		return
	}
	current, ok := session.CurrentQuestion()
	if session.Status != models.SessionActive || !ok || session.CurrentIndex != index {
		return
	}

	now := m.now().UTC()
	session.Answers = append(session.Answers, models.Answer{
		QuestionID:  current.ID,
		TimedOut:    true,
		SubmittedAt: now,
	})

	m.logger.Info("question timed out",
		zap.String("session_id", sessionID),
		zap.Int("index", index))

	if index == len(session.Questions)-1 {
		if err := m.complete(ctx, session); err != nil {
			m.logger.Error("failed to auto-complete interview", zap.String("session_id", sessionID), zap.Error(err))
			m.retryTimeout(sessionID, index)
		}
		return
	}

	m.advance(session, now)
	if err := m.store.SaveSession(ctx, session); err != nil {
		m.logger.Error("failed to save session on timeout", zap.String("session_id", sessionID), zap.Error(err))
		m.retryTimeout(sessionID, index)
		return
	}
	m.arm(session)
	m.notify(Event{Type: EventAdvanced, SessionID: sessionID, Index: session.CurrentIndex, TimeRemaining: session.TimeRemaining, TimedOut: true})
}

// complete marks unanswered questions skipped, evaluates every answer and
// persists the completed session. The caller holds the session lock; timers
// are left untouched when it fails.
func (m *Manager) complete(ctx context.Context, session *models.InterviewSession) error {
	ctx, span := tracer.Start(ctx, "CompleteInterview")
	defer span.End()
	span.SetAttributes(
		telemetry.String("session.id", session.ID),
		telemetry.Int("session.questions", len(session.Questions)),
	)

	now := m.now().UTC()

	for i := len(session.Answers); i < len(session.Questions); i++ {
		session.Answers = append(session.Answers, models.Answer{
			QuestionID:  session.Questions[i].ID,
			Skipped:     true,
			SubmittedAt: now,
		})
	}

	if err := m.evaluate(ctx, session); err != nil {
		span.RecordError(err)
		return err
	}

	summarize(session)
	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	session.CurrentIndex = len(session.Questions)
	session.QuestionDeadline = nil
	session.TimeRemaining = 0

	if err := m.store.SaveSession(ctx, session); err != nil {
		span.RecordError(err)
		return err
	}
	m.disarm(session.ID)

	m.logger.Info("interview completed",
		zap.String("session_id", session.ID),
		zap.Float64("overall_score", session.OverallScore))

	if err := m.publisher.Publish(ctx, events.InterviewCompletedSubject, events.InterviewCompleted{
		SessionID:    session.ID,
		CandidateID:  session.CandidateID,
		JobID:        session.JobID,
		OverallScore: session.OverallScore,
		At:           now,
	}); err != nil {
		m.logger.Warn("failed to publish interview completion", zap.String("session_id", session.ID), zap.Error(err))
	}

	m.notify(Event{Type: EventCompleted, SessionID: session.ID, Index: session.CurrentIndex})
	return nil
}

// evaluate scores all answers with bounded concurrency
func (m *Manager) evaluate(ctx context.Context, session *models.InterviewSession) error {
	var jobTitle, jobDescription string
	var skills []string
	job, err := m.store.GetJob(ctx, session.JobID)
	switch {
	case err == nil:
		jobTitle, jobDescription, skills = job.Title, job.Description, job.Skills
	case !apperrors.Is(err, apperrors.ErrTypeNotFound):
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.EvaluationConcurrency)

	for i := range session.Answers {
		g.Go(func() error {
			eval, err := m.evaluator.Evaluate(gctx, scoring.EvaluationInput{
				JobTitle:       jobTitle,
				JobDescription: jobDescription,
				Skills:         skills,
				Question:       session.Questions[i],
				Answer:         session.Answers[i],
			})
			if err != nil {
				return fmt.Errorf("evaluating question %d: %w", i+1, err)
			}
			session.Answers[i].Score = eval.Score
			session.Answers[i].Feedback = eval.Feedback
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return apperrors.Unavailable("evaluating interview answers", err)
	}
	return nil
}

func (m *Manager) buildReport(ctx context.Context, session *models.InterviewSession) (*models.InterviewReport, error) {
	report := &models.InterviewReport{
		SessionID:      session.ID,
		CandidateID:    session.CandidateID,
		JobID:          session.JobID,
		Mode:           session.Mode,
		OverallScore:   session.OverallScore,
		Feedback:       session.Feedback,
		Strengths:      nonNil(session.Strengths),
		Improvements:   nonNil(session.Improvements),
		Recommendation: session.Recommendation,
		Answers:        make([]models.AnswerReport, 0, len(session.Questions)),
		CompletedAt:    session.CompletedAt,
	}

	for i, q := range session.Questions {
		ar := models.AnswerReport{Question: q}
		if i < len(session.Answers) {
			ar.Answer = session.Answers[i]
		}
		report.Answers = append(report.Answers, ar)
	}

	if job, err := m.store.GetJob(ctx, session.JobID); err == nil {
		report.JobTitle = job.Title
	} else if !apperrors.Is(err, apperrors.ErrTypeNotFound) {
		return nil, err
	}
	if user, err := m.store.GetUser(ctx, session.CandidateID); err == nil {
		report.CandidateName = user.Name
	} else if !apperrors.Is(err, apperrors.ErrTypeNotFound) {
		return nil, err
	}

	reviews, err := m.store.ListReviews(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	report.Reviews = nonNil(reviews)

	return report, nil
}

// owned loads a session and checks that candidateID took it
func (m *Manager) owned(ctx context.Context, sessionID, candidateID string) (*models.InterviewSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CandidateID != candidateID {
		return nil, apperrors.Forbidden("interview belongs to another candidate", nil)
	}
	return session, nil
}

// advance moves to the next question and sets its deadline
func (m *Manager) advance(session *models.InterviewSession, now time.Time) {
	session.CurrentIndex++
	m.setDeadline(session, now)
}

func (m *Manager) setDeadline(session *models.InterviewSession, now time.Time) {
	q, ok := session.CurrentQuestion()
	if !ok {
		session.QuestionDeadline = nil
		session.TimeRemaining = 0
		return
	}
	deadline := now.Add(time.Duration(q.TimeLimitSeconds) * time.Second)
	session.QuestionDeadline = &deadline
	session.TimeRemaining = q.TimeLimitSeconds
}

// arm schedules the timeout of the session's current question, replacing any
// pending timer. Sessions with nothing left to time out are disarmed.
func (m *Manager) arm(session *models.InterviewSession) {
	if session.QuestionDeadline == nil || session.Status != models.SessionActive {
		m.disarm(session.ID)
		return
	}
	deadline := *session.QuestionDeadline
	id, index := session.ID, session.CurrentIndex
	delay := max(deadline.Sub(m.now()), 0)

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
	}
	m.deadlines[id] = deadline
	m.timers[id] = m.afterFunc(delay, func() { m.onTimeout(id, index) })
}

// retryTimeout schedules another attempt at a timeout transition that could
// not be stored. The deadline stays recorded so Remaining reports zero.
func (m *Manager) retryTimeout(sessionID string, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return
	}
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
	}
	m.timers[sessionID] = m.afterFunc(timeoutRetryDelay, func() { m.onTimeout(sessionID, index) })
}

func (m *Manager) disarm(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
		delete(m.timers, sessionID)
	}
	delete(m.deadlines, sessionID)
}

func (m *Manager) notify(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subscribers[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			// Slow subscribers miss events; the next tick carries the current state
		}
	}
}

// lock serializes transitions of one session. Entries are dropped once no
// caller holds or waits for them.
func (m *Manager) lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
