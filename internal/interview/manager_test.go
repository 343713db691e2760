package interview

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/config"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/scoring"
)

// memStore keeps sessions as JSON so callers never share pointers with it
type memStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	jobs     map[string]*models.Job
	users    map[string]*models.User
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string][]byte),
		jobs:     make(map[string]*models.Job),
		users:    make(map[string]*models.User),
	}
}

func (s *memStore) SaveSession(_ context.Context, session *models.InterviewSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[session.ID] = data
	return nil
}

func (s *memStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *memStore) GetSession(_ context.Context, id string) (*models.InterviewSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("interview session not found", nil)
	}
	var session models.InterviewSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *memStore) ListActiveSessions(ctx context.Context) ([]*models.InterviewSession, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var active []*models.InterviewSession
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if session.Status == models.SessionActive {
			active = append(active, session)
		}
	}
	return active, nil
}

func (s *memStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("job not found", nil)
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found", nil)
	}
	return user, nil
}

func (s *memStore) ListReviews(context.Context, string) ([]models.Review, error) {
	return nil, nil
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu  sync.Mutex
	all []*fakeTimer
}

func (ft *fakeTimers) afterFunc(d time.Duration, f func()) timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.all = append(ft.all, t)
	return t
}

func (ft *fakeTimers) last() *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.all[len(ft.all)-1]
}

func (ft *fakeTimers) count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.all)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) Close() {}

type harness struct {
	m         *Manager
	store     *memStore
	timers    *fakeTimers
	publisher *recordingPublisher
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.DefaultInterviewConfig()
	store := newMemStore()
	store.jobs["job-1"] = testJob()
	closed := testJob()
	closed.ID, closed.Status = "job-closed", models.JobClosed
	store.jobs[closed.ID] = closed
	store.users["cand-1"] = &models.User{ID: "cand-1", Name: "Jane Wanjiru", Role: models.RoleCandidate}

	h := &harness{
		store:     store,
		timers:    &fakeTimers{},
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	h.m = NewManager(store,
		NewQuestionGenerator(nil, cfg, zap.NewNop()),
		scoring.NewRandomEvaluator(42),
		h.publisher, cfg, zap.NewNop())
	h.m.now = func() time.Time { return h.now }
	h.m.afterFunc = h.timers.afterFunc
	t.Cleanup(h.m.Stop)
	return h
}

func (h *harness) started(t *testing.T, n int) *models.InterviewSession {
	t.Helper()
	questions := make([]models.InterviewQuestion, n)
	for i := range questions {
		questions[i] = models.InterviewQuestion{QuestionText: "Describe a system you designed.", Difficulty: models.DifficultyMedium}
	}
	session, err := h.m.Create(context.Background(), CreateInput{
		CandidateID: "cand-1",
		JobID:       "job-1",
		Mode:        models.ModeText,
		Questions:   questions,
	})
	require.NoError(t, err)
	session, err = h.m.Start(context.Background(), session.ID, "cand-1")
	require.NoError(t, err)
	return session
}

func TestCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.m.Create(ctx, CreateInput{
		CandidateID: "cand-1",
		JobID:       "job-1",
		Count:       3,
		Difficulty:  models.DifficultyEasy,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionNotStarted, session.Status)
	assert.Equal(t, models.ModeText, session.Mode)
	assert.Len(t, session.Questions, 3)
	assert.Empty(t, session.Answers)
	assert.Nil(t, session.QuestionDeadline)
	assert.Zero(t, h.timers.count(), "not_started sessions have no timer")

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Questions, stored.Questions)
}

func TestCreate_Errors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		in   CreateInput
		want apperrors.ErrorType
	}{
		{name: "unknown job", in: CreateInput{CandidateID: "cand-1", JobID: "nope"}, want: apperrors.ErrTypeNotFound},
		{name: "closed job", in: CreateInput{CandidateID: "cand-1", JobID: "job-closed"}, want: apperrors.ErrTypeConflict},
		{name: "bad mode", in: CreateInput{CandidateID: "cand-1", JobID: "job-1", Mode: "telepathy"}, want: apperrors.ErrTypeInvalidInput},
		{name: "no candidate", in: CreateInput{JobID: "job-1"}, want: apperrors.ErrTypeInvalidInput},
		{
			name: "blank supplied question",
			in:   CreateInput{CandidateID: "cand-1", JobID: "job-1", Questions: []models.InterviewQuestion{{QuestionText: " "}}},
			want: apperrors.ErrTypeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.m.Create(context.Background(), tt.in)
			assert.Equal(t, tt.want, apperrors.TypeOf(err), "got %v", err)
		})
	}
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session := h.started(t, 2)

	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, 0, session.CurrentIndex)
	require.NotNil(t, session.QuestionDeadline)
	assert.Equal(t, h.now.Add(120*time.Second), *session.QuestionDeadline)
	assert.Equal(t, 120, session.TimeRemaining)

	require.Equal(t, 1, h.timers.count())
	assert.Equal(t, 120*time.Second, h.timers.last().d)

	_, err := h.m.Start(ctx, session.ID, "cand-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))
}

func TestStart_OtherCandidate(t *testing.T) {
	h := newHarness(t)

	session, err := h.m.Create(context.Background(), CreateInput{CandidateID: "cand-1", JobID: "job-1", Count: 1})
	require.NoError(t, err)

	_, err = h.m.Start(context.Background(), session.ID, "cand-2")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeForbidden))
}

func TestRemaining(t *testing.T) {
	h := newHarness(t)
	session := h.started(t, 1)

	h.now = h.now.Add(30*time.Second + 500*time.Millisecond)
	remaining, ok := h.m.Remaining(session.ID)
	require.True(t, ok)
	assert.Equal(t, 90, remaining)

	snapshot, err := h.m.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, snapshot.TimeRemaining)

	_, ok = h.m.Remaining("unknown")
	assert.False(t, ok)
}

func TestSubmitAnswer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 2)
	first := h.timers.last()

	_, err := h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[1].ID,
		Text:        "Skipping ahead",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeInvalidInput), "out of order submit: %v", err)

	_, err = h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[0].ID,
		Text:        "   ",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeInvalidInput), "empty answer: %v", err)

	h.now = h.now.Add(10 * time.Second)
	updated, err := h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[0].ID,
		Text:        "I split the monolith into services behind a queue.",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.CurrentIndex)
	require.Len(t, updated.Answers, 1)
	assert.Equal(t, session.Questions[0].ID, updated.Answers[0].QuestionID)
	assert.False(t, updated.Answers[0].TimedOut)
	assert.Equal(t, h.now.Add(120*time.Second), *updated.QuestionDeadline)

	assert.True(t, first.stopped, "previous question timer must be stopped")
	assert.Equal(t, 2, h.timers.count())

	// Answer the last question; the session waits for Complete
	updated, err = h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[1].ID,
		MediaPath:   "uploads/media/s/q2.webm",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, updated.Status)
	assert.Nil(t, updated.QuestionDeadline)

	_, err = h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[1].ID,
		Text:        "again",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))
}

func TestSubmitAnswer_NotActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.m.Create(ctx, CreateInput{CandidateID: "cand-1", JobID: "job-1", Count: 1})
	require.NoError(t, err)

	_, err = h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[0].ID,
		Text:        "early",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))
}

func TestTimeout_AdvancesWithTimedOutAnswer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 2)

	stream, cancel := h.m.Subscribe(session.ID)
	defer cancel()

	h.now = h.now.Add(120 * time.Second)
	h.timers.last().f()

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status)
	assert.Equal(t, 1, stored.CurrentIndex)
	require.Len(t, stored.Answers, 1)
	assert.True(t, stored.Answers[0].TimedOut)
	assert.Empty(t, stored.Answers[0].Text)
	assert.True(t, h.now.Add(120*time.Second).Equal(*stored.QuestionDeadline))

	select {
	case ev := <-stream:
		assert.Equal(t, EventAdvanced, ev.Type)
		assert.Equal(t, 1, ev.Index)
		assert.True(t, ev.TimedOut)
	default:
		t.Fatal("expected an advanced event")
	}
}

func TestTimeout_StaleTimerIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 2)
	stale := h.timers.last()

	_, err := h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[0].ID,
		Text:        "on time",
	})
	require.NoError(t, err)

	stale.f()

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentIndex)
	assert.Len(t, stored.Answers, 1)
	assert.False(t, stored.Answers[0].TimedOut)
}

func TestTimeout_LastQuestionCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 1)

	stream, cancel := h.m.Subscribe(session.ID)
	defer cancel()

	h.timers.last().f()

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, stored.Status)
	require.Len(t, stored.Answers, 1)
	assert.True(t, stored.Answers[0].TimedOut)
	assert.Zero(t, stored.Answers[0].Score)
	assert.Zero(t, stored.OverallScore)
	assert.Equal(t, "Not recommended", stored.Recommendation)
	assert.NotNil(t, stored.CompletedAt)

	assert.Equal(t, []string{events.InterviewCompletedSubject}, h.publisher.subjects)

	select {
	case ev := <-stream:
		assert.Equal(t, EventCompleted, ev.Type)
	default:
		t.Fatal("expected a completed event")
	}

	_, ok := h.m.Remaining(session.ID)
	assert.False(t, ok)
}

func TestComplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 3)

	for i := 0; i < 2; i++ {
		_, err := h.m.SubmitAnswer(ctx, SubmitInput{
			SessionID:   session.ID,
			CandidateID: "cand-1",
			QuestionID:  session.Questions[i].ID,
			Text:        "A detailed answer with a concrete example.",
		})
		require.NoError(t, err)
	}

	_, err := h.m.Complete(ctx, session.ID, "cand-2")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeForbidden))

	report, err := h.m.Complete(ctx, session.ID, "cand-1")
	require.NoError(t, err)

	require.Len(t, report.Answers, 3)
	for _, ar := range report.Answers[:2] {
		assert.GreaterOrEqual(t, ar.Answer.Score, 60.0)
		assert.Less(t, ar.Answer.Score, 90.0)
		assert.NotEmpty(t, ar.Answer.Feedback)
	}
	assert.True(t, report.Answers[2].Answer.Skipped)
	assert.Zero(t, report.Answers[2].Answer.Score)

	want := math.Round((report.Answers[0].Answer.Score+report.Answers[1].Answer.Score)/3*100) / 100
	assert.Equal(t, want, report.OverallScore)
	assert.Equal(t, Recommendation(want), report.Recommendation)
	assert.Contains(t, report.Improvements[len(report.Improvements)-1], "Unanswered")
	assert.Equal(t, "Jane Wanjiru", report.CandidateName)
	assert.Equal(t, "Backend Engineer", report.JobTitle)
	assert.NotNil(t, report.Reviews)
	_, armed := h.m.Remaining(session.ID)
	assert.False(t, armed)

	_, err = h.m.Complete(ctx, session.ID, "cand-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))

	again, err := h.m.Report(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, report.OverallScore, again.OverallScore)
	assert.Equal(t, report.Answers, again.Answers)

	_, err = h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[2].ID,
		Text:        "late",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))
}

func TestComplete_NotStarted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.m.Create(ctx, CreateInput{CandidateID: "cand-1", JobID: "job-1", Count: 1})
	require.NoError(t, err)

	_, err = h.m.Complete(ctx, session.ID, "cand-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))

	_, err = h.m.Report(ctx, session.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConflict))
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	q := func(id string) models.InterviewQuestion {
		return models.InterviewQuestion{ID: id, QuestionText: "Why this role?", Difficulty: models.DifficultyMedium, TimeLimitSeconds: 120}
	}
	overdue := h.now.Add(-5 * time.Second)
	sessions := []*models.InterviewSession{
		{ID: "overdue", CandidateID: "cand-1", JobID: "job-1", Status: models.SessionActive,
			Questions: []models.InterviewQuestion{q("a"), q("b")}, Answers: []models.Answer{}, QuestionDeadline: &overdue},
		{ID: "no-deadline", CandidateID: "cand-1", JobID: "job-1", Status: models.SessionActive,
			Questions: []models.InterviewQuestion{q("a")}, Answers: []models.Answer{}},
		{ID: "all-answered", CandidateID: "cand-1", JobID: "job-1", Status: models.SessionActive, CurrentIndex: 1,
			Questions: []models.InterviewQuestion{q("a")}, Answers: []models.Answer{{QuestionID: "a", Text: "done"}}},
		{ID: "finished", CandidateID: "cand-1", JobID: "job-1", Status: models.SessionCompleted,
			Questions: []models.InterviewQuestion{q("a")}},
	}
	for _, s := range sessions {
		require.NoError(t, h.store.SaveSession(ctx, s))
	}

	require.NoError(t, h.m.Restore(ctx))
	require.Equal(t, 2, h.timers.count())

	var immediate *fakeTimer
	for _, tm := range h.timers.all {
		if tm.d == 0 {
			immediate = tm
		} else {
			assert.Equal(t, 120*time.Second, tm.d)
		}
	}
	require.NotNil(t, immediate, "overdue session must time out immediately")
	immediate.f()

	stored, err := h.store.GetSession(ctx, "overdue")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentIndex)
	assert.True(t, stored.Answers[0].TimedOut)

	stored, err = h.store.GetSession(ctx, "no-deadline")
	require.NoError(t, err)
	require.NotNil(t, stored.QuestionDeadline)
	assert.True(t, h.now.Add(120*time.Second).Equal(*stored.QuestionDeadline))
}

func TestStop_DisablesTimers(t *testing.T) {
	h := newHarness(t)
	session := h.started(t, 1)
	pending := h.timers.last()

	h.m.Stop()
	assert.True(t, pending.stopped)

	pending.f()
	stored, err := h.store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status, "stopped manager must not transition sessions")
}

func TestSubscribe_Cancel(t *testing.T) {
	h := newHarness(t)
	_, cancel := h.m.Subscribe("s1")
	cancel()
	cancel()

	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	assert.Empty(t, h.m.subscribers)
}

func TestSubmitAnswer_SaveFailureKeepsTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 2)
	pending := h.timers.last()

	h.store.failSaves(errors.New("disk I/O error"))
	_, err := h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[0].ID,
		Text:        "lost answer",
	})
	require.Error(t, err)

	assert.False(t, pending.stopped, "timer of the stored question must survive a failed save")
	assert.Equal(t, 1, h.timers.count())
	_, armed := h.m.Remaining(session.ID)
	assert.True(t, armed)

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status)
	assert.Equal(t, 0, stored.CurrentIndex)
	assert.Empty(t, stored.Answers)

	h.store.failSaves(nil)
	h.now = h.now.Add(120 * time.Second)
	pending.f()

	stored, err = h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentIndex)
	require.Len(t, stored.Answers, 1)
	assert.True(t, stored.Answers[0].TimedOut)
}

func TestTimeout_SaveFailureRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 2)

	h.store.failSaves(errors.New("disk I/O error"))
	h.now = h.now.Add(120 * time.Second)
	h.timers.last().f()

	require.Equal(t, 2, h.timers.count())
	retry := h.timers.last()
	assert.Equal(t, timeoutRetryDelay, retry.d)

	remaining, armed := h.m.Remaining(session.ID)
	assert.True(t, armed)
	assert.Zero(t, remaining)

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentIndex)

	h.store.failSaves(nil)
	retry.f()

	stored, err = h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentIndex)
	require.Len(t, stored.Answers, 1)
	assert.True(t, stored.Answers[0].TimedOut)
}

func TestTimeout_LastQuestionCompleteFailureBacksOff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 1)

	h.store.failSaves(errors.New("disk I/O error"))
	h.now = h.now.Add(120 * time.Second)
	h.timers.last().f()

	require.Equal(t, 2, h.timers.count())
	retry := h.timers.last()
	assert.Equal(t, timeoutRetryDelay, retry.d, "failed auto-complete must not re-fire immediately")

	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status)
	assert.Empty(t, h.publisher.subjects)

	h.store.failSaves(nil)
	retry.f()

	stored, err = h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, stored.Status)
	require.Len(t, stored.Answers, 1)
	assert.True(t, stored.Answers[0].TimedOut)
}

func TestSessionLocksReleased(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.started(t, 1)

	_, err := h.m.SubmitAnswer(ctx, SubmitInput{
		SessionID:   session.ID,
		CandidateID: "cand-1",
		QuestionID:  session.Questions[0].ID,
		Text:        "done",
	})
	require.NoError(t, err)
	_, err = h.m.Complete(ctx, session.ID, "cand-1")
	require.NoError(t, err)

	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	assert.Empty(t, h.m.locks)
}
