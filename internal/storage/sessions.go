package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

// SessionFilter narrows ListSessions
type SessionFilter struct {
	CandidateID string
	JobIDs      []string
	Status      models.SessionStatus
}

// SaveSession inserts or replaces an interview session
func (s *Store) SaveSession(ctx context.Context, session *models.InterviewSession) error {
	data, err := encodeJSON(session)
	if err != nil {
		return err
	}
	now := formatTime(s.now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interview_sessions (id, candidate_id, job_id, status, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data, updated_at = excluded.updated_at`,
		session.ID, session.CandidateID, session.JobID, string(session.Status), data,
		formatTime(session.CreatedAt), now)
	if err != nil {
		return apperrors.Internal("saving interview session", err)
	}
	return nil
}

// GetSession returns one interview session
func (s *Store) GetSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM interview_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("interview session not found", nil)
	}
	if err != nil {
		return nil, apperrors.Internal("reading interview session", err)
	}
	var session models.InterviewSession
	if err := decodeJSON(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns sessions newest first
func (s *Store) ListSessions(ctx context.Context, f SessionFilter) ([]*models.InterviewSession, error) {
	var (
		where []string
		args  []any
	)
	if f.CandidateID != "" {
		where = append(where, "candidate_id = ?")
		args = append(args, f.CandidateID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.JobIDs != nil {
		if len(f.JobIDs) == 0 {
			return []*models.InterviewSession{}, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.JobIDs)), ",")
		where = append(where, "job_id IN ("+placeholders+")")
		for _, id := range f.JobIDs {
			args = append(args, id)
		}
	}

	query := `SELECT data FROM interview_sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("listing interview sessions", err)
	}
	defer rows.Close()

	sessions := []*models.InterviewSession{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Internal("reading interview session", err)
		}
		var session models.InterviewSession
		if err := decodeJSON(data, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("listing interview sessions", err)
	}
	return sessions, nil
}

// ListActiveSessions returns every session still in progress
func (s *Store) ListActiveSessions(ctx context.Context) ([]*models.InterviewSession, error) {
	return s.ListSessions(ctx, SessionFilter{Status: models.SessionActive})
}

// CreateReview stores an interviewer review
func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, session_id, reviewer_id, rating, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.ReviewerID, r.Rating, r.Notes, formatTime(r.CreatedAt))
	if err != nil {
		return apperrors.Internal("inserting review", err)
	}
	return nil
}

// ListReviews returns the reviews of a session oldest first
func (s *Store) ListReviews(ctx context.Context, sessionID string) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, reviewer_id, rating, notes, created_at FROM reviews
		 WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, apperrors.Internal("listing reviews", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var (
			r         models.Review
			notes     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ReviewerID, &r.Rating, &notes, &createdAt); err != nil {
			return nil, apperrors.Internal("reading review", err)
		}
		r.Notes = notes.String
		r.CreatedAt = parseTime(createdAt)
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("listing reviews", err)
	}
	return reviews, nil
}
