package storage

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

// GetCandidateProfile returns the profile of a candidate, or an empty one if never saved
func (s *Store) GetCandidateProfile(ctx context.Context, userID string) (*models.CandidateProfile, error) {
	p := &models.CandidateProfile{UserID: userID, Skills: []string{}}
	if err := s.getProfile(ctx, "candidate_profiles", userID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertCandidateProfile stores a candidate profile
func (s *Store) UpsertCandidateProfile(ctx context.Context, p *models.CandidateProfile) error {
	return s.upsertProfile(ctx, "candidate_profiles", p.UserID, p)
}

// GetCompanyProfile returns a company profile, or an empty one if never saved
func (s *Store) GetCompanyProfile(ctx context.Context, userID string) (*models.CompanyProfile, error) {
	p := &models.CompanyProfile{UserID: userID}
	if err := s.getProfile(ctx, "company_profiles", userID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertCompanyProfile stores a company profile
func (s *Store) UpsertCompanyProfile(ctx context.Context, p *models.CompanyProfile) error {
	return s.upsertProfile(ctx, "company_profiles", p.UserID, p)
}

func (s *Store) getProfile(ctx context.Context, table, userID string, dst any) error {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM `+table+` WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperrors.Internal("reading profile", err)
	}
	return decodeJSON(data, dst)
}

func (s *Store) upsertProfile(ctx context.Context, table, userID string, p any) error {
	data, err := encodeJSON(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, data) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data`,
		userID, data)
	if err != nil {
		return apperrors.Internal("saving profile", err)
	}
	return nil
}

// CreateResume stores an uploaded resume with its parsed fields
func (s *Store) CreateResume(ctx context.Context, r *models.Resume) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	parsed, err := encodeJSON(r.Parsed)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resumes (id, user_id, filename, path, text, parsed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Filename, r.Path, r.Text, parsed, formatTime(r.CreatedAt))
	if err != nil {
		return apperrors.Internal("inserting resume", err)
	}
	return nil
}

// GetResume returns one resume
func (s *Store) GetResume(ctx context.Context, id string) (*models.Resume, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, path, text, parsed, created_at FROM resumes WHERE id = ?`, id)
	return scanResume(row)
}

// LatestResume returns the most recently uploaded resume of a user
func (s *Store) LatestResume(ctx context.Context, userID string) (*models.Resume, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, path, text, parsed, created_at FROM resumes
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`, userID)
	return scanResume(row)
}

func scanResume(row scanner) (*models.Resume, error) {
	var (
		r         models.Resume
		path      sql.NullString
		parsed    string
		createdAt string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Filename, &path, &r.Text, &parsed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("resume not found", nil)
	}
	if err != nil {
		return nil, apperrors.Internal("reading resume", err)
	}
	if err := decodeJSON(parsed, &r.Parsed); err != nil {
		return nil, err
	}
	r.Path = path.String
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}
