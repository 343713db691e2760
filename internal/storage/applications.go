package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

const applicationColumns = `id, job_id, candidate_id, candidate_name, status, cover_letter, resume_id,
	source, scores, rank, created_at, updated_at`

// ApplicationFilter narrows ListApplications
type ApplicationFilter struct {
	JobID       string
	CandidateID string
}

// CreateApplication inserts an application; a candidate applies to a job once
func (s *Store) CreateApplication(ctx context.Context, a *models.Application) error {
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Source == "" {
		a.Source = "portal"
	}

	scores, err := encodeScores(a.Scores)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO applications (`+applicationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.JobID, a.CandidateID, a.CandidateName, string(a.Status), a.CoverLetter, a.ResumeID,
		a.Source, scores, a.Rank, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if isUniqueViolation(err) {
		return apperrors.Conflict("already applied to this job", nil)
	}
	if err != nil {
		return apperrors.Internal("inserting application", err)
	}
	return nil
}

// UpdateApplication persists status, screening scores and rank
func (s *Store) UpdateApplication(ctx context.Context, a *models.Application) error {
	a.UpdatedAt = s.now()
	scores, err := encodeScores(a.Scores)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET status = ?, scores = ?, rank = ?, updated_at = ? WHERE id = ?`,
		string(a.Status), scores, a.Rank, formatTime(a.UpdatedAt), a.ID)
	if err != nil {
		return apperrors.Internal("updating application", err)
	}
	return requireAffected(res, "application not found")
}

// GetApplication returns one application
func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("application not found", nil)
	}
	return a, err
}

// ListApplications returns applications oldest first
func (s *Store) ListApplications(ctx context.Context, f ApplicationFilter) ([]models.Application, error) {
	var (
		where []string
		args  []any
	)
	if f.JobID != "" {
		where = append(where, "job_id = ?")
		args = append(args, f.JobID)
	}
	if f.CandidateID != "" {
		where = append(where, "candidate_id = ?")
		args = append(args, f.CandidateID)
	}

	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("listing applications", err)
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("listing applications", err)
	}
	return apps, nil
}

func encodeScores(scores *models.Scores) (sql.NullString, error) {
	if scores == nil {
		return sql.NullString{}, nil
	}
	enc, err := encodeJSON(scores)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: enc, Valid: true}, nil
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		a                     models.Application
		status                string
		coverLetter, resumeID sql.NullString
		scores                sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(&a.ID, &a.JobID, &a.CandidateID, &a.CandidateName, &status, &coverLetter, &resumeID,
		&a.Source, &scores, &a.Rank, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Internal("reading application", err)
	}
	if scores.Valid {
		a.Scores = &models.Scores{}
		if err := decodeJSON(scores.String, a.Scores); err != nil {
			return nil, err
		}
	}
	a.Status = models.ApplicationStatus(status)
	a.CoverLetter = coverLetter.String
	a.ResumeID = resumeID.String
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
