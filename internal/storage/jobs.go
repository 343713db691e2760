package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

const jobColumns = `id, company_id, title, description, location, employment_type, skills,
	required_experience, required_education, required_duties,
	nice_experience, nice_education, nice_duties, status, created_at, updated_at`

// JobFilter narrows ListJobs; zero fields match everything
type JobFilter struct {
	CompanyID string
	Status    models.JobStatus
	Query     string
	Location  string
}

// CreateJob inserts a posting
func (s *Store) CreateJob(ctx context.Context, j *models.Job) error {
	now := s.now()
	j.CreatedAt, j.UpdatedAt = now, now

	lists, err := encodeJobLists(j)
	if err != nil {
		return err
	}

	args := []any{j.ID, j.CompanyID, j.Title, j.Description, j.Location, j.EmploymentType}
	args = append(args, lists...)
	args = append(args, string(j.Status), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...); err != nil {
		return apperrors.Internal("inserting job", err)
	}
	return nil
}

// UpdateJob overwrites the editable fields of a posting
func (s *Store) UpdateJob(ctx context.Context, j *models.Job) error {
	j.UpdatedAt = s.now()

	lists, err := encodeJobLists(j)
	if err != nil {
		return err
	}

	args := []any{j.Title, j.Description, j.Location, j.EmploymentType}
	args = append(args, lists...)
	args = append(args, string(j.Status), formatTime(j.UpdatedAt), j.ID)

	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET
		title = ?, description = ?, location = ?, employment_type = ?, skills = ?,
		required_experience = ?, required_education = ?, required_duties = ?,
		nice_experience = ?, nice_education = ?, nice_duties = ?,
		status = ?, updated_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return apperrors.Internal("updating job", err)
	}
	return requireAffected(res, "job not found")
}

// DeleteJob removes a posting and its applications
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("deleting job", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return apperrors.Internal("deleting job", err)
	}
	if err := requireAffected(res, "job not found"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE job_id = ?`, id); err != nil {
		return apperrors.Internal("deleting job applications", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("deleting job", err)
	}
	return nil
}

// GetJob returns one posting
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("job not found", nil)
	}
	return j, err
}

// ListJobs returns postings newest first
func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]models.Job, error) {
	var (
		where []string
		args  []any
	)
	if f.CompanyID != "" {
		where = append(where, "company_id = ?")
		args = append(args, f.CompanyID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Query != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(f.Query) + "%"
		args = append(args, pattern, pattern)
	}
	if f.Location != "" {
		where = append(where, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("listing jobs", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("listing jobs", err)
	}
	return jobs, nil
}

func encodeJobLists(j *models.Job) ([]any, error) {
	lists := [][]string{
		j.Skills, j.RequiredExperience, j.RequiredEducation, j.RequiredDuties,
		j.NiceToHaveExperience, j.NiceToHaveEducation, j.NiceToHaveDuties,
	}
	out := make([]any, 0, len(lists))
	for _, l := range lists {
		if l == nil {
			l = []string{}
		}
		enc, err := encodeJSON(l)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		j                    models.Job
		location, employment sql.NullString
		lists                [7]string
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&j.ID, &j.CompanyID, &j.Title, &j.Description, &location, &employment,
		&lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &lists[5], &lists[6],
		&status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Internal("reading job", err)
	}

	targets := []*[]string{
		&j.Skills, &j.RequiredExperience, &j.RequiredEducation, &j.RequiredDuties,
		&j.NiceToHaveExperience, &j.NiceToHaveEducation, &j.NiceToHaveDuties,
	}
	for i, target := range targets {
		if err := decodeJSON(lists[i], target); err != nil {
			return nil, err
		}
	}

	j.Location = location.String
	j.EmploymentType = employment.String
	j.Status = models.JobStatus(status)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func requireAffected(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("checking affected rows", err)
	}
	if n == 0 {
		return apperrors.NotFound(notFound, nil)
	}
	return nil
}
