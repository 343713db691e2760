package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"

	_ "modernc.org/sqlite"
)

// Store persists portal entities in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		role          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id             TEXT PRIMARY KEY,
		question_text  TEXT NOT NULL,
		option_a       TEXT NOT NULL,
		option_b       TEXT NOT NULL,
		option_c       TEXT NOT NULL,
		option_d       TEXT NOT NULL,
		correct_option TEXT NOT NULL,
		difficulty     TEXT NOT NULL,
		created_by     TEXT,
		created_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		answers    TEXT NOT NULL,
		score      INTEGER NOT NULL,
		total      INTEGER NOT NULL,
		percentage REAL NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id                  TEXT PRIMARY KEY,
		company_id          TEXT NOT NULL,
		title               TEXT NOT NULL,
		description         TEXT NOT NULL,
		location            TEXT,
		employment_type     TEXT,
		skills              TEXT NOT NULL DEFAULT '[]',
		required_experience TEXT NOT NULL DEFAULT '[]',
		required_education  TEXT NOT NULL DEFAULT '[]',
		required_duties     TEXT NOT NULL DEFAULT '[]',
		nice_experience     TEXT NOT NULL DEFAULT '[]',
		nice_education      TEXT NOT NULL DEFAULT '[]',
		nice_duties         TEXT NOT NULL DEFAULT '[]',
		status              TEXT NOT NULL DEFAULT 'open',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company_id)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id             TEXT PRIMARY KEY,
		job_id         TEXT NOT NULL,
		candidate_id   TEXT NOT NULL,
		candidate_name TEXT NOT NULL,
		status         TEXT NOT NULL,
		cover_letter   TEXT,
		resume_id      TEXT,
		source         TEXT NOT NULL DEFAULT 'portal',
		scores         TEXT,
		rank           INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		UNIQUE(job_id, candidate_id)
	)`,
	`CREATE TABLE IF NOT EXISTS candidate_profiles (
		user_id TEXT PRIMARY KEY,
		data    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS company_profiles (
		user_id TEXT PRIMARY KEY,
		data    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resumes (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		filename   TEXT NOT NULL,
		path       TEXT,
		text       TEXT NOT NULL,
		parsed     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interview_sessions (
		id           TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		job_id       TEXT NOT NULL,
		status       TEXT NOT NULL,
		data         TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON interview_sessions(status)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		reviewer_id TEXT NOT NULL,
		rating      INTEGER NOT NULL,
		notes       TEXT,
		created_at  TEXT NOT NULL
	)`,
}

// Open opens (or creates) the SQLite database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("storage: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: migration %d: %w", i, err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.Internal("encoding column", err)
	}
	return string(data), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return apperrors.Internal("decoding column", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
