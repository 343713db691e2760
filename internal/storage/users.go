package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

const userColumns = `id, name, email, role, password_hash, created_at`

// CreateUser inserts a user; emails are unique case-insensitively
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, string(u.Role), u.PasswordHash, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return apperrors.Conflict("email already registered", nil)
	}
	if err != nil {
		return apperrors.Internal("inserting user", err)
	}
	return nil
}

// GetUser returns the user with the given id
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user registered with email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u         models.User
		role      string
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user not found", nil)
	}
	if err != nil {
		return nil, apperrors.Internal("reading user", err)
	}
	u.Role = models.Role(role)
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}
