package storage

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

const questionColumns = `id, question_text, option_a, option_b, option_c, option_d, correct_option, difficulty, created_by, created_at`

// CreateQuestion adds a question to the quiz bank
func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
		q.CorrectOption, string(q.Difficulty), q.CreatedBy, formatTime(q.CreatedAt))
	if err != nil {
		return apperrors.Internal("inserting question", err)
	}
	return nil
}

// ListQuestions returns the quiz bank, optionally filtered by difficulty
func (s *Store) ListQuestions(ctx context.Context, difficulty models.Difficulty) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var args []any
	if difficulty != "" {
		query += ` WHERE difficulty = ?`
		args = append(args, string(difficulty))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("listing questions", err)
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("listing questions", err)
	}
	return questions, nil
}

// GetQuestion returns one quiz question
func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("question not found", nil)
	}
	return q, err
}

func scanQuestion(row scanner) (*models.Question, error) {
	var (
		q          models.Question
		difficulty string
		createdBy  sql.NullString
		createdAt  string
	)
	err := row.Scan(&q.ID, &q.QuestionText, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
		&q.CorrectOption, &difficulty, &createdBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.Internal("reading question", err)
	}
	q.Difficulty = models.Difficulty(difficulty)
	q.CreatedBy = createdBy.String
	q.CreatedAt = parseTime(createdAt)
	return &q, nil
}

// CreateSubmission stores a graded quiz attempt
func (s *Store) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	answers, err := encodeJSON(sub.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, user_id, answers, score, total, percentage, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, answers, sub.Score, sub.Total, sub.Percentage, formatTime(sub.CreatedAt))
	if err != nil {
		return apperrors.Internal("inserting submission", err)
	}
	return nil
}

// ListSubmissions returns submissions newest first; an empty userID lists all
func (s *Store) ListSubmissions(ctx context.Context, userID string) ([]models.Submission, error) {
	query := `SELECT id, user_id, answers, score, total, percentage, created_at FROM submissions`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("listing submissions", err)
	}
	defer rows.Close()

	subs := []models.Submission{}
	for rows.Next() {
		var (
			sub       models.Submission
			answers   string
			createdAt string
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &answers, &sub.Score, &sub.Total, &sub.Percentage, &createdAt); err != nil {
			return nil, apperrors.Internal("reading submission", err)
		}
		if err := decodeJSON(answers, &sub.Answers); err != nil {
			return nil, err
		}
		sub.CreatedAt = parseTime(createdAt)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("listing submissions", err)
	}
	return subs, nil
}
