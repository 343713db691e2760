package auth

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

const minPasswordLength = 8

// UserStore is the persistence the auth service needs
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// RegisterInput is the payload of POST /api/auth/register
type RegisterInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Result is returned by register and login
type Result struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service registers and authenticates users
type Service struct {
	users  UserStore
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewService creates an auth service
func NewService(users UserStore, tokens *TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Register validates the input, stores the user with a bcrypt hash and issues a token
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperrors.InvalidInput("name, email and password are required", nil)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperrors.InvalidInput("invalid email address", err)
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput("password must be at least 8 characters", nil)
	}
	if in.Role == "" {
		in.Role = models.RoleCandidate
	}
	if !in.Role.Valid() {
		return nil, apperrors.InvalidInput("role must be candidate, interviewer or company", nil)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &Result{Token: token, User: user}, nil
}

// Login checks credentials and issues a token
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.InvalidInput("email and password are required", nil)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if apperrors.Is(err, apperrors.ErrTypeNotFound) {
		return nil, apperrors.Unauthorized("invalid email or password", nil)
	}
	if err != nil {
		return nil, err
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Info("failed login", zap.String("user_id", user.ID))
		return nil, apperrors.Unauthorized("invalid email or password", nil)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: user}, nil
}

// Verify exposes token verification to transports
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Internal("hashing password", err)
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a candidate password
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
