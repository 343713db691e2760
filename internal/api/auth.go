package api

import (
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-portal/internal/auth"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, user)
}

// Quiz bank

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	difficulty := models.Difficulty(r.URL.Query().Get("difficulty"))
	if difficulty != "" && !difficulty.Valid() {
		s.respondError(w, r, apperrors.InvalidInput("difficulty must be easy, medium or hard", nil))
		return
	}

	questions, err := s.store.ListQuestions(r.Context(), difficulty)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !claims.Role.IsStaff() {
		for i := range questions {
			questions[i] = questions[i].Redacted()
		}
	}
	s.respondJSON(w, http.StatusOK, nonNil(questions))
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var q models.Question
	if err := decodeJSON(w, r, &q); err != nil {
		s.respondError(w, r, err)
		return
	}
	q.CorrectOption = strings.ToLower(strings.TrimSpace(q.CorrectOption))
	if q.Difficulty == "" {
		q.Difficulty = models.DifficultyMedium
	}
	if err := q.Validate(); err != nil {
		s.respondError(w, r, apperrors.InvalidInput(err.Error(), nil))
		return
	}

	q.ID = uuid.NewString()
	q.CreatedBy = claims.UserID
	q.CreatedAt = s.now().UTC()
	if err := s.store.CreateQuestion(r.Context(), &q); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, q)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	userID := claims.UserID
	if claims.Role.IsStaff() {
		userID = r.URL.Query().Get("user_id")
	}

	subs, err := s.store.ListSubmissions(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(subs))
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in struct {
		Answers map[string]string `json:"answers"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(in.Answers) == 0 {
		s.respondError(w, r, apperrors.InvalidInput("answers are required", nil))
		return
	}

	questions := make(map[string]*models.Question, len(in.Answers))
	for id := range in.Answers {
		q, err := s.store.GetQuestion(r.Context(), id)
		if apperrors.Is(err, apperrors.ErrTypeNotFound) {
			s.respondError(w, r, apperrors.InvalidInput("unknown question "+id, nil))
			return
		}
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		questions[id] = q
	}

	sub, err := gradeSubmission(questions, in.Answers)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sub.ID = uuid.NewString()
	sub.UserID = claims.UserID
	sub.CreatedAt = s.now().UTC()

	if err := s.store.CreateSubmission(r.Context(), sub); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sub)
}

// gradeSubmission counts correct options; percentage is correct/total*100
// rounded to two decimals
func gradeSubmission(questions map[string]*models.Question, answers map[string]string) (*models.Submission, error) {
	normalized := make(map[string]string, len(answers))
	correct := 0
	for id, answer := range answers {
		answer = strings.ToLower(strings.TrimSpace(answer))
		if !models.ValidOption(answer) {
			return nil, apperrors.InvalidInput("answer for "+id+" must be one of a, b, c, d", nil)
		}
		q, ok := questions[id]
		if !ok {
			return nil, apperrors.InvalidInput("unknown question "+id, nil)
		}
		if q.CorrectOption == answer {
			correct++
		}
		normalized[id] = answer
	}

	total := len(normalized)
	return &models.Submission{
		Answers:    normalized,
		Score:      correct,
		Total:      total,
		Percentage: math.Round(float64(correct)/float64(total)*100*100) / 100,
	}, nil
}
