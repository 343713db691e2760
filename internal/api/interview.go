package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/auth"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/ingestion"
	"github.com/fmuoria/interview-portal/internal/interview"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/storage"
)

// handleParseResume accepts a multipart "file" upload or a JSON {text} body
func (s *Server) handleParseResume(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	resume := &models.Resume{
		ID:     uuid.NewString(),
		UserID: claims.UserID,
	}

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		if err := r.ParseMultipartForm(maxUploadBody); err != nil {
			s.respondError(w, r, apperrors.InvalidInput("failed to parse form", err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			s.respondError(w, r, apperrors.InvalidInput("file is required", err))
			return
		}
		defer file.Close()

		if !ingestion.IsSupportedDocument(header.Filename) {
			s.respondError(w, r, apperrors.InvalidInput("resume must be a PDF, DOC, DOCX or TXT file", nil))
			return
		}
		path, err := s.files.SaveResume(claims.UserID, header.Filename, file)
		if err != nil {
			s.respondError(w, r, apperrors.Internal("saving resume", err))
			return
		}
		text, err := ingestion.ExtractText(r.Context(), path)
		if err != nil {
			s.respondError(w, r, apperrors.InvalidInput("could not read text from "+filepath.Base(header.Filename), err))
			return
		}
		resume.Filename = filepath.Base(header.Filename)
		resume.Path = path
		resume.Text = text
	} else {
		var in struct {
			Text string `json:"text"`
		}
		if err := decodeJSON(w, r, &in); err != nil {
			s.respondError(w, r, err)
			return
		}
		resume.Text = in.Text
	}

	resume.Text = strings.TrimSpace(resume.Text)
	if resume.Text == "" {
		s.respondError(w, r, apperrors.InvalidInput("resume text is empty", nil))
		return
	}

	parsed, err := s.parser.Parse(r.Context(), resume.Text)
	if err != nil {
		s.respondError(w, r, apperrors.InvalidInput("could not parse resume", err))
		return
	}
	resume.Parsed = parsed
	resume.CreatedAt = s.now().UTC()

	if err := s.store.CreateResume(r.Context(), resume); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, resume)
}

// parsedResume loads the caller's resume; an empty id means none
func (s *Server) parsedResume(ctx context.Context, claims *auth.Claims, resumeID string) (*models.ParsedResume, error) {
	if resumeID == "" {
		return nil, nil
	}
	resume, err := s.store.GetResume(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	if resume.UserID != claims.UserID && !claims.Role.IsStaff() {
		return nil, apperrors.Forbidden("resume belongs to another user", nil)
	}
	return &resume.Parsed, nil
}

type generateRequest struct {
	JobID      string            `json:"job_id"`
	ResumeID   string            `json:"resume_id"`
	Count      int               `json:"count"`
	Difficulty models.Difficulty `json:"difficulty"`
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in generateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if in.JobID == "" {
		s.respondError(w, r, apperrors.InvalidInput("job_id is required", nil))
		return
	}

	resume, err := s.parsedResume(r.Context(), claims, in.ResumeID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	questions, err := s.interviews.GenerateQuestions(r.Context(), in.JobID, resume, in.Count, in.Difficulty)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, questions)
}

func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in struct {
		generateRequest
		Mode      models.InterviewMode       `json:"mode"`
		Questions []models.InterviewQuestion `json:"questions"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if in.JobID == "" {
		s.respondError(w, r, apperrors.InvalidInput("job_id is required", nil))
		return
	}

	resume, err := s.parsedResume(r.Context(), claims, in.ResumeID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	session, err := s.interviews.Create(r.Context(), interview.CreateInput{
		CandidateID: claims.UserID,
		JobID:       in.JobID,
		Mode:        in.Mode,
		Questions:   in.Questions,
		Resume:      resume,
		Count:       in.Count,
		Difficulty:  in.Difficulty,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	session, err = s.interviews.Start(r.Context(), session.ID, claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	session.TimeRemaining = session.Remaining(s.now())
	s.respondJSON(w, http.StatusCreated, session)
}

// handleSubmitAnswer accepts JSON or a multipart form carrying a recorded "media" file
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in struct {
		SessionID  string `json:"session_id"`
		QuestionID string `json:"question_id"`
		Answer     string `json:"answer"`
	}

	var mediaPath string
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		if err := r.ParseMultipartForm(maxUploadBody); err != nil {
			s.respondError(w, r, apperrors.InvalidInput("failed to parse form", err))
			return
		}
		in.SessionID = r.FormValue("session_id")
		in.QuestionID = r.FormValue("question_id")
		in.Answer = r.FormValue("answer")
	} else if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	if in.SessionID == "" || in.QuestionID == "" {
		s.respondError(w, r, apperrors.InvalidInput("session_id and question_id are required", nil))
		return
	}

	if isMultipart(r) {
		if file, header, err := r.FormFile("media"); err == nil {
			defer file.Close()
			if !ingestion.IsSupportedMedia(header.Filename) {
				s.respondError(w, r, apperrors.InvalidInput("media must be a webm, ogg, wav, mp3, m4a or mp4 file", nil))
				return
			}
			if err := s.acceptsAnswer(r.Context(), in.SessionID, in.QuestionID, claims.UserID); err != nil {
				s.respondError(w, r, err)
				return
			}
			mediaPath, err = s.files.SaveMedia(in.SessionID, in.QuestionID, header.Filename, file)
			if err != nil {
				s.respondError(w, r, apperrors.Internal("saving media", err))
				return
			}
		}
	}

	session, err := s.interviews.SubmitAnswer(r.Context(), interview.SubmitInput{
		SessionID:   in.SessionID,
		CandidateID: claims.UserID,
		QuestionID:  in.QuestionID,
		Text:        in.Answer,
		MediaPath:   mediaPath,
	})
	if err != nil {
		if mediaPath != "" {
			if rmErr := s.files.Remove(mediaPath); rmErr != nil {
				s.logger.Warn("failed to remove rejected media", zap.String("path", mediaPath), zap.Error(rmErr))
			}
		}
		s.respondError(w, r, err)
		return
	}
	session.TimeRemaining = session.Remaining(s.now())
	s.respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleCompleteInterview(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if in.SessionID == "" {
		s.respondError(w, r, apperrors.InvalidInput("session_id is required", nil))
		return
	}

	report, err := s.interviews.Complete(r.Context(), in.SessionID, claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	session, err := s.visibleSession(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

// Review side

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	filter := storage.SessionFilter{}
	switch claims.Role {
	case models.RoleCandidate:
		filter.CandidateID = claims.UserID
	case models.RoleInterviewer:
		filter.Status = models.SessionCompleted
	case models.RoleCompany:
		jobs, err := s.store.ListJobs(r.Context(), storage.JobFilter{CompanyID: claims.UserID})
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if len(jobs) == 0 {
			s.respondJSON(w, http.StatusOK, []*models.InterviewSession{})
			return
		}
		for _, j := range jobs {
			filter.JobIDs = append(filter.JobIDs, j.ID)
		}
		filter.Status = models.SessionCompleted
	}

	sessions, err := s.store.ListSessions(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(sessions))
}

func (s *Server) handleInterviewReport(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	session, err := s.visibleSession(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.interviews.Report(r.Context(), session.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	session, err := s.visibleSession(r.Context(), claims, r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if session.Status != models.SessionCompleted {
		s.respondError(w, r, apperrors.Conflict("only completed interviews can be reviewed", nil))
		return
	}

	var in struct {
		Rating int    `json:"rating"`
		Notes  string `json:"notes"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if in.Rating < 1 || in.Rating > 5 {
		s.respondError(w, r, apperrors.InvalidInput("rating must be between 1 and 5", nil))
		return
	}

	review := &models.Review{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		ReviewerID: claims.UserID,
		Rating:     in.Rating,
		Notes:      strings.TrimSpace(in.Notes),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateReview(r.Context(), review); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Info("interview reviewed",
		zap.String("session_id", session.ID),
		zap.String("reviewer_id", claims.UserID),
		zap.Int("rating", in.Rating))
	s.respondJSON(w, http.StatusCreated, review)
}

// ownSession loads a session the candidate owns
func (s *Server) ownSession(ctx context.Context, sessionID, candidateID string) (*models.InterviewSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CandidateID != candidateID {
		return nil, apperrors.Forbidden("interview belongs to another candidate", nil)
	}
	return session, nil
}

// acceptsAnswer checks that questionID is the current question of an active
// session the candidate owns, before any upload is stored
func (s *Server) acceptsAnswer(ctx context.Context, sessionID, questionID, candidateID string) error {
	session, err := s.ownSession(ctx, sessionID, candidateID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionActive {
		return apperrors.Conflict(fmt.Sprintf("interview is %s", session.Status), nil)
	}
	current, ok := session.CurrentQuestion()
	if !ok {
		return apperrors.Conflict("all questions have been answered", nil)
	}
	if current.ID != questionID {
		return apperrors.InvalidInput("answer is not for the current question", nil)
	}
	return nil
}

// visibleSession loads a session the caller may see: candidates their own,
// interviewers any, companies those for their jobs
func (s *Server) visibleSession(ctx context.Context, claims *auth.Claims, sessionID string) (*models.InterviewSession, error) {
	session, err := s.interviews.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch claims.Role {
	case models.RoleInterviewer:
		return session, nil
	case models.RoleCompany:
		job, err := s.store.GetJob(ctx, session.JobID)
		if apperrors.Is(err, apperrors.ErrTypeNotFound) {
			return nil, apperrors.Forbidden("interview is for another company's job", nil)
		}
		if err != nil {
			return nil, err
		}
		if job.CompanyID != claims.UserID {
			return nil, apperrors.Forbidden("interview is for another company's job", nil)
		}
		return session, nil
	default:
		if session.CandidateID != claims.UserID {
			return nil, apperrors.Forbidden("interview belongs to another candidate", nil)
		}
		return session, nil
	}
}
