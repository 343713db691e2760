package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-portal/internal/auth"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/export"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/storage"
)

func (s *Server) handleGetCompanyProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	profile, err := s.store.GetCompanyProfile(r.Context(), claims.UserID)
	if apperrors.Is(err, apperrors.ErrTypeNotFound) {
		profile = &models.CompanyProfile{UserID: claims.UserID, Name: claims.Name}
	} else if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePutCompanyProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var profile models.CompanyProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		s.respondError(w, r, err)
		return
	}
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		s.respondError(w, r, apperrors.InvalidInput("name is required", nil))
		return
	}
	profile.UserID = claims.UserID

	if err := s.store.UpsertCompanyProfile(r.Context(), &profile); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleCompanyJobs(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	jobs, err := s.store.ListJobs(r.Context(), storage.JobFilter{CompanyID: claims.UserID})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(jobs))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var job models.Job
	if err := decodeJSON(w, r, &job); err != nil {
		s.respondError(w, r, err)
		return
	}
	if job.Status == "" {
		job.Status = models.JobOpen
	}
	if err := job.Validate(); err != nil {
		s.respondError(w, r, apperrors.InvalidInput(err.Error(), nil))
		return
	}
	job.ID = uuid.NewString()
	job.CompanyID = claims.UserID

	if err := s.store.CreateJob(r.Context(), &job); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.jobChanged(r, &job, "created")
	s.respondJSON(w, http.StatusCreated, job)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	existing, err := s.ownedJob(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var job models.Job
	if err := decodeJSON(w, r, &job); err != nil {
		s.respondError(w, r, err)
		return
	}
	if job.Status == "" {
		job.Status = existing.Status
	}
	if err := job.Validate(); err != nil {
		s.respondError(w, r, apperrors.InvalidInput(err.Error(), nil))
		return
	}
	job.ID = existing.ID
	job.CompanyID = existing.CompanyID
	job.CreatedAt = existing.CreatedAt

	if err := s.store.UpdateJob(r.Context(), &job); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.jobChanged(r, &job, "updated")
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	job, err := s.ownedJob(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.store.DeleteJob(r.Context(), job.ID); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.jobChanged(r, job, "deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) jobChanged(r *http.Request, job *models.Job, action string) {
	s.invalidateJobs(r)
	s.publish(r, events.JobChangedSubject, events.JobChanged{
		JobID:     job.ID,
		CompanyID: job.CompanyID,
		Action:    action,
		At:        s.now().UTC(),
	})
}

func (s *Server) handleJobApplications(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	job, err := s.ownedJob(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	apps, err := s.store.ListApplications(r.Context(), storage.ApplicationFilter{JobID: job.ID})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(apps))
}

func (s *Server) handleApplicationStatus(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in struct {
		Status models.ApplicationStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if !in.Status.Valid() {
		s.respondError(w, r, apperrors.InvalidInput("status must be applied, screening, interview, offer or rejected", nil))
		return
	}

	app, err := s.store.GetApplication(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if _, err := s.ownedJob(r.Context(), app.JobID, claims.UserID); err != nil {
		s.respondError(w, r, err)
		return
	}

	from := app.Status
	if from == in.Status {
		s.respondJSON(w, http.StatusOK, app)
		return
	}
	app.Status = in.Status
	if err := s.store.UpdateApplication(r.Context(), app); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.publish(r, events.ApplicationStatusChangedSubject, events.ApplicationStatusChanged{
		ApplicationID: app.ID,
		JobID:         app.JobID,
		From:          string(from),
		To:            string(in.Status),
		At:            s.now().UTC(),
	})
	s.respondJSON(w, http.StatusOK, app)
}

func (s *Server) handleScreenJob(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	report, err := s.screener.ScreenJob(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleJobReport returns the screening ranking and completed interviews as a workbook
func (s *Server) handleJobReport(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	report, err := s.screener.Report(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), storage.SessionFilter{
		JobIDs: []string{report.JobID},
		Status: models.SessionCompleted,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteJobReport(&buf, report, sessions, s.now()); err != nil {
		s.respondError(w, r, apperrors.Internal("building report workbook", err))
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="job-%s-report.xlsx"`, report.JobID))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) handleGmailImport(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in struct {
		Subject string `json:"subject"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.screener.ImportFromGmail(r.Context(), r.PathValue("id"), claims.UserID, strings.TrimSpace(in.Subject))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) ownedJob(ctx context.Context, jobID, companyID string) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.CompanyID != companyID {
		return nil, apperrors.Forbidden("job belongs to another company", nil)
	}
	return job, nil
}
