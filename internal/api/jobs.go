package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/auth"
	"github.com/fmuoria/interview-portal/internal/cache"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/storage"
)

const (
	jobsCachePrefix = "jobs:"
	portalSource    = "portal"
)

// handleListJobs serves open jobs, cached per query
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	key := jobsCachePrefix + "open:" + strings.ToLower(query) + "|" + strings.ToLower(location)

	cached, err := s.cache.Get(r.Context(), key)
	switch {
	case err == nil:
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	case !errors.Is(err, cache.ErrNotFound):
		s.logger.Warn("jobs cache read failed", zap.String("key", key), zap.Error(err))
	}

	jobs, err := s.store.ListJobs(r.Context(), storage.JobFilter{
		Status:   models.JobOpen,
		Query:    query,
		Location: location,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	body, err := json.Marshal(nonNil(jobs))
	if err != nil {
		s.respondError(w, r, apperrors.Internal("encoding jobs", err))
		return
	}
	body = append(body, '\n')
	if err := s.cache.Set(r.Context(), key, body, s.jobsTTL); err != nil {
		s.logger.Warn("jobs cache write failed", zap.String("key", key), zap.Error(err))
	}

	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) invalidateJobs(r *http.Request) {
	if err := s.cache.DeletePrefix(r.Context(), jobsCachePrefix); err != nil {
		s.logger.Warn("jobs cache invalidation failed", zap.Error(err))
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if job.Status != models.JobOpen && job.CompanyID != claims.UserID {
		s.respondError(w, r, apperrors.NotFound("job not found", nil))
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var in struct {
		CoverLetter string `json:"cover_letter"`
		ResumeID    string `json:"resume_id"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if job.Status != models.JobOpen {
		s.respondError(w, r, apperrors.Conflict("job is not accepting applications", nil))
		return
	}

	resumeID := in.ResumeID
	if resumeID != "" {
		resume, err := s.store.GetResume(r.Context(), resumeID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if resume.UserID != claims.UserID {
			s.respondError(w, r, apperrors.Forbidden("resume belongs to another user", nil))
			return
		}
	} else {
		latest, err := s.store.LatestResume(r.Context(), claims.UserID)
		switch {
		case err == nil:
			resumeID = latest.ID
		case !apperrors.Is(err, apperrors.ErrTypeNotFound):
			s.respondError(w, r, err)
			return
		}
	}

	app := &models.Application{
		ID:            uuid.NewString(),
		JobID:         job.ID,
		CandidateID:   claims.UserID,
		CandidateName: claims.Name,
		Status:        models.ApplicationApplied,
		CoverLetter:   strings.TrimSpace(in.CoverLetter),
		ResumeID:      resumeID,
		Source:        portalSource,
	}
	if err := s.store.CreateApplication(r.Context(), app); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.publish(r, events.ApplicationSubmittedSubject, events.ApplicationSubmitted{
		ApplicationID: app.ID,
		JobID:         job.ID,
		CandidateID:   claims.UserID,
		Source:        portalSource,
		At:            s.now().UTC(),
	})
	s.respondJSON(w, http.StatusCreated, app)
}

func (s *Server) handleGetCandidateProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	profile, err := s.store.GetCandidateProfile(r.Context(), claims.UserID)
	if apperrors.Is(err, apperrors.ErrTypeNotFound) {
		profile = &models.CandidateProfile{UserID: claims.UserID, Skills: []string{}}
	} else if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePutCandidateProfile(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var profile models.CandidateProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		s.respondError(w, r, err)
		return
	}
	if profile.ExperienceYears < 0 {
		s.respondError(w, r, apperrors.InvalidInput("experience_years cannot be negative", nil))
		return
	}
	if profile.ResumeID != "" {
		resume, err := s.store.GetResume(r.Context(), profile.ResumeID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if resume.UserID != claims.UserID {
			s.respondError(w, r, apperrors.Forbidden("resume belongs to another user", nil))
			return
		}
	}
	profile.UserID = claims.UserID
	profile.Skills = nonNil(profile.Skills)

	if err := s.store.UpsertCandidateProfile(r.Context(), &profile); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleCandidateApplications(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	apps, err := s.store.ListApplications(r.Context(), storage.ApplicationFilter{CandidateID: claims.UserID})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(apps))
}
