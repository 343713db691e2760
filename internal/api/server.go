package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fmuoria/interview-portal/internal/agent"
	"github.com/fmuoria/interview-portal/internal/auth"
	"github.com/fmuoria/interview-portal/internal/cache"
	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/events"
	"github.com/fmuoria/interview-portal/internal/ingestion"
	"github.com/fmuoria/interview-portal/internal/interview"
	"github.com/fmuoria/interview-portal/internal/models"
	"github.com/fmuoria/interview-portal/internal/storage"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 32 << 20
)

// Deps are the collaborators of the HTTP server
type Deps struct {
	Store              *storage.Store
	Auth               *auth.Service
	Interviews         *interview.Manager
	Screener           *agent.Screener
	Parser             *ingestion.ResumeParser
	Files              *ingestion.FileHandler
	Cache              cache.Cache
	Publisher          events.Publisher
	JobsCacheTTL       time.Duration
	RateLimitPerMinute int
	AllowedOrigins     []string
	Logger             *zap.Logger
}

// Server handles HTTP requests
type Server struct {
	store      *storage.Store
	auth       *auth.Service
	interviews *interview.Manager
	screener   *agent.Screener
	parser     *ingestion.ResumeParser
	files      *ingestion.FileHandler
	cache      cache.Cache
	publisher  events.Publisher
	jobsTTL    time.Duration
	limiter    *clientLimiter
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	now        func() time.Time
}

// NewServer creates a new API server
func NewServer(d Deps) *Server {
	return &Server{
		store:      d.Store,
		auth:       d.Auth,
		interviews: d.Interviews,
		screener:   d.Screener,
		parser:     d.Parser,
		files:      d.Files,
		cache:      d.Cache,
		publisher:  d.Publisher,
		jobsTTL:    d.JobsCacheTTL,
		limiter:    newClientLimiter(d.RateLimitPerMinute),
		upgrader:   newUpgrader(d.AllowedOrigins),
		logger:     d.Logger,
		now:        time.Now,
	}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /api/auth/register", s.limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/auth/login", s.limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /api/auth/me", s.authed(s.handleMe))

	mux.Handle("GET /api/questions", s.authed(s.handleListQuestions))
	mux.Handle("POST /api/questions", s.authed(s.handleCreateQuestion, models.RoleInterviewer, models.RoleCompany))
	mux.Handle("GET /api/submissions", s.authed(s.handleListSubmissions))
	mux.Handle("POST /api/submissions", s.authed(s.handleCreateSubmission))

	mux.Handle("POST /api/ai-interview/parse-resume", s.authed(s.limitedUser(s.handleParseResume)))
	mux.Handle("POST /api/ai-interview/generate-questions", s.authed(s.limitedUser(s.handleGenerateQuestions)))
	mux.Handle("POST /api/ai-interview/start", s.authed(s.limitedUser(s.handleStartInterview), models.RoleCandidate))
	mux.Handle("POST /api/ai-interview/submit-answer", s.authed(s.limitedUser(s.handleSubmitAnswer), models.RoleCandidate))
	mux.Handle("POST /api/ai-interview/complete", s.authed(s.limitedUser(s.handleCompleteInterview), models.RoleCandidate))
	mux.Handle("GET /api/ai-interview/{id}", s.authed(s.handleGetSession))
	mux.Handle("GET /api/ai-interview/{id}/stream", s.authed(s.handleStream))

	mux.Handle("GET /api/interviews", s.authed(s.handleListInterviews))
	mux.Handle("GET /api/interviews/{id}", s.authed(s.handleInterviewReport))
	mux.Handle("POST /api/interviews/{id}/reviews", s.authed(s.handleCreateReview, models.RoleInterviewer, models.RoleCompany))

	mux.Handle("GET /api/jobs", s.authed(s.handleListJobs))
	mux.Handle("GET /api/jobs/{id}", s.authed(s.handleGetJob))
	mux.Handle("POST /api/jobs/{id}/apply", s.authed(s.handleApply, models.RoleCandidate))
	mux.Handle("GET /api/candidate/profile", s.authed(s.handleGetCandidateProfile, models.RoleCandidate))
	mux.Handle("PUT /api/candidate/profile", s.authed(s.handlePutCandidateProfile, models.RoleCandidate))
	mux.Handle("GET /api/candidate/applications", s.authed(s.handleCandidateApplications, models.RoleCandidate))

	company := models.RoleCompany
	mux.Handle("GET /api/company/profile", s.authed(s.handleGetCompanyProfile, company))
	mux.Handle("PUT /api/company/profile", s.authed(s.handlePutCompanyProfile, company))
	mux.Handle("GET /api/company/jobs", s.authed(s.handleCompanyJobs, company))
	mux.Handle("POST /api/company/jobs", s.authed(s.handleCreateJob, company))
	mux.Handle("PUT /api/company/jobs/{id}", s.authed(s.handleUpdateJob, company))
	mux.Handle("DELETE /api/company/jobs/{id}", s.authed(s.handleDeleteJob, company))
	mux.Handle("GET /api/company/jobs/{id}/applications", s.authed(s.handleJobApplications, company))
	mux.Handle("PUT /api/company/applications/{id}/status", s.authed(s.handleApplicationStatus, company))
	mux.Handle("POST /api/company/jobs/{id}/screen", s.authed(s.limitedUser(s.handleScreenJob), company))
	mux.Handle("GET /api/company/jobs/{id}/report", s.authed(s.handleJobReport, company))
	mux.Handle("POST /api/company/jobs/{id}/gmail-import", s.authed(s.limitedUser(s.handleGmailImport), company))

	return s.recoverMiddleware(s.loggingMiddleware(mux))
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.respondError(w, r, apperrors.Unavailable("database unavailable", err))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

type errorBody struct {
	Error string              `json:"error"`
	Type  apperrors.ErrorType `json:"type"`
}

// respondError maps err to a status code and writes {error, type}.
// Untyped and internal errors are logged and hidden from the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		de = apperrors.Internal("internal error", err)
	}

	status := statusFor(de.Type)
	message := de.Message
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("type", string(de.Type)),
			zap.Error(err),
			zap.ByteString("stack", de.StackTrace()))
		if de.Type == apperrors.ErrTypeInternal {
			message = "internal server error"
		}
	}

	s.respondJSON(w, status, errorBody{Error: message, Type: de.Type})
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrTypeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrTypeForbidden:
		return http.StatusForbidden
	case apperrors.ErrTypeConflict:
		return http.StatusConflict
	case apperrors.ErrTypeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid request body: %v", err), err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

type authedHandler func(w http.ResponseWriter, r *http.Request, claims *auth.Claims)

// authed verifies the bearer token and, when roles are given, the caller's role.
// WebSocket clients cannot set headers, so a token query parameter is accepted too.
func (s *Server) authed(next authedHandler, roles ...models.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			s.respondError(w, r, apperrors.Unauthorized("missing bearer token", nil))
			return
		}

		claims, err := s.auth.Verify(token)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			s.respondError(w, r, apperrors.Forbidden(fmt.Sprintf("not allowed for role %s", claims.Role), nil))
			return
		}

		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)), claims)
	})
}

func hasRole(role models.Role, allowed []models.Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// limited rejects anonymous clients that exceed the per-minute request budget.
// Request headers are caller-controlled, so the budget is kept per remote host.
func (s *Server) limited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(w, r, "host:"+remoteHost(r)) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitedUser applies the request budget to the verified caller; it runs inside authed
func (s *Server) limitedUser(next authedHandler) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
		if !s.allow(w, r, "user:"+claims.UserID) {
			return
		}
		next(w, r, claims)
	}
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, key string) bool {
	if s.limiter.allow(key, s.now()) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	s.respondError(w, r, apperrors.RateLimit("too many requests", nil))
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.respondError(w, r, apperrors.Internal("panic", fmt.Errorf("%v", v)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) publish(r *http.Request, subject string, payload any) {
	if err := s.publisher.Publish(r.Context(), subject, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
