package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/storage"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generate requests block for the whole pipeline; keep writes open
		// well past the configured job timeout.
		WriteTimeout: time.Duration(cfg.Workflow.JobTimeout+60) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()

	r.Get("/download/{token}", s.handleDownload)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(token))

		r.Get("/status", s.handleStatus)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Post("/jobs/{jobID}/uploaded", s.handleMarkUploaded)
		r.Post("/generate", s.handleGenerate)
		r.Post("/broll", s.handleBroll)
		r.Get("/credits/{userID}", s.handleCredits)
		r.Post("/credits/{userID}", s.handleAddCredits)
		r.Get("/queue/health", s.handleQueueHealth)
		r.Post("/queue/retry", s.handleRetry)
		r.Post("/queue/clear", s.handleClear)
		r.Delete("/queue/{jobID}", s.handleRemove)
		r.Post("/notify/test", s.handleTestNotification)
	})

	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// bearerAuth validates "Authorization: Bearer <token>" headers. An empty
// token disables authentication.
func bearerAuth(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		QueueStats:   status.QueueStats,
	})
}

func (s *apiServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req api.CreateJobRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	job, err := s.daemon.CreateJob(r.Context(), req.UserID, req.Source, req.ObjectKey, req.SourceURL, api.ToClips(req.Clips))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.daemon.ListJobs(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}
	job, err := s.daemon.GetJob(r.Context(), userID, chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleMarkUploaded(w http.ResponseWriter, r *http.Request) {
	var req api.MarkUploadedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	job, err := s.daemon.MarkUploaded(r.Context(), req.UserID, chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	job, err := s.daemon.Generate(r.Context(), req.UserID, req.Text)
	if err != nil && job == nil {
		s.writeServiceError(w, err)
		return
	}
	// A failed generation still has a job record; return it alongside the
	// failure status so clients can inspect the error message.
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleBroll(w http.ResponseWriter, r *http.Request) {
	var req api.BrollRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	candidates, err := s.daemon.SuggestBroll(r.Context(), req.Text)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := api.BrollResponse{Candidates: make([]api.BrollCandidate, 0, len(candidates))}
	for _, candidate := range candidates {
		resp.Candidates = append(resp.Candidates, api.BrollCandidate{
			Keyword: candidate.Keyword,
			URL:     candidate.URL,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCredits(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	balance, err := s.daemon.Balance(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CreditsResponse{UserID: userID, Balance: balance})
}

func (s *apiServer) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	var req api.AddCreditsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "userID")
	balance, err := s.daemon.AddCredits(r.Context(), userID, req.Amount)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CreditsResponse{UserID: userID, Balance: balance})
}

func (s *apiServer) handleQueueHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.QueueHealth(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueHealthResponse{
		Total:      health.Total,
		Waiting:    health.Waiting,
		Ready:      health.Ready,
		Processing: health.Processing,
		Failed:     health.Failed,
		Complete:   health.Complete,
	})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req api.RetryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	count, err := s.daemon.RetryFailed(r.Context(), req.IDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	count, err := s.daemon.ClearQueue(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
}

func (s *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.RemoveJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: 1})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, message)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TestNotificationResponse{Sent: sent, Message: message})
}

// handleDownload verifies a signed token and streams the published object.
// Download links require no bearer token; the signature is the credential.
func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	key, err := s.daemon.signer.Verify(chi.URLParam(r, "token"))
	switch {
	case errors.Is(err, storage.ErrLinkExpired):
		s.writeError(w, http.StatusGone, "download link expired")
		return
	case err != nil:
		s.writeError(w, http.StatusForbidden, "invalid download link")
		return
	}

	rc, err := s.daemon.objects.Get(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "object no longer available")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "media store read failed")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", "attachment")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("download stream interrupted",
			logging.String("object_key", key),
			logging.Error(err),
		)
	}
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps service error markers to HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInsufficientCredits):
		status = http.StatusPaymentRequired
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrNoUsableMedia),
		errors.Is(err, services.ErrAcquisition),
		errors.Is(err, services.ErrTranscode),
		errors.Is(err, services.ErrPublish):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	s.writeError(w, status, services.Message(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
