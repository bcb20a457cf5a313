package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docsync/agent/internal/docsync"
	"github.com/docsync/agent/internal/metrics"
)

// weeklyCron fires Sunday at midnight.
const weeklyCron = "0 0 * * 0"

// Runner executes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, job docsync.Job) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job docsync.Job) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, job docsync.Job) error { return f(ctx, job) }

// ScheduleRegistrar is the scheduler surface the API needs: registering a
// new entry on submit and deregistering on delete.
type ScheduleRegistrar interface {
	Register(entry docsync.ScheduleEntry) error
	Remove(scheduleID string)
}

// Server wires HTTP handlers to the stores, runner, and scheduler.
type Server struct {
	router    chi.Router
	jobs      docsync.JobStore
	docs      docsync.DocumentStore
	schedules docsync.ScheduleStore
	registrar ScheduleRegistrar
	runner    Runner
	idGen     docsync.IDGenerator
	clock     docsync.Clock
	logger    *zap.Logger
	cancels   *cancelRegistry
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs docsync.JobStore,
	docs docsync.DocumentStore,
	schedules docsync.ScheduleStore,
	registrar ScheduleRegistrar,
	runner Runner,
	idGen docsync.IDGenerator,
	clock docsync.Clock,
	logger *zap.Logger,
) *Server {
	metrics.Init()
	s := &Server{
		jobs:      jobs,
		docs:      docs,
		schedules: schedules,
		registrar: registrar,
		runner:    runner,
		idGen:     idGen,
		clock:     clock,
		logger:    logger.Named("api"),
		cancels:   newCancelRegistry(),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/", s.listJobs)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Get("/documents", s.listDocuments)
				r.Post("/cancel", s.cancelJob)
			})
		})
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", s.listSchedules)
			r.Delete("/{schedule_id}", s.deleteSchedule)
		})
		r.Get("/stats", s.stats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LaunchJob starts the job in the background with a registered cancel
// token. Usable directly as a scheduler launch func.
func (s *Server) LaunchJob(job docsync.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels.add(job.ID, cancel)
	go func() {
		defer s.cancels.remove(job.ID)
		defer cancel()
		if err := s.runner.Run(ctx, job); err != nil {
			s.logger.Warn("job run ended with error",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}()
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.jobs.ListJobs(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitJobRequest struct {
	Manufacturer  string   `json:"manufacturer_name"`
	Domain        string   `json:"domain"`
	ProductLines  []string `json:"product_lines"`
	FolderPath    string   `json:"folder_path"`
	WeeklyRecrawl bool     `json:"weekly_recrawl"`
}

func (r submitJobRequest) validate() error {
	if strings.TrimSpace(r.Manufacturer) == "" {
		return errors.New("manufacturer_name is required")
	}
	if strings.TrimSpace(r.Domain) == "" {
		return errors.New("domain is required")
	}
	return nil
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate job id")
		return
	}
	now := s.clock.Now()
	job := docsync.Job{
		ID:            jobID,
		Manufacturer:  strings.TrimSpace(req.Manufacturer),
		Domain:        strings.TrimSpace(req.Domain),
		ProductLines:  req.ProductLines,
		FolderPath:    strings.Trim(req.FolderPath, "/"),
		WeeklyRecrawl: req.WeeklyRecrawl,
		Status:        docsync.JobStatusPending,
		Submitted:     now,
		Updated:       now,
	}
	if err := s.jobs.CreateJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create job: %v", err))
		return
	}

	resp := map[string]string{"job_id": jobID}
	if req.WeeklyRecrawl {
		scheduleID, err := s.createSchedule(r.Context(), job)
		if err != nil {
			s.logger.Error("schedule creation failed",
				zap.String("job_id", jobID), zap.Error(err))
		} else {
			resp["schedule_id"] = scheduleID
		}
	}

	s.LaunchJob(job)
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) createSchedule(ctx context.Context, job docsync.Job) (string, error) {
	scheduleID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate schedule id: %w", err)
	}
	entry := docsync.ScheduleEntry{
		ID:           scheduleID,
		JobID:        job.ID,
		Manufacturer: job.Manufacturer,
		Domain:       job.Domain,
		ProductLines: job.ProductLines,
		FolderPath:   job.FolderPath,
		CronExpr:     weeklyCron,
		Enabled:      true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.schedules.CreateSchedule(ctx, entry); err != nil {
		return "", fmt.Errorf("create schedule: %w", err)
	}
	if err := s.registrar.Register(entry); err != nil {
		return "", fmt.Errorf("register schedule: %w", err)
	}
	return scheduleID, nil
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list jobs")
		return
	}
	if jobs == nil {
		jobs = []docsync.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.jobs.GetJob(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	docs, err := s.docs.ListDocuments(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list documents")
		return
	}
	if docs == nil {
		docs = []docsync.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status.IsTerminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("job already %s", job.Status))
		return
	}

	if s.cancels.cancel(jobID) {
		// The running job persists its own cancelled status.
		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": jobID,
			"status": "cancelling",
		})
		return
	}

	// No live run (service restarted mid-job); settle the record directly.
	if err := s.jobs.UpdateJobStatus(
		r.Context(), jobID, docsync.JobStatusCancelled, "", job.Counters,
	); err != nil {
		writeError(w, http.StatusInternalServerError, "cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(docsync.JobStatusCancelled),
	})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	entries, err := s.schedules.ListSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list schedules")
		return
	}
	if entries == nil {
		entries = []docsync.ScheduleEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": entries})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "schedule_id")
	if err := s.schedules.DeleteSchedule(r.Context(), scheduleID); err != nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	s.registrar.Remove(scheduleID)
	writeJSON(w, http.StatusOK, map[string]string{"schedule_id": scheduleID, "deleted": "true"})
}

type statsResponse struct {
	TotalJobs         int            `json:"total_jobs"`
	JobsByStatus      map[string]int `json:"jobs_by_status"`
	DocumentsFound    int            `json:"documents_found"`
	DocumentsAccepted int            `json:"documents_accepted"`
	DocumentsUploaded int            `json:"documents_uploaded"`
	ActiveSchedules   int            `json:"active_schedules"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list jobs")
		return
	}
	resp := statsResponse{
		TotalJobs:    len(jobs),
		JobsByStatus: map[string]int{},
	}
	for _, job := range jobs {
		resp.JobsByStatus[string(job.Status)]++
		resp.DocumentsFound += job.Counters.Found
		resp.DocumentsAccepted += job.Counters.Accepted
		resp.DocumentsUploaded += job.Counters.Uploaded
	}
	if enabled, err := s.schedules.ListEnabled(r.Context()); err == nil {
		resp.ActiveSchedules = len(enabled)
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
