// Package server exposes scans and plugin list builds over HTTP, with a
// WebSocket stream for build job progress.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/0x6d61/wpleech/internal/engine"
	"github.com/0x6d61/wpleech/internal/slugs"
)

// Config wires a Server.
type Config struct {
	// ListenAddr is the HTTP listen address (e.g. ":8080").
	ListenAddr string

	// Scanner runs POST /scan requests. Required.
	Scanner *engine.Scanner

	// Builder backs the /builder routes. Nil disables them.
	Builder *slugs.Builder

	Logger *slog.Logger
}

// Server is the HTTP + WebSocket API surface.
type Server struct {
	cfg      Config
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Scanner == nil {
		return nil, errors.New("server: scanner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Options("/scan", s.optionsHandler("POST"))
	r.Options("/builder/jobs", s.optionsHandler("GET, POST"))
	r.Options("/builder/jobs/{jobID}", s.optionsHandler("GET, DELETE"))

	r.Post("/scan", s.handleScan)

	r.Get("/builder/jobs", s.handleListJobs)
	r.Post("/builder/jobs", s.handleStartJob)
	r.Get("/builder/jobs/{jobID}", s.handleGetJob)
	r.Delete("/builder/jobs/{jobID}", s.handleCancelJob)

	r.Get("/ws/builder/jobs/{jobID}", s.handleJobWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("http_request", "method", r.Method, "path", r.URL.Path)
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // scans and streams run long
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- Scans ---

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding scan body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.TargetURL == "" {
		writeError(w, http.StatusBadRequest, "target_url is required")
		return
	}
	target, err := engine.NewScanTarget(body.TargetURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scanner := s.cfg.Scanner
	if body.ScanLevel != nil {
		scanner = scanner.WithLevel(engine.ScanLevel(*body.ScanLevel))
	}

	report, err := scanner.Scan(r.Context(), target)
	if err != nil {
		s.logger.Warn("scan failed", "target", target.URL(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("scan finished",
		"target", report.Target.URL(),
		"level", scanner.Config().Level,
		"wordpress", report.Detection.IsWordPress,
		"vulnerable", report.VulnerableCount(),
	)

	writeJSON(w, http.StatusOK, report)
}

// --- Builder jobs ---

func (s *Server) builder(w http.ResponseWriter) *slugs.Builder {
	if s.cfg.Builder == nil {
		writeError(w, http.StatusServiceUnavailable, "plugin list builder is not configured")
	}
	return s.cfg.Builder
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	b := s.builder(w)
	if b == nil {
		return
	}

	var body StartBuildRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	job, err := b.Start(r.Context(), slugs.Sort(body.mode()), body.total())
	if err != nil {
		if errors.Is(err, slugs.ErrInvalidSort) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Warn("starting build job", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("started build job", "job_id", job.ID, "sort", job.Sort, "total", job.Total)
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	b := s.builder(w)
	if b == nil {
		return
	}
	recs, err := b.Records(r.Context())
	if err != nil {
		s.logger.Warn("listing build jobs", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []slugs.JobRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	b := s.builder(w)
	if b == nil {
		return
	}
	jobID := chi.URLParam(r, "jobID")
	rec, err := b.Record(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	b := s.builder(w)
	if b == nil {
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job := b.Get(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	s.logger.Info("canceled build job", "job_id", jobID)
	writeJSON(w, http.StatusNoContent, nil)
}

// handleJobWS streams a running job's events. The job's current state is
// sent first and its final state last.
func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	b := s.builder(w)
	if b == nil {
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job := b.Get(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(job.Snapshot()); err != nil {
		return
	}
	for ev := range job.Events() {
		if err := conn.WriteJSON(ev); err != nil {
			// Client went away; the build keeps running.
			s.logger.Debug("websocket client disconnected", "job_id", jobID, "error", err)
			return
		}
	}
	<-job.Done()
	_ = conn.WriteJSON(job.Snapshot())
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, fmt.Sprintf("job %s finished", jobID)))
}
