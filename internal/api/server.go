package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/config"
	"github.com/JakeFAU/normattiva-catalog/internal/metrics"
)

// MaxTargetsPerRequest bounds the size of one submission.
const MaxTargetsPerRequest = 500

// Enqueuer hands jobs to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, job catalog.Job) error
}

// CatalogReader reads stored documents and articles.
type CatalogReader interface {
	GetDocument(ctx context.Context, id int64) (catalog.Document, error)
	ListArticles(ctx context.Context, documentID int64) ([]catalog.Article, error)
}

// Server wires HTTP handlers to the queue and stores.
type Server struct {
	router   chi.Router
	jobStore catalog.JobStore
	reader   CatalogReader
	enqueuer Enqueuer
	idGen    catalog.IDGenerator
	now      func() time.Time
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobStore catalog.JobStore,
	reader CatalogReader,
	enqueuer Enqueuer,
	idGen catalog.IDGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobStore: jobStore,
		reader:   reader,
		enqueuer: enqueuer,
		idGen:    idGen,
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      cfg,
		logger:   logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.recoverMiddleware)
	if timeout := cfg.RequestTimeout(); timeout > 0 {
		r.Use(timeoutMiddleware(timeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/documents", s.submitDocuments)
		r.Get("/jobs/{job_id}", s.getJob)
		r.Route("/documents/{document_id}", func(r chi.Router) {
			r.Get("/", s.getDocument)
			r.Get("/articles", s.listArticles)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type targetRequest struct {
	Year         int    `json:"year"`
	Number       string `json:"number"`
	Consolidated *bool  `json:"consolidated"`
	URL          string `json:"url"`
}

type submitRequest struct {
	Targets []targetRequest `json:"targets"`
}

type submitResponse struct {
	JobIDs []string `json:"job_ids"`
	Error  string   `json:"error,omitempty"`
}

func (s *Server) submitDocuments(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	targets, err := s.toTargets(req.Targets)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := submitResponse{JobIDs: make([]string, 0, len(targets))}
	for _, target := range targets {
		jobID, err := s.enqueueJob(r.Context(), target)
		if err != nil {
			s.logger.Error("enqueue job failed", zap.String("target", target.String()), zap.Error(err))
			resp.Error = err.Error()
			status := http.StatusServiceUnavailable
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusRequestTimeout
			}
			s.writeJSON(w, status, resp)
			return
		}
		resp.JobIDs = append(resp.JobIDs, jobID)
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) toTargets(reqs []targetRequest) ([]catalog.DocumentTarget, error) {
	if len(reqs) == 0 {
		return nil, errors.New("targets required")
	}
	if len(reqs) > MaxTargetsPerRequest {
		return nil, fmt.Errorf("at most %d targets per request", MaxTargetsPerRequest)
	}
	targets := make([]catalog.DocumentTarget, 0, len(reqs))
	for i, req := range reqs {
		target := catalog.DocumentTarget{
			Year:         req.Year,
			Number:       req.Number,
			Consolidated: boolOrDefault(req.Consolidated, s.cfg.Source.Consolidated),
			URL:          req.URL,
		}
		if target.URL != "" {
			u, err := url.Parse(target.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("targets[%d]: url must be an absolute http(s) URL", i)
			}
		} else if target.Year <= 0 || target.Number == "" {
			return nil, fmt.Errorf("targets[%d]: year and number required", i)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func (s *Server) enqueueJob(ctx context.Context, target catalog.DocumentTarget) (string, error) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	job := catalog.Job{
		ID:        jobID,
		Target:    target,
		Status:    catalog.JobStatusQueued,
		Submitted: s.now(),
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.enqueuer.Enqueue(queueCtx, job); err != nil {
		if uerr := s.jobStore.UpdateJobStatus(
			context.WithoutCancel(ctx), jobID, catalog.JobStatusFailed, err.Error(), 0, catalog.JobCounters{},
		); uerr != nil {
			s.logger.Warn("mark unqueued job failed", zap.String("job_id", jobID), zap.Error(uerr))
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, nil
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeLookupError(w, "job", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	doc, err := s.reader.GetDocument(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, "document", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

// articleView is one canonical identity: its base row and the updates that
// reference it, in sequence order.
type articleView struct {
	CanonicalNumber string              `json:"canonical_number"`
	Kind            catalog.ContentKind `json:"content_kind"`
	CurrentLabel    string              `json:"current_version_label"`
	Base            *catalog.Article    `json:"base"`
	Updates         []catalog.Article   `json:"updates"`
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	if _, err := s.reader.GetDocument(r.Context(), id); err != nil {
		s.writeLookupError(w, "document", err)
		return
	}
	rows, err := s.reader.ListArticles(r.Context(), id)
	if err != nil {
		s.logger.Error("list articles failed", zap.Int64("document_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"articles":    groupArticles(rows),
	})
}

// groupArticles folds rows already in identity order into per-identity views.
func groupArticles(rows []catalog.Article) []articleView {
	views := make([]articleView, 0)
	index := make(map[string]int)
	for _, row := range rows {
		key := string(row.Kind) + "|" + row.CanonicalNumber
		i, ok := index[key]
		if !ok {
			i = len(views)
			index[key] = i
			views = append(views, articleView{
				CanonicalNumber: row.CanonicalNumber,
				Kind:            row.Kind,
				Updates:         []catalog.Article{},
			})
		}
		view := &views[i]
		if row.IsBase() {
			base := row
			view.Base = &base
		} else {
			view.Updates = append(view.Updates, row)
		}
		if row.IsCurrent {
			view.CurrentLabel = row.VersionLabel
		}
	}
	return views
}

func (s *Server) documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "document_id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

func (s *Server) writeLookupError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.Error("lookup failed", zap.String("resource", what), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "failed to load "+what)
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
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
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
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
				s.writeError(w, http.StatusInternalServerError, "internal server error")
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

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized"}, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload, s.logger)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
