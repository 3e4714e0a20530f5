package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Ning0612/Downsort/internal/config"
	"github.com/Ning0612/Downsort/internal/core/grouping"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/history"
	"github.com/Ning0612/Downsort/internal/logger"
	"github.com/Ning0612/Downsort/internal/service"
)

// Querier is the query surface served over HTTP
type Querier interface {
	ListAll(ctx context.Context, req service.Request) (*service.FilesResult, error)
	ListByExtension(ctx context.Context, req service.Request) (*service.GroupsResult, error)
	ListByDate(ctx context.Context, req service.Request) (*service.GroupsResult, error)
	FindDuplicates(ctx context.Context, req service.Request) (*service.DuplicatesResult, error)
}

// HistoryReader lists recorded queries
type HistoryReader interface {
	Recent(limit int) ([]history.Record, error)
}

const defaultHistoryLimit = 20

// Server exposes the query service as a JSON API
type Server struct {
	queries Querier
	history HistoryReader
	cfg     config.ServerConfig
	router  chi.Router
}

// New creates a server for q
func New(q Querier, cfg config.ServerConfig) *Server {
	s := &Server{queries: q, cfg: cfg}
	s.router = s.routes()
	return s
}

// SetHistory enables GET /api/history
func (s *Server) SetHistory(h HistoryReader) {
	s.history = h
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/files", s.listAll)
		r.Get("/groups/extension", s.listByExtension)
		r.Get("/groups/date", s.listByDate)
		r.Get("/duplicates", s.findDuplicates)
		r.Get("/history", s.listHistory)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Get().Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Get().Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func parseRequest(r *http.Request) service.Request {
	q := r.URL.Query()
	return service.Request{
		Root:     q.Get("root"),
		DateMode: grouping.DateMode(q.Get("mode")),
	}
}

func (s *Server) listAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.queries.ListAll(r.Context(), parseRequest(r))
	respond(w, r, res, err)
}

func (s *Server) listByExtension(w http.ResponseWriter, r *http.Request) {
	res, err := s.queries.ListByExtension(r.Context(), parseRequest(r))
	respond(w, r, res, err)
}

func (s *Server) listByDate(w http.ResponseWriter, r *http.Request) {
	res, err := s.queries.ListByDate(r.Context(), parseRequest(r))
	respond(w, r, res, err)
}

func (s *Server) findDuplicates(w http.ResponseWriter, r *http.Request) {
	res, err := s.queries.FindDuplicates(r.Context(), parseRequest(r))
	respond(w, r, res, err)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// respond writes a query result or maps its error to a status code
func respond[T any](w http.ResponseWriter, r *http.Request, res *T, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}

	// The caller is gone; nothing to answer
	if r.Context().Err() != nil {
		logger.Get().Debug("request abandoned", "path", r.URL.Path, "error", err)
		return
	}

	writeError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotDirectory), errors.Is(err, domain.ErrConfigInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger logs each request with its status and duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Get().Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
