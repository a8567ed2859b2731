package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vbonduro/opname/internal/service"
)

type Server struct {
	audits    *service.AuditService
	migrator  *service.LegacyMigrator
	sweeper   *service.Sweeper
	maxUpload int64
	mux       *http.ServeMux
	logger    *slog.Logger
}

func NewServer(audits *service.AuditService, migrator *service.LegacyMigrator, sweeper *service.Sweeper,
	maxUpload int64, logger *slog.Logger) *Server {
	s := &Server{
		audits:    audits,
		migrator:  migrator,
		sweeper:   sweeper,
		maxUpload: maxUpload,
		mux:       http.NewServeMux(),
		logger:    logger.With("component", "http"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /audits", s.handleCreateAudit)
	s.mux.HandleFunc("GET /audits", s.handleListAudits)
	s.mux.HandleFunc("GET /audits/{id}", s.handleGetAudit)
	s.mux.HandleFunc("PATCH /audits/{id}", s.handleUpdateAudit)
	s.mux.HandleFunc("DELETE /audits/{id}", s.handleDeleteAudit)
	s.mux.HandleFunc("PUT /audits/{id}/sections/{section}", s.handleSubmitSection)

	s.mux.HandleFunc("GET /audits/{id}/photos", s.handleListPhotos)
	s.mux.HandleFunc("POST /audits/{id}/photos", s.handleUploadAuditPhoto)
	s.mux.HandleFunc("GET /audits/{id}/photos/{photoID}", s.handleGetPhoto)
	s.mux.HandleFunc("DELETE /audits/{id}/photos/{photoID}", s.handleDeleteAuditPhoto)
	s.mux.HandleFunc("POST /audits/{id}/sections/{section}/photos", s.handleUploadSectionPhoto)
	s.mux.HandleFunc("DELETE /audits/{id}/sections/{section}/photos/{photoID}", s.handleDeleteSectionPhoto)

	s.mux.HandleFunc("POST /audits/{id}/contacts", s.handleAddContact)
	s.mux.HandleFunc("GET /audits/{id}/contacts", s.handleListContacts)
	s.mux.HandleFunc("DELETE /audits/{id}/contacts/{contactID}", s.handleDeleteContact)
	s.mux.HandleFunc("PUT /audits/{id}/advanced/{key}", s.handlePutAdvanced)
	s.mux.HandleFunc("GET /audits/{id}/advanced/{key}", s.handleGetAdvanced)
	s.mux.HandleFunc("GET /audits/{id}/media-check", s.handleCheckMedia)

	s.mux.HandleFunc("POST /admin/sweep", s.handleSweep)
	s.mux.HandleFunc("POST /admin/legacy-import", s.handleLegacyImport)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// securityHeaders sets security-related response headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
