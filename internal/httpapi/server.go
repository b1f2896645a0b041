// Package httpapi serves the block library, live page documents and
// previews over HTTP for the editor front end.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
	"sitebuilder/internal/metrics"
	"sitebuilder/internal/service"
)

// Deps holds the services the API is built on.
type Deps struct {
	Sites   *service.SiteService
	Blocks  *service.BlockService
	Editor  *service.EditorService
	Publish *service.PublishService
}

type Server struct {
	sites   *service.SiteService
	blocks  *service.BlockService
	editor  *service.EditorService
	publish *service.PublishService
	log     *logrus.Entry
}

func New(deps Deps) *Server {
	return &Server{
		sites:   deps.Sites,
		blocks:  deps.Blocks,
		editor:  deps.Editor,
		publish: deps.Publish,
		log:     logrus.WithField("component", "http"),
	}
}

// Router returns the full handler tree, /metrics included.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	s.RegisterHTTP(r)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// RegisterHTTP registers the API and preview endpoints on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/blocks", s.handleListBlocks)
		r.Get("/blocks/{id}", s.handleGetBlock)
		r.Put("/blocks/{id}", s.handlePutBlock)
		r.Delete("/blocks/{id}", s.handleDeleteBlock)

		r.Get("/pages/{id}/document", s.handleGetDocument)
		r.Post("/pages/{id}/inject", s.handleInject)
	})
	r.Get("/preview/{id}/static", s.handlePreviewStatic)
	r.Get("/preview/{id}/shell", s.handlePreviewShell)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ── Middleware ─────────────────────────────────────────────

// instrument logs every request and records it under its route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTP(r.Method, route, status)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   status,
			"duration": time.Since(start).Round(time.Microsecond).String(),
			"request":  middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// ── Responses ──────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps service errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var structural *document.StructuralError
	var malformed *document.SerializationError
	switch {
	case errors.Is(err, domain.ErrBlockNotFound), errors.Is(err, domain.ErrPageNotFound), errors.Is(err, domain.ErrSiteNotFound):
		status = http.StatusNotFound
	case errors.As(err, &structural), errors.As(err, &malformed), errors.Is(err, service.ErrNoRootContent):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrPublishInProgress):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
