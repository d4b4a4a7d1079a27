package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sincro-go/internal/metrics"
	"sincro-go/internal/sincro"
)

// Server exposes the Service as a local JSON API. Every response body is an
// envelope: {"success":true,"data":...} or {"success":false,"error":"..."}.
type Server struct {
	router chi.Router
	svc    *sincro.Service
	logger sincro.Logger
}

func NewServer(svc *sincro.Service, logger sincro.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.instrument)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/global-excludes", s.handleGlobalExcludes)

		r.Get("/files", s.handleListFiles)
		r.Post("/files", s.handleCreateFile)
		r.Post("/bundles", s.handleCreateBundle)
		r.Route("/files/{fileID}", func(r chi.Router) {
			r.Get("/", s.handleGetFile)
			r.Patch("/", s.handleUpdateFile)
			r.Delete("/", s.handleDeleteFile)
			r.Get("/entries", s.handleBundleEntries)
			r.Get("/deployments", s.handleListDeployments)
			r.Get("/tags", s.handleGetFileTags)
			r.Put("/tags", s.handleSetFileTags)
		})

		r.Post("/deployments", s.handleCreateDeployment)
		r.Route("/deployments/{deploymentID}", func(r chi.Router) {
			r.Get("/", s.handleGetDeployment)
			r.Delete("/", s.handleDeleteDeployment)
			r.Patch("/description", s.handleUpdateDescription)
			r.Post("/deactivate", s.handleDeactivate)
			r.Post("/reactivate", s.handleReactivate)
			r.Post("/sync", s.handleSync)
			r.Get("/exists", s.handleFileExists)
			r.Get("/exclude-status", s.handleExcludeStatus)
			r.Get("/tags", s.handleGetDeploymentTags)
			r.Put("/tags", s.handleSetDeploymentTags)

			r.Post("/commit", s.handleCommit)
			r.Post("/checkout", s.handleCheckout)
			r.Get("/changes", s.handleCheckForChanges)
			r.Get("/commits", s.handleListCommits)
			r.Get("/diff", s.handleDiff)
			r.Get("/diff/working", s.handleDiffWorkingTree)
			r.Get("/revisions/{hash}", s.handleFilesAtRevision)
			r.Get("/revisions/{hash}/content", s.handleFileAtRevision)
			r.Get("/current", s.handleCurrentFiles)
		})

		r.Get("/tags", s.handleListTags)
		r.Post("/tags", s.handleCreateTag)
		r.Delete("/tags/{tagID}", s.handleDeleteTag)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
		s.logger.Debug("request", "method", r.Method, "route", route, "status", status, "dur", time.Since(start))
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sincro.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sincro.ErrNoChanges), errors.Is(err, sincro.ErrDuplicateDeployment), errors.Is(err, sincro.ErrStoreExists):
		return http.StatusConflict
	case errors.Is(err, sincro.ErrInvalidArgument), errors.Is(err, sincro.ErrNotAGitRepo), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, sincro.ErrMissingDeployedContent):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, errBadRequest)
	}
	return nil
}
