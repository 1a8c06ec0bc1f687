// Package server exposes the registry API, receipt issuing, the photo viewer and health checks over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/export"
	"github.com/joseph-ayodele/photo-receipts/internal/gallery"
	"github.com/joseph-ayodele/photo-receipts/internal/pipeline"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
)

// Deps are the collaborators the HTTP surface needs. Processor, Export and Gallery are optional;
// their routes answer 503 when unset.
type Deps struct {
	Photos    repository.PhotoRepository
	Processor *pipeline.Processor
	Export    *export.Service
	Gallery   *gallery.Hub
	// Health reports registry health for /healthz.
	Health func(r *http.Request) error

	MediaHosts  []string
	Location    *time.Location
	MaxUploadMB int
	// MediaClient fetches registered images for downloads.
	MediaClient *http.Client
}

type Server struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.MaxUploadMB <= 0 {
		deps.MaxUploadMB = 25
	}
	if deps.MediaClient == nil {
		deps.MediaClient = &http.Client{Timeout: 30 * time.Second}
	}
	if len(deps.MediaHosts) == 0 {
		deps.MediaHosts = []string{"res.cloudinary.com"}
	}
	return &Server{deps: deps, logger: logger}
}

// Router builds the HTTP routes. Paths are matched encoded so identifiers may contain "/".
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/photos", s.handlePutPhoto).Methods(http.MethodPost)
	api.HandleFunc("/photos", s.handleGetPhoto).Methods(http.MethodGet)
	api.HandleFunc("/receipts", s.handleCreateReceipt).Methods(http.MethodPost)
	api.HandleFunc("/receipts/export.xlsx", s.handleExport).Methods(http.MethodGet)

	r.HandleFunc("/photo/{id}", s.handleViewer).Methods(http.MethodGet)
	r.HandleFunc("/photo/{id}/download", s.handleDownload).Methods(http.MethodGet)

	if s.deps.Gallery != nil {
		r.HandleFunc("/ws/gallery", s.deps.Gallery.ServeWS)
	}
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer (websocket hijack).
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws/gallery" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http.request",
			"req_id", common.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.EscapedPath(),
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps err onto a status and a JSON body. Internal details are not echoed for 5xx.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= 500 {
		s.logger.Error("http.request.failed",
			"req_id", common.RequestIDFromContext(r.Context()),
			"path", r.URL.EscapedPath(),
			"error", err,
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorBody{Error: msg, Code: common.ErrorCode(err)})
}
