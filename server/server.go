// Package server exposes the download proxy and the upstream API relay
// over HTTP.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gaurav-prasanna/deckproxy/core/pipeline"
	"github.com/gaurav-prasanna/deckproxy/upstream"
)

// Server holds the request-independent collaborators.
type Server struct {
	pipeline *pipeline.Pipeline
	upstream *upstream.Client
	logger   *zap.Logger
}

// New creates a Server.
func New(p *pipeline.Pipeline, u *upstream.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pipeline: p, upstream: u, logger: logger}
}

// Handler builds the route table wrapped with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/proxy-download", s.handleProxyDownload)

	// Upstream API relay.
	mux.HandleFunc("/api/create-task", s.handleCreateTask)
	mux.HandleFunc("/api/get-task/", s.handleGetTask)
	mux.HandleFunc("/api/upload-file", s.handleUploadFile)
	mux.HandleFunc("/api/list-files", s.handleListFiles)
	mux.HandleFunc("/api/delete-file/", s.handleDeleteFile)

	return s.logRequests(cors(mux))
}

// Start runs the HTTP server on the given port until it fails.
func (s *Server) Start(port int) error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second, // deck compilation downloads many images
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting deckproxy server", zap.Int("port", port))
	return httpServer.ListenAndServe()
}

// cors wraps a handler with permissive CORS headers and answers
// preflight requests directly.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests tags every request with an id and logs its outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			zap.String("request_id", uuid.NewString()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
