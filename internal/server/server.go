// Package server provides the HTTP API for Loomi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/config"
	"github.com/DekelUsach/Loomi-backend/internal/ingest"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
	"github.com/DekelUsach/Loomi-backend/internal/qa"
	"github.com/DekelUsach/Loomi-backend/internal/storage"
	"github.com/DekelUsach/Loomi-backend/internal/vector"
)

// Uploader runs the upload pipeline.
type Uploader interface {
	Upload(ctx context.Context, up ingest.Upload) (*ingest.Result, error)
}

// Answerer answers questions and builds quizzes.
type Answerer interface {
	Ask(ctx context.Context, id, question string) qa.Answer
	GenerateQuiz(ctx context.Context, req qa.QuizRequest) (string, error)
}

// IndexStats reports the resident story index.
type IndexStats interface {
	Stats() vector.Stats
}

// LibraryWatcher adds and removes watched library directories at runtime.
type LibraryWatcher interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// ImageSource resolves stored illustration references to files.
type ImageSource interface {
	Open(ref string) (string, error)
}

// Server is the HTTP server for the Loomi API.
type Server struct {
	uploader Uploader
	answerer Answerer
	tracker  *progress.Tracker
	store    storage.Store
	index    IndexStats
	watcher  LibraryWatcher
	images   ImageSource
	cfg      *config.Config
	// configPath is where library directory changes are persisted; empty disables it.
	configPath string
	cfgMu      sync.Mutex
	auth       *authenticator
	validate   *validator.Validate
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLibraryWatcher enables the library directory routes.
func WithLibraryWatcher(w LibraryWatcher, configPath string) Option {
	return func(s *Server) {
		s.watcher = w
		s.configPath = configPath
	}
}

// WithIndexStats adds story index statistics to the status route.
func WithIndexStats(st IndexStats) Option {
	return func(s *Server) { s.index = st }
}

// WithImages serves stored illustrations under /images.
func WithImages(src ImageSource) Option {
	return func(s *Server) { s.images = src }
}

// NewServer creates a server with the given dependencies. cfg must not be nil.
func NewServer(
	uploader Uploader,
	answerer Answerer,
	tracker *progress.Tracker,
	store storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		uploader: uploader,
		answerer: answerer,
		tracker:  tracker,
		store:    store,
		cfg:      cfg,
		auth:     newAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	timeout := time.Duration(s.cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/images/{name}", s.handleImage)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/progress/{token}", s.handleProgress)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware)
			r.Post("/documents", s.handleUpload)
			r.Post("/ask", s.handleAsk)
			r.Post("/quiz", s.handleQuiz)
			r.Get("/texts", s.handleListUserTexts)
			r.Get("/texts/{id}/paragraphs", s.handleUserParagraphs)
			r.Get("/library", s.handleListLibrary)
			r.Get("/library/{id}/paragraphs", s.handleLibraryParagraphs)
			r.Get("/library/directories", s.handleDirectoriesList)
			r.Post("/library/directories", s.handleDirectoriesAdd)
			r.Delete("/library/directories", s.handleDirectoriesRemove)
		})
	})
	return r
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.Bool("auth", s.auth.enabled()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
