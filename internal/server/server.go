// Package server provides the HTTP API for scenedex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/config"
	"github.com/scenedex/scenedex/internal/ingest"
	"github.com/scenedex/scenedex/internal/search"
	"github.com/scenedex/scenedex/internal/stats"
)

// Server is the HTTP server for the scenedex API.
type Server struct {
	engine      *search.Engine
	coordinator *ingest.Coordinator
	stats       *stats.Cache
	queryLog    *QueryLog
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. queryLog may be nil
// to disable query logging.
func NewServer(
	engine *search.Engine,
	coordinator *ingest.Coordinator,
	statsCache *stats.Cache,
	queryLog *QueryLog,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:      engine,
		coordinator: coordinator,
		stats:       statsCache,
		queryLog:    queryLog,
		config:      cfg,
		logger:      logger,
	}
}

// Router builds the HTTP routes with middleware and per-route rate limits.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	searchLimit := newRateLimiter(s.config.RateLimit.SearchPerMinute)
	defaultLimit := newRateLimiter(s.config.RateLimit.DefaultPerMinute)

	r.Group(func(r chi.Router) {
		r.Use(searchLimit.middleware)
		r.Get("/search", s.handleSearch)
	})
	r.Group(func(r chi.Router) {
		r.Use(defaultLimit.middleware)
		r.Get("/similar", s.handleSimilar)
		r.Get("/stats", s.handleStats)
		r.Get("/random", s.handleRandom)
		r.Get("/characters", s.handleCharacters)
		r.Post("/frame/delete", s.handleDeleteFrame)
	})
	r.Get("/health", s.handleHealth)

	// Frame images and thumbnails are served straight off disk.
	if s.config.Storage.FramesDir != "" {
		fileServer(r, "/frames", s.config.Storage.FramesDir)
	}
	if s.config.Storage.ThumbsDir != "" {
		fileServer(r, "/thumbs", s.config.Storage.ThumbsDir)
	}
	return r
}

func fileServer(r chi.Router, prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
