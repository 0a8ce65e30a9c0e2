// Package server exposes document sessions over HTTP.
//
// Every document is addressed by its store ID. A session holding the
// state manager is created on first access, loaded from the store when
// the document exists, and evicted when the session capacity is
// exceeded. Unsaved changes of an evicted session are lost.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/triptych/internal/frame"
	"github.com/stateful/triptych/internal/lru"
	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/preview/markers"
	"github.com/stateful/triptych/pkg/preview/render"
	"github.com/stateful/triptych/pkg/preview/scrollsync"
	"github.com/stateful/triptych/pkg/store"
)

const (
	DefaultSessionCapacity = 16

	maxBodySize = 8 << 20 // 8 MiB
)

type Config struct {
	Address         string
	SessionCapacity int
	HistoryCapacity int
	ShutdownTimeout time.Duration
}

// Server routes the document API. It is an [http.Handler]; Serve
// runs it on the configured address.
type Server struct {
	cfg        Config
	codec      document.Codec
	store      store.Store
	scheduler  frame.Scheduler
	renderer   render.Renderer
	scanner    markers.Scanner
	scrollSync scrollsync.Config
	logger     *zap.Logger

	router   chi.Router
	sessions *lru.Cache[*session]

	lis        net.Listener
	httpServer *http.Server
}

type Option func(*Server)

// WithRenderer enables the preview endpoints.
func WithRenderer(r render.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithMarkerFill sets the paint identifying markers in rendered pages.
func WithMarkerFill(fill string) Option {
	return func(s *Server) {
		s.scanner.Fill = fill
	}
}

// WithScrollSync sets the scroll sync tuning served to clients.
func WithScrollSync(cfg scrollsync.Config) Option {
	return func(s *Server) {
		s.scrollSync = cfg
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server. The scheduler drives the state managers of
// all sessions and must be safe to use from request goroutines.
func New(cfg Config, codec document.Codec, st store.Store, scheduler frame.Scheduler, opts ...Option) *Server {
	if cfg.SessionCapacity <= 0 {
		cfg.SessionCapacity = DefaultSessionCapacity
	}

	s := &Server{
		cfg:        cfg,
		codec:      codec,
		store:      st,
		scheduler:  scheduler,
		scrollSync: scrollsync.DefaultConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sessions = lru.NewCache(cfg.SessionCapacity, lru.WithEvictHandler(func(sess *session) {
		s.logger.Info("evicting session", zap.String("id", sess.id))
		sess.close()
	}))
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))

	r.Get("/health", s.handleHealth)
	r.Get("/api/scroll-sync", s.handleScrollSync)

	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", s.handleListDocuments)

		r.Route("/{docID}", func(r chi.Router) {
			r.Use(middleware.RequestSize(maxBodySize))

			r.Get("/", s.handleGetDocument)
			r.Put("/blocks", s.handleSetBlocks)
			r.Put("/source", s.handleSetSource)
			r.Put("/settings", s.handleSetSettings)
			r.Post("/mode", s.handleSwitchMode)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
			r.Post("/save", s.handleSave)
			r.Get("/preview", s.handlePreview)
			r.Get("/anchor", s.handleAnchor)
		})
	})

	s.router = r
}

// Listen binds the configured address. It is separate from Serve so
// callers learn the actual address before serving.
func (s *Server) Listen() error {
	lis, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.WithStack(err)
	}
	s.lis = lis
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server listening", zap.String("address", lis.Addr().String()))
	return nil
}

func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Serve blocks until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Serve() error {
	if s.lis == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	err := s.httpServer.Serve(s.lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WithStack(err)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	return errors.WithStack(s.httpServer.Shutdown(ctx))
}
