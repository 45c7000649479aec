// Package server wires the router, middleware, and websocket endpoints into
// one HTTP server.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/aigents-hub/aigents-api/pkg/gateway/config"
	"github.com/aigents-hub/aigents-api/pkg/gateway/handlers"
	"github.com/aigents-hub/aigents-api/pkg/gateway/live"
	"github.com/aigents-hub/aigents-api/pkg/gateway/live/conns"
	"github.com/aigents-hub/aigents-api/pkg/gateway/mw"
	"github.com/aigents-hub/aigents-api/pkg/gateway/notify"
	"github.com/aigents-hub/aigents-api/pkg/gateway/respstate"
	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
	"github.com/aigents-hub/aigents-api/pkg/gateway/tools"
	"github.com/aigents-hub/aigents-api/pkg/images"
)

// Deps are the wired components the server exposes over HTTP.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *session.Registry
	State    *respstate.Store
	Notify   *notify.Gateway
	Tools    *tools.Handler
	Images   *images.Service
	Dialer   live.UpstreamDialer // nil => echo mode
	Tracker  *conns.Tracker
}

type Server struct {
	deps Deps
	http *http.Server
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Tracker == nil {
		d.Tracker = conns.NewTracker()
	}

	s := &Server{deps: d}
	s.http = &http.Server{
		Addr:    d.Config.Addr,
		Handler: s.buildHandler(),
	}
	return s
}

func (s *Server) buildHandler() http.Handler {
	d := s.deps

	allowed := d.Config.CORSAllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(func(next http.Handler) http.Handler { return mw.AccessLog(d.Logger, next) })
	r.Use(func(next http.Handler) http.Handler { return mw.Recover(d.Logger, next) })
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	r.Get("/healthz", handlers.HealthHandler{}.ServeHTTP)
	r.Post("/session", handlers.SessionHandler{Registry: d.Registry, Logger: d.Logger}.ServeHTTP)
	r.Route("/execute", handlers.ExecuteHandler{Notifier: d.Notify, Logger: d.Logger}.Routes)
	if d.Images != nil {
		r.Route("/automobiles", handlers.ImagesHandler{
			Service:  d.Images,
			MaxBytes: d.Config.ImageMaxBytes,
			Logger:   d.Logger,
		}.Routes)
	}

	r.Handle("/ws/notification", d.Notify)
	r.Handle("/ws/conversation", &live.Handler{
		Registry:  d.Registry,
		State:     d.State,
		Tools:     d.Tools,
		Dialer:    d.Dialer,
		Tracker:   d.Tracker,
		EchoDelay: d.Config.EchoDelay,
		Logger:    d.Logger,
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) ListenAndServe() error {
	s.deps.Logger.Info("gateway listening", "addr", s.deps.Config.Addr, "realtime", s.deps.Config.UseRealtime)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting requests, closes every live conversation, and
// waits for them to drain within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	closed := s.deps.Tracker.CloseAll()
	if closed > 0 {
		s.deps.Logger.Info("closed live conversations", "count", closed)
	}
	if !s.deps.Tracker.Wait(ctx) {
		s.deps.Logger.Warn("shutdown grace period expired with live conversations still draining")
	}
	s.deps.Registry.Close()
	return err
}
