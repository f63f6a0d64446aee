package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lumeview/tvauth/internal/authflow"
	"github.com/lumeview/tvauth/internal/device"
	"github.com/lumeview/tvauth/internal/dropbox"
)

type server struct {
	cfg     Config
	router  *chi.Mux
	flows   *authflow.Service
	devices *device.Manager
	oauth   *dropbox.OAuthClient
	logger  *zap.Logger
}

func newServer(cfg Config, flows *authflow.Service, devices *device.Manager, oauth *dropbox.OAuthClient, logger *zap.Logger) *server {
	srv := &server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		flows:   flows,
		devices: devices,
		oauth:   oauth,
		logger:  logger,
	}

	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Timeout(30 * time.Second))
	srv.router.Use(srv.requestLogger)

	srv.routes()

	return srv
}

func (s *server) routes() {
	s.router.Get("/health", s.handleHealth())

	// Consent hand-off for the second device
	s.router.Get("/", s.handleAuthorizeRedirect())
	s.router.Get("/success", s.handleSuccess())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/flows", s.handleCreateFlow())
		r.Get("/auth/flows/{state}", s.handleCheckFlow())
		r.Delete("/auth/flows/{state}", s.handleCancelFlow())
		r.Get("/auth/callback", s.handleCallback())
		r.Post("/auth/tokens", s.handleRefreshTokens())
		r.Get("/devices/{deviceID}", s.handleProviderToken())
		r.Delete("/devices/{deviceID}", s.handleDeregister())
	})
}

// requestLogger logs one line per request with zap.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *server) checkHealth(ctx context.Context) error {
	if err := s.flows.CheckHealth(ctx); err != nil {
		return err
	}
	return s.devices.CheckHealth(ctx)
}
