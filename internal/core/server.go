// Package core is the HTTP chassis of the fusion service: a chi router with
// the cross-cutting middleware, the response envelope, request validation,
// and the health endpoint. Domain handlers mount themselves under /v1.
package core

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"etofusion/internal/config"
)

const defaultRequestTimeout = 45 * time.Second

// Server holds the router and the dependencies shared by all handlers.
type Server struct {
	Config       config.ServerConfig
	Build        config.BuildInfo
	Logger       *slog.Logger
	Validator    *Validator
	HealthProbes []HealthProbe

	// V1RouteRegistrars are applied under /v1 by MountRoutes.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer creates a Server. Routes are mounted by MountRoutes once the
// caller has filled in registrars and probes.
func NewServer(cfg config.ServerConfig, build config.BuildInfo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Config:    cfg,
		Build:     build,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer builds an http.Server listening on the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.Config.Port,
		Handler:      s.router,
		ReadTimeout:  s.Config.ReadTimeout,
		WriteTimeout: s.Config.WriteTimeout,
	}
}
