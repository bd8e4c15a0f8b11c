package core

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the middleware chain, the /v1 group, and /health.
//
// Order: Recoverer, ContextTimeout, RequestID, SecurityHeaders, RequestLogger, CORS.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(s.RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger)
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})
	s.router.Get("/health", s.HandleHealth)
	s.router.Get("/version", s.HandleVersion)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusNotFound, APIErrorResponse{Error: ErrorDetail{
			Code:    "not_found",
			Message: "route not found",
		}})
	})
}

// HandleVersion reports the build metadata.
func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, s.Build)
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config.RequestTimeout > 0 {
		return s.Config.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if len(s.Config.CorsAllowedOrigins) > 0 {
		return s.Config.CorsAllowedOrigins
	}
	return []string{"*"}
}
