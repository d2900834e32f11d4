package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/classnotes/backend/internal/auth"
	"github.com/classnotes/backend/internal/middleware"
)

// Router holds all handlers and creates the chi router
type Router struct {
	triggerHandler *TriggerHandler
	healthHandler  *HealthHandler
	authenticator  *auth.Authenticator
	logger         *zap.Logger
}

// NewRouter creates a new router
func NewRouter(
	triggerHandler *TriggerHandler,
	healthHandler *HealthHandler,
	authenticator *auth.Authenticator,
	logger *zap.Logger,
) *Router {
	return &Router{
		triggerHandler: triggerHandler,
		healthHandler:  healthHandler,
		authenticator:  authenticator,
		logger:         logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware())

	// Health endpoints (no auth required)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.healthHandler.Health)
		r.Get("/ready", rt.healthHandler.Ready)
		r.Get("/live", rt.healthHandler.Live)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/triggers", func(r chi.Router) {
			r.Use(middleware.TriggerAuthMiddleware(rt.authenticator))

			r.Post("/requests/{requestId}", rt.triggerHandler.RequestCreated)
			r.Post("/posts/{postId}", rt.triggerHandler.PostCreated)
		})
	})

	return r
}
