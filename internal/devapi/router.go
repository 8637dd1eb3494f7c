// Package devapi is a local stand-in for the BAXperience REST backend. It
// serves the auth and itinerary endpoints the planner calls, so the CLI and
// end-to-end tests run without the real service.
package devapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/baxperience/baxperience/internal/devapi/handler"
	"github.com/baxperience/baxperience/internal/devapi/middleware"
	"github.com/baxperience/baxperience/internal/devapi/poi"
	"github.com/baxperience/baxperience/internal/devapi/store"
	"github.com/baxperience/baxperience/internal/devapi/token"
)

// APIPrefix is where every route is mounted.
const APIPrefix = "/api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version string
	Logger  zerolog.Logger
	Store   store.Store
	Tokens  *token.Service
	Catalog *poi.Catalog
	Metrics *middleware.Metrics

	// RateLimit applies to every authenticated route, per user.
	// AuthRateLimit applies to login and registration, per IP.
	// Zero values disable limiting.
	RateLimit     middleware.RateLimitConfig
	AuthRateLimit middleware.RateLimitConfig

	// PasswordCost is the bcrypt cost; zero uses the bcrypt default.
	PasswordCost int

	// RequireTLS refuses requests that did not arrive over HTTPS.
	RequireTLS bool
}

// NewRouter creates the chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Secure(cfg.RequireTLS))
	r.Use(middleware.RequireJSON)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.Store)
	authHandler := handler.NewAuthHandler(handler.AuthConfig{
		Users:        cfg.Store,
		Tokens:       cfg.Tokens,
		PasswordCost: cfg.PasswordCost,
		Logger:       cfg.Logger,
	})
	itineraryHandler := handler.NewItineraryHandler(handler.ItineraryConfig{
		Users:   cfg.Store,
		Trips:   cfg.Store,
		Catalog: cfg.Catalog,
		Logger:  cfg.Logger,
	})

	authMiddleware := middleware.Auth(cfg.Tokens)
	userRateLimit := middleware.RateLimitByUser(cfg.RateLimit)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", opsHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(cfg.AuthRateLimit))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})
			r.With(authMiddleware, userRateLimit).Get("/profile", authHandler.Profile)
		})

		r.Route("/itinerary", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(userRateLimit)
			r.Get("/", itineraryHandler.List)
			r.Post("/generate", itineraryHandler.Generate)
			r.Post("/confirm", itineraryHandler.Confirm)
			r.Get("/{id}", itineraryHandler.Get)
		})
	})

	return r
}
