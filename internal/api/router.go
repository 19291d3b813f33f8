// Package api wires the HTTP surface: middleware stack and route table.
package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/xasusq-eng/Kovers/internal/api/middleware"
	"github.com/xasusq-eng/Kovers/internal/config"
	"github.com/xasusq-eng/Kovers/internal/handlers"
	"github.com/xasusq-eng/Kovers/internal/store"
)

// maxBodyBytes caps request bodies at 1 MiB.
const maxBodyBytes = 1 << 20

// NewRouter creates and configures the HTTP router. The returned
// cleanup stops the router's background workers (the rate limiter GC)
// and should run on shutdown.
func NewRouter(logger zerolog.Logger, cfg *config.Config, st store.Store) (*chi.Mux, func()) {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Request hygiene
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Rate limiting
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Use(limiter.Middleware)

	// CORS - the browser client may be served from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.TokenHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(st)
	auth := middleware.NewAuthMiddleware(st)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Entry points (no token required)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/guest", h.Guest)

		// Everything else requires a session token
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Post("/auth/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Get("/users/search", h.SearchUsers)

			r.Get("/rooms", h.ListRooms)
			r.Post("/rooms", h.CreateRoom)
			r.Post("/dm", h.CreateDM)

			r.Get("/messages", h.GetMessages)
			r.Post("/messages", h.PostMessage)

			r.Get("/calls", h.ListCalls)
			r.Post("/calls/start", h.StartCall)
			r.Post("/calls/join", h.JoinCall)
			r.Post("/calls/end", h.EndCall)
		})
	})

	return r, limiter.Stop
}
